package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Francouer/proto-watch/internal/domain"
	"golang.org/x/sync/errgroup"
)

type CompilerServiceImpl struct {
	logger    domain.Logger
	fileRepo  domain.FileRepository
	runner    domain.CommandRunner
	refresher domain.Refresher
}

// NewCompilerService creates a new compiler orchestrator service
func NewCompilerService(
	logger domain.Logger,
	fileRepo domain.FileRepository,
	runner domain.CommandRunner,
	refresher domain.Refresher,
) domain.CompilerService {
	return &CompilerServiceImpl{
		logger:    logger,
		fileRepo:  fileRepo,
		runner:    runner,
		refresher: refresher,
	}
}

// Discover returns every schema file under the source root, fresh on each call
func (s *CompilerServiceImpl) Discover(config *domain.CompilerConfig) ([]domain.SchemaFile, error) {
	files, err := s.fileRepo.ListFiles(config.SourceRoot(), config.Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to discover schema files: %w", err)
	}
	return files, nil
}

// IncludePaths collects the directory of every discovered file in discovery
// order, so any schema can import any other by file name.
func (s *CompilerServiceImpl) IncludePaths(config *domain.CompilerConfig, files []domain.SchemaFile) []string {
	paths := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))

	for _, file := range files {
		if config.DedupeIncludePaths {
			if _, ok := seen[file.Dir]; ok {
				continue
			}
			seen[file.Dir] = struct{}{}
		}
		paths = append(paths, file.Dir)
	}

	return paths
}

// OutputDir mirrors the source file's directory from the source root onto
// the output root.
func (s *CompilerServiceImpl) OutputDir(config *domain.CompilerConfig, sourcePath string) (string, error) {
	sourceRoot := config.SourceRoot()
	dir := filepath.Dir(filepath.Clean(sourcePath))

	rel, err := filepath.Rel(sourceRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", domain.NewCompileError(sourcePath, "map output",
			fmt.Errorf("%w: %s", domain.ErrOutsideSourceRoot, sourceRoot))
	}

	return filepath.Join(config.OutputRoot(), rel), nil
}

// CompilePath is the entry point for paths reported by a change source.
// Relative paths are resolved against the project root. Paths with another
// extension or inside a reserved directory are skipped without running the
// compiler.
func (s *CompilerServiceImpl) CompilePath(ctx context.Context, config *domain.CompilerConfig, path string, includePaths []string) domain.CompileResult {
	source := resolvePath(config, path)

	if dir, ok := reservedDir(config, source); ok {
		s.logger.Debug("Skipping %s: inside reserved directory %s", path, dir)
		return domain.CompileResult{Source: source, Outcome: domain.OutcomeSkipped}
	}

	if filepath.Ext(source) != config.Extension {
		s.logger.Debug("Skipping %s: not a %s file", path, config.Extension)
		return domain.CompileResult{Source: source, Outcome: domain.OutcomeSkipped}
	}

	return s.CompileFile(ctx, config, source, includePaths)
}

// CompileFile runs the compiler for one absolute source path
func (s *CompilerServiceImpl) CompileFile(ctx context.Context, config *domain.CompilerConfig, sourcePath string, includePaths []string) domain.CompileResult {
	start := time.Now()
	result := domain.CompileResult{Source: sourcePath}

	fail := func(err error) domain.CompileResult {
		result.Outcome = domain.OutcomeFailed
		result.Error = err
		result.Duration = time.Since(start)
		if config.LogErrors {
			s.logger.Error("%v", err)
		}
		return result
	}

	outputDir, err := s.OutputDir(config, sourcePath)
	if err != nil {
		return fail(err)
	}
	result.OutputDir = outputDir

	if err := s.fileRepo.CreateDir(outputDir); err != nil {
		return fail(domain.NewCompileError(sourcePath, "create output dir", err))
	}

	job := BuildCompileJob(config, sourcePath, outputDir, includePaths)
	result.Args = job.Args
	s.logger.Debug("Compiling %s into %s", job.Source, job.OutputDir)

	if config.LogStandard {
		s.logger.Info("Final arguments:\n%s", FormatArgs(job.Args))
	}

	runCtx := ctx
	if config.CompileTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, config.CompileTimeout)
		defer cancel()
	}

	output, err := s.runner.Run(runCtx, config.CompilerPath, job.Args)
	result.Stdout = output.Stdout
	result.Stderr = output.Stderr
	result.ExitCode = output.ExitCode
	if err != nil {
		return fail(domain.NewCompileError(sourcePath, "run compiler", err))
	}

	name := filepath.Base(sourcePath)
	if config.LogStandard && output.Stdout != "" {
		s.logger.Info("%s", output.Stdout)
	}

	switch {
	case output.ExitCode != 0:
		result.Outcome = domain.OutcomeFailed
		result.Error = domain.NewCompileError(sourcePath, "run compiler",
			fmt.Errorf("%w: exit status %d", domain.ErrCompileFailed, output.ExitCode))
	case output.Stderr != "":
		result.Outcome = domain.OutcomeWarnings
	default:
		result.Outcome = domain.OutcomeSucceeded
	}
	result.Duration = time.Since(start)

	if config.LogErrors {
		switch {
		case result.Outcome == domain.OutcomeFailed && output.Stderr == "":
			s.logger.Error("%v", result.Error)
		case result.Outcome == domain.OutcomeFailed:
			s.logger.Error("%s: %s", name, output.Stderr)
		case output.Stderr != "":
			s.logger.Warning("%s: %s", name, output.Stderr)
		}
	}

	if config.LogStandard {
		if result.Outcome == domain.OutcomeFailed {
			s.logger.Info("Compiler exited with status %d for %s", output.ExitCode, name)
		} else {
			s.logger.Success("Compiled %s in %s", name, result.Duration.Round(time.Millisecond))
		}
	}

	return result
}

// HandleChanges compiles each imported path of one change batch and emits
// a refresh if any compile was attempted. Dependents of a changed schema
// are not recompiled.
func (s *CompilerServiceImpl) HandleChanges(ctx context.Context, config *domain.CompilerConfig, events []domain.ChangeEvent) (domain.BatchResult, error) {
	var batch domain.BatchResult

	if !config.Enabled {
		s.logger.Debug("Compiler disabled, ignoring %d change(s)", len(events))
		return batch, nil
	}

	var paths []string
	for _, event := range events {
		if event.Kind != domain.ChangeImported {
			s.logger.Debug("Ignoring %s event for %s", event.Kind, event.Path)
			continue
		}
		paths = append(paths, event.Path)
	}

	if len(paths) == 0 {
		return batch, nil
	}

	files, err := s.Discover(config)
	if err != nil {
		return batch, err
	}
	includePaths := s.IncludePaths(config, files)

	batch.Results = s.compileEach(ctx, config, paths, func(ctx context.Context, path string) domain.CompileResult {
		return s.CompilePath(ctx, config, path, includePaths)
	})

	for _, result := range batch.Results {
		if result.Attempted() {
			batch.RefreshNeeded = true
			break
		}
	}

	if !batch.RefreshNeeded {
		return batch, nil
	}

	if err := s.refresh(ctx, config, batch); err != nil {
		return batch, err
	}
	return batch, nil
}

// CompileAll discovers every schema file and compiles each regardless of
// change status or the enabled flag, then refreshes once.
func (s *CompilerServiceImpl) CompileAll(ctx context.Context, config *domain.CompilerConfig) (domain.BatchResult, error) {
	var batch domain.BatchResult

	if config.LogStandard {
		s.logger.Info("Compiling all %s files in %s...", config.Extension, config.SourceRoot())
	}

	files, err := s.Discover(config)
	if err != nil {
		return batch, err
	}

	if len(files) == 0 {
		s.logger.Warning("No %s files found in %s", config.Extension, config.SourceRoot())
	}

	includePaths := s.IncludePaths(config, files)
	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.Path
	}

	batch.Results = s.compileEach(ctx, config, paths, func(ctx context.Context, path string) domain.CompileResult {
		if config.LogStandard {
			s.logger.Info("Compiling %s", path)
		}
		return s.CompilePath(ctx, config, path, includePaths)
	})
	batch.RefreshNeeded = true

	if err := s.refresh(ctx, config, batch); err != nil {
		return batch, err
	}
	return batch, nil
}

// compileEach runs compile over paths with at most config.Jobs in flight.
// Results keep the order of paths and one failure never stops the others.
func (s *CompilerServiceImpl) compileEach(
	ctx context.Context,
	config *domain.CompilerConfig,
	paths []string,
	compile func(ctx context.Context, path string) domain.CompileResult,
) []domain.CompileResult {
	results := make([]domain.CompileResult, len(paths))

	jobs := config.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var g errgroup.Group
	g.SetLimit(jobs)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = domain.CompileResult{
					Source:  path,
					Outcome: domain.OutcomeFailed,
					Error:   domain.NewCompileError(path, "schedule", err),
				}
				return nil
			}
			results[i] = compile(ctx, path)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (s *CompilerServiceImpl) refresh(ctx context.Context, config *domain.CompilerConfig, batch domain.BatchResult) error {
	if err := s.refresher.Refresh(ctx, config); err != nil {
		return fmt.Errorf("failed to refresh generated code: %w", err)
	}

	failed := batch.Count(domain.OutcomeFailed)
	if failed > 0 {
		s.logger.Warning("Compile batch finished: %d attempted, %d failed", batch.Attempted(), failed)
	} else {
		s.logger.Success("Compile batch finished: %d attempted", batch.Attempted())
	}
	return nil
}

// BuildCompileJob assembles the compiler arguments for one source file:
// the source, the language output flag, then one --proto_path per include path.
func BuildCompileJob(config *domain.CompilerConfig, sourcePath, outputDir string, includePaths []string) domain.CompileJob {
	args := make([]string, 0, 3+2*len(includePaths))
	args = append(args, sourcePath, config.LanguageFlag(), outputDir)
	for _, dir := range includePaths {
		args = append(args, "--proto_path", dir)
	}

	return domain.CompileJob{
		Source:    sourcePath,
		OutputDir: outputDir,
		Args:      args,
	}
}

// FormatArgs renders args for logging with every path quoted
func FormatArgs(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "--") {
			parts[i] = arg
			continue
		}
		parts[i] = `"` + arg + `"`
	}
	return strings.Join(parts, " ")
}

func resolvePath(config *domain.CompilerConfig, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(config.ProjectRoot(), path)
}

// reservedDir reports the reserved directory containing path, if any
func reservedDir(config *domain.CompilerConfig, path string) (string, bool) {
	for _, reserved := range config.ReservedRoots() {
		if path == reserved || strings.HasPrefix(path, reserved+string(filepath.Separator)) {
			return reserved, true
		}
	}
	return "", false
}
