package interfaces

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Francouer/proto-watch/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// WatcherFactory builds the change source used by the watch command
type WatcherFactory func(config *domain.CompilerConfig) domain.ChangeWatcher

type CLIHandler struct {
	service    domain.CompilerService
	locator    domain.CompilerLocator
	configRepo domain.ConfigRepository
	newWatcher WatcherFactory
	logger     domain.Logger
}

// cliFlags holds raw flag values. Only flags the user set override the
// config file and environment.
type cliFlags struct {
	configPath   string
	projectDir   string
	sourceDir    string
	outputDir    string
	compilerPath string
	language     string
	verbose      bool
	logErrors    bool
	enabled      bool
	jobs         int
	timeout      time.Duration
	initial      bool
}

// NewCLIHandler creates a new CLI handler
func NewCLIHandler(
	service domain.CompilerService,
	locator domain.CompilerLocator,
	configRepo domain.ConfigRepository,
	newWatcher WatcherFactory,
	logger domain.Logger,
) *CLIHandler {
	return &CLIHandler{
		service:    service,
		locator:    locator,
		configRepo: configRepo,
		newWatcher: newWatcher,
		logger:     logger,
	}
}

// CreateRootCommand creates the root cobra command
func (c *CLIHandler) CreateRootCommand() *cobra.Command {
	var (
		flags  cliFlags
		config domain.CompilerConfig
	)

	rootCmd := &cobra.Command{
		Use:   "proto-watch",
		Short: "Recompile schema files with protoc whenever they change",
		Long: `Proto Watch mirrors a tree of .proto files into a generated-code tree.
Every schema directory is passed to the compiler as an include path, so schemas
anywhere under the source root can import each other by file name.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := c.loadConfig(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			config = loaded
			return nil
		},
	}

	c.addFlags(rootCmd, &flags)

	rootCmd.AddCommand(
		c.createWatchCommand(&config, &flags),
		c.createCompileAllCommand(&config),
		c.createCompileCommand(&config),
		c.createCheckCommand(&config),
	)

	return rootCmd
}

func (c *CLIHandler) addFlags(cmd *cobra.Command, flags *cliFlags) {
	defaults := domain.DefaultCompilerConfig()

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (default: <project-dir>/"+domain.DefaultConfigFile+")")
	pf.StringVarP(&flags.projectDir, "project-dir", "p", defaults.ProjectDir, "Project directory relative paths are resolved against")
	pf.StringVarP(&flags.sourceDir, "source-dir", "s", defaults.SourceDir, "Directory containing schema files")
	pf.StringVarP(&flags.outputDir, "output-dir", "o", defaults.OutputDir, "Directory receiving generated code")
	pf.StringVarP(&flags.compilerPath, "compiler-path", "c", defaults.CompilerPath, "Compiler executable")
	pf.StringVarP(&flags.language, "lang", "l", defaults.Language, "Output language, passed as --<lang>_out")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log compiler arguments and output")
	pf.BoolVar(&flags.logErrors, "log-errors", defaults.LogErrors, "Log compiler error output")
	pf.BoolVar(&flags.enabled, "enabled", defaults.Enabled, "Compile on change notifications")
	pf.IntVarP(&flags.jobs, "jobs", "j", defaults.Jobs, "Maximum concurrent compiler processes")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-file compile timeout (0 = none)")
}

// loadConfig layers defaults, the config file, environment and explicit flags
func (c *CLIHandler) loadConfig(fs *pflag.FlagSet, flags *cliFlags) (domain.CompilerConfig, error) {
	base := domain.DefaultCompilerConfig()
	if fs.Changed("project-dir") {
		base.ProjectDir = flags.projectDir
	}

	configPath := flags.configPath
	if configPath == "" {
		configPath = filepath.Join(base.ProjectDir, domain.DefaultConfigFile)
	} else if !fs.Changed("project-dir") {
		// An explicit config file without project_dir describes its own directory
		base.ProjectDir = filepath.Dir(configPath)
	}

	config, err := c.configRepo.Load(configPath, base)
	if err != nil {
		return config, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.CompilerPath = getEnvOrDefault("PROTO_WATCH_COMPILER", config.CompilerPath)
	config.SourceDir = getEnvOrDefault("PROTO_WATCH_SOURCE_DIR", config.SourceDir)
	config.OutputDir = getEnvOrDefault("PROTO_WATCH_OUTPUT_DIR", config.OutputDir)
	config.Language = getEnvOrDefault("PROTO_WATCH_LANG", config.Language)

	if fs.Changed("project-dir") {
		config.ProjectDir = flags.projectDir
	}
	if fs.Changed("source-dir") {
		config.SourceDir = flags.sourceDir
	}
	if fs.Changed("output-dir") {
		config.OutputDir = flags.outputDir
	}
	if fs.Changed("compiler-path") {
		config.CompilerPath = flags.compilerPath
	}
	if fs.Changed("lang") {
		config.Language = flags.language
	}
	if fs.Changed("verbose") {
		config.LogStandard = flags.verbose
	}
	if fs.Changed("log-errors") {
		config.LogErrors = flags.logErrors
	}
	if fs.Changed("enabled") {
		config.Enabled = flags.enabled
	}
	if fs.Changed("jobs") {
		config.Jobs = flags.jobs
	}
	if fs.Changed("timeout") {
		config.CompileTimeout = flags.timeout
	}

	if v, ok := c.logger.(interface{ SetVerbose(bool) }); ok {
		v.SetVerbose(config.LogStandard)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

func (c *CLIHandler) createWatchCommand(config *domain.CompilerConfig, flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the source directory and compile schemas as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.handleWatch(cmd.Context(), config, flags.initial)
		},
	}

	cmd.Flags().BoolVar(&flags.initial, "initial", false, "Compile every schema before watching")
	return cmd
}

func (c *CLIHandler) createCompileAllCommand(config *domain.CompilerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "compile-all",
		Short: "Compile every schema file under the source directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.handleCompileAll(cmd.Context(), config)
		},
	}
}

func (c *CLIHandler) createCompileCommand(config *domain.CompilerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "compile PATH...",
		Short: "Compile the given changed paths, skipping anything that is not a schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.handleCompile(cmd.Context(), config, args)
		},
	}
}

func (c *CLIHandler) createCheckCommand(config *domain.CompilerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show the resolved compiler, discovered schemas and include paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.handleCheck(cmd, config)
		},
	}
}

func (c *CLIHandler) handleWatch(ctx context.Context, config *domain.CompilerConfig, initial bool) error {
	if err := c.validateRequiredTools(config); err != nil {
		return err
	}

	if initial {
		batch, err := c.service.CompileAll(ctx, config)
		if err != nil {
			return fmt.Errorf("initial compile failed: %w", err)
		}
		c.printSummary(config, batch)
	}

	if !config.Enabled {
		c.logger.Warning("Compiler is disabled; changes will be ignored until it is enabled")
	}

	watcher := c.newWatcher(config)
	return watcher.Run(ctx, func(ctx context.Context, events []domain.ChangeEvent) {
		batch, err := c.service.HandleChanges(ctx, config, events)
		if err != nil {
			c.logger.Error("Compile batch failed: %v", err)
			return
		}
		if batch.Attempted() > 0 {
			c.printSummary(config, batch)
		}
	})
}

func (c *CLIHandler) handleCompileAll(ctx context.Context, config *domain.CompilerConfig) error {
	if err := c.validateRequiredTools(config); err != nil {
		return err
	}

	batch, err := c.service.CompileAll(ctx, config)
	if err != nil {
		return err
	}

	c.printSummary(config, batch)
	return batchError(batch)
}

func (c *CLIHandler) handleCompile(ctx context.Context, config *domain.CompilerConfig, paths []string) error {
	if err := c.validateRequiredTools(config); err != nil {
		return err
	}

	batch, err := c.service.HandleChanges(ctx, config, domain.ImportedEvents(paths))
	if err != nil {
		return err
	}

	if batch.Attempted() == 0 {
		c.logger.Info("Nothing to compile")
		return nil
	}

	c.printSummary(config, batch)
	return batchError(batch)
}

func (c *CLIHandler) handleCheck(cmd *cobra.Command, config *domain.CompilerConfig) error {
	out := cmd.OutOrStdout()

	resolved, err := c.locator.Resolve(config.CompilerPath)
	if err != nil {
		return err
	}

	version, err := c.locator.Version(cmd.Context(), config.CompilerPath)
	if err != nil {
		return err
	}

	files, err := c.service.Discover(config)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Compiler:    %s (%s)\n", resolved, version)
	fmt.Fprintf(out, "Source root: %s\n", config.SourceRoot())
	fmt.Fprintf(out, "Output root: %s\n", config.OutputRoot())
	fmt.Fprintf(out, "Output flag: %s\n", config.LanguageFlag())
	fmt.Fprintf(out, "Enabled:     %t\n", config.Enabled)
	fmt.Fprintln(out)

	fmt.Fprintf(out, "--- Schema files (%d) ---\n", len(files))
	for _, file := range files {
		rel, err := filepath.Rel(config.SourceRoot(), file.Path)
		if err != nil {
			rel = file.Path
		}
		fmt.Fprintln(out, rel)
	}
	fmt.Fprintln(out)

	includePaths := c.service.IncludePaths(config, files)
	fmt.Fprintf(out, "--- Include paths (%d) ---\n", len(includePaths))
	for _, dir := range includePaths {
		fmt.Fprintln(out, dir)
	}

	return nil
}

func (c *CLIHandler) validateRequiredTools(config *domain.CompilerConfig) error {
	if _, err := c.locator.Resolve(config.CompilerPath); err != nil {
		return fmt.Errorf("%w (set --compiler-path or PROTO_WATCH_COMPILER)", err)
	}
	return nil
}

// printSummary reports failures the service did not already log
func (c *CLIHandler) printSummary(config *domain.CompilerConfig, batch domain.BatchResult) {
	if !config.LogErrors {
		for _, result := range batch.Results {
			if result.Outcome == domain.OutcomeFailed {
				c.logger.Error("%s: %v", filepath.Base(result.Source), result.Error)
			}
		}
	}

	c.logger.Info("Compile completed: %d succeeded, %d with warnings, %d failed, %d skipped",
		batch.Count(domain.OutcomeSucceeded),
		batch.Count(domain.OutcomeWarnings),
		batch.Count(domain.OutcomeFailed),
		batch.Count(domain.OutcomeSkipped))
}

func batchError(batch domain.BatchResult) error {
	if batch.HasFailures() {
		return fmt.Errorf("%w: %d of %d schema file(s) failed", domain.ErrCompileFailed,
			batch.Count(domain.OutcomeFailed), batch.Attempted())
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
