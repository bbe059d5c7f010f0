package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Default layout and compiler settings
const (
	DefaultConfigFile    = ".proto-watch.yaml"
	DefaultSourceDir     = "proto"
	DefaultOutputDir     = "Scripts/proto"
	DefaultCompilerPath  = "protoc"
	DefaultLanguage      = "csharp"
	DefaultExtension     = ".proto"
	DefaultWatchDebounce = 300 * time.Millisecond
)

// CompilerConfig holds every setting the orchestrator reads. It is passed
// explicitly to each operation.
type CompilerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CompilerPath string `yaml:"compiler_path"`
	LogStandard  bool   `yaml:"log_standard"`
	LogErrors    bool   `yaml:"log_errors"`

	// Relative SourceDir and OutputDir are resolved against ProjectDir
	ProjectDir string `yaml:"project_dir"`
	SourceDir  string `yaml:"source_dir"`
	OutputDir  string `yaml:"output_dir"`

	Language  string `yaml:"language"`
	Extension string `yaml:"extension"`

	// ReservedDirs are project-relative directories whose schemas are never compiled
	ReservedDirs       []string `yaml:"reserved_dirs"`
	DedupeIncludePaths bool     `yaml:"dedupe_include_paths"`

	Jobs           int           `yaml:"jobs"`
	CompileTimeout time.Duration `yaml:"compile_timeout"`
	WatchDebounce  time.Duration `yaml:"watch_debounce"`
	RefreshCommand []string      `yaml:"refresh_command"`
}

// DefaultCompilerConfig returns the configuration used when nothing is overridden
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Enabled:            true,
		CompilerPath:       DefaultCompilerPath,
		LogStandard:        false,
		LogErrors:          true,
		ProjectDir:         ".",
		SourceDir:          DefaultSourceDir,
		OutputDir:          DefaultOutputDir,
		Language:           DefaultLanguage,
		Extension:          DefaultExtension,
		ReservedDirs:       []string{"Packages/proto-watch"},
		DedupeIncludePaths: true,
		Jobs:               1,
		WatchDebounce:      DefaultWatchDebounce,
	}
}

// SourceRoot returns the absolute source root
func (c *CompilerConfig) SourceRoot() string {
	return c.resolve(c.SourceDir)
}

// OutputRoot returns the absolute output root
func (c *CompilerConfig) OutputRoot() string {
	return c.resolve(c.OutputDir)
}

// ProjectRoot returns the absolute project directory
func (c *CompilerConfig) ProjectRoot() string {
	root := c.ProjectDir
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

func (c *CompilerConfig) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.ProjectRoot(), dir)
}

// ReservedRoots returns the absolute reserved directories
func (c *CompilerConfig) ReservedRoots() []string {
	roots := make([]string, 0, len(c.ReservedDirs))
	for _, dir := range c.ReservedDirs {
		if dir == "" {
			continue
		}
		roots = append(roots, c.resolve(dir))
	}
	return roots
}

// LanguageFlag returns the compiler output flag, e.g. --csharp_out
func (c *CompilerConfig) LanguageFlag() string {
	return fmt.Sprintf("--%s_out", c.Language)
}

// Validate checks that the configuration is usable
func (c *CompilerConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}

	if c.CompilerPath == "" {
		return fmt.Errorf("%w: compiler path is required", ErrInvalidConfig)
	}

	if c.SourceDir == "" {
		return fmt.Errorf("%w: source dir is required", ErrInvalidConfig)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("%w: output dir is required", ErrInvalidConfig)
	}

	if c.Language == "" || strings.ContainsAny(c.Language, " /\\") {
		return fmt.Errorf("%w: invalid language %q", ErrInvalidConfig, c.Language)
	}

	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("%w: extension must start with a dot, got %q", ErrInvalidConfig, c.Extension)
	}

	if c.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidConfig, c.Jobs)
	}

	if c.CompileTimeout < 0 {
		return fmt.Errorf("%w: compile timeout cannot be negative", ErrInvalidConfig)
	}

	if c.SourceRoot() == c.OutputRoot() {
		return fmt.Errorf("%w: source and output dirs must differ (%s)", ErrInvalidConfig, c.SourceRoot())
	}

	return nil
}
