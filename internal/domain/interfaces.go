package domain

import "context"

// Logger defines the logging interface
type Logger interface {
	Info(msg string, args ...interface{})
	Success(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// FileRepository handles file system operations
type FileRepository interface {
	CreateDir(path string) error
	FileExists(path string) bool
	ListFiles(root string, extension string) ([]SchemaFile, error)
}

// CommandRunner runs a subprocess to completion with captured output.
// A non-zero exit is reported through RunOutput, not the error; the error
// is reserved for processes that could not be started or were cancelled.
type CommandRunner interface {
	Run(ctx context.Context, executable string, args []string) (RunOutput, error)
}

// CompilerLocator resolves and describes the compiler executable
type CompilerLocator interface {
	Resolve(compilerPath string) (string, error)
	Version(ctx context.Context, compilerPath string) (string, error)
}

// ConfigRepository loads persisted configuration. A relative project_dir
// in the file is returned resolved against the file's directory.
type ConfigRepository interface {
	Load(path string, base CompilerConfig) (CompilerConfig, error)
}

// Refresher signals the host that generated code under the output root changed
type Refresher interface {
	Refresh(ctx context.Context, config *CompilerConfig) error
}

// ChangeHandler receives one batch of change events
type ChangeHandler func(ctx context.Context, events []ChangeEvent)

// ChangeWatcher delivers change batches until its context is cancelled
type ChangeWatcher interface {
	Run(ctx context.Context, handler ChangeHandler) error
}

// CompilerService defines the main service interface
type CompilerService interface {
	Discover(config *CompilerConfig) ([]SchemaFile, error)
	IncludePaths(config *CompilerConfig, files []SchemaFile) []string
	OutputDir(config *CompilerConfig, sourcePath string) (string, error)
	CompilePath(ctx context.Context, config *CompilerConfig, path string, includePaths []string) CompileResult
	CompileFile(ctx context.Context, config *CompilerConfig, sourcePath string, includePaths []string) CompileResult
	HandleChanges(ctx context.Context, config *CompilerConfig, events []ChangeEvent) (BatchResult, error)
	CompileAll(ctx context.Context, config *CompilerConfig) (BatchResult, error)
}
