package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrCompilerNotFound  = errors.New("compiler executable not found")
	ErrCompilerLaunch    = errors.New("compiler failed to start")
	ErrCompileFailed     = errors.New("compiler exited with non-zero status")
	ErrOutsideSourceRoot = errors.New("path is outside the source root")
)

// CompileError represents an error while compiling a specific schema file
type CompileError struct {
	Path      string
	Operation string
	Err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: operation %s: %v", e.Path, e.Operation, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// NewCompileError wraps err with the path and operation it occurred in
func NewCompileError(path, operation string, err error) *CompileError {
	return &CompileError{
		Path:      path,
		Operation: operation,
		Err:       err,
	}
}
