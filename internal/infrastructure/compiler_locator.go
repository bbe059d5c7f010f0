package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Francouer/proto-watch/internal/domain"
)

type CompilerLocatorImpl struct {
	logger domain.Logger
	runner domain.CommandRunner
}

// NewCompilerLocator creates a locator that finds the compiler on disk or PATH
func NewCompilerLocator(logger domain.Logger, runner domain.CommandRunner) domain.CompilerLocator {
	return &CompilerLocatorImpl{
		logger: logger,
		runner: runner,
	}
}

// Resolve returns the absolute path of the compiler executable. Bare names
// are looked up on PATH.
func (c *CompilerLocatorImpl) Resolve(compilerPath string) (string, error) {
	if compilerPath == "" {
		return "", fmt.Errorf("%w: no compiler path configured", domain.ErrCompilerNotFound)
	}

	resolved, err := exec.LookPath(compilerPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrCompilerNotFound, compilerPath, err)
	}

	c.logger.Debug("Resolved compiler %s to %s", compilerPath, resolved)
	return resolved, nil
}

func (c *CompilerLocatorImpl) Version(ctx context.Context, compilerPath string) (string, error) {
	resolved, err := c.Resolve(compilerPath)
	if err != nil {
		return "", err
	}

	output, err := c.runner.Run(ctx, resolved, []string{"--version"})
	if err != nil {
		return "", fmt.Errorf("failed to query compiler version: %w", err)
	}

	if output.ExitCode != 0 {
		return "", fmt.Errorf("failed to query compiler version: exit status %d: %s",
			output.ExitCode, strings.TrimSpace(output.Stderr))
	}

	version := strings.TrimSpace(output.Stdout)
	if version == "" {
		return "", fmt.Errorf("empty version returned by %s", resolved)
	}

	return version, nil
}
