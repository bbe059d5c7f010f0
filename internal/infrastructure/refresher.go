package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Francouer/proto-watch/internal/domain"
)

type RefresherImpl struct {
	logger domain.Logger
	runner domain.CommandRunner
}

// NewRefresher creates a refresher running the configured refresh command
func NewRefresher(logger domain.Logger, runner domain.CommandRunner) domain.Refresher {
	return &RefresherImpl{
		logger: logger,
		runner: runner,
	}
}

// Refresh runs config.RefreshCommand as given, or only logs the refresh
// when no command is configured.
func (r *RefresherImpl) Refresh(ctx context.Context, config *domain.CompilerConfig) error {
	command := config.RefreshCommand
	if len(command) == 0 {
		r.logger.Info("Generated code refreshed under %s", config.OutputRoot())
		return nil
	}

	r.logger.Info("Running refresh command: %s", strings.Join(command, " "))
	output, err := r.runner.Run(ctx, command[0], command[1:])
	if err != nil {
		return fmt.Errorf("refresh command failed: %w", err)
	}

	if out := strings.TrimSpace(output.Stdout); out != "" {
		r.logger.Info("%s", out)
	}

	if output.ExitCode != 0 {
		return fmt.Errorf("refresh command exited with status %d: %s",
			output.ExitCode, strings.TrimSpace(output.Stderr))
	}

	return nil
}
