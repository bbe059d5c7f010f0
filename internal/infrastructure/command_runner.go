package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Francouer/proto-watch/internal/domain"
)

const waitDelay = 2 * time.Second

type CommandRunnerImpl struct {
	logger domain.Logger
}

// NewCommandRunner creates a runner that executes subprocesses with captured output
func NewCommandRunner(logger domain.Logger) domain.CommandRunner {
	return &CommandRunnerImpl{
		logger: logger,
	}
}

// Run starts executable and waits for it. Both pipes are drained into
// buffers by os/exec before Wait returns, so a chatty compiler can't block
// on a full stderr pipe.
func (r *CommandRunnerImpl) Run(ctx context.Context, executable string, args []string) (domain.RunOutput, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not stall Wait after a kill
	cmd.WaitDelay = waitDelay

	r.logger.Debug("Running %s %s", executable, strings.Join(args, " "))
	err := cmd.Run()

	output := domain.RunOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		output.ExitCode = -1
		return output, fmt.Errorf("%s interrupted: %w", executable, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		output.ExitCode = exitErr.ExitCode()
		return output, nil
	}

	if err != nil {
		output.ExitCode = -1
		return output, fmt.Errorf("%w: %s: %v", domain.ErrCompilerLaunch, executable, err)
	}

	return output, nil
}
