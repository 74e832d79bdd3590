package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ExecRunner launches the detection worker as a child process, normally
// the current binary's hidden worker subcommand. The child gets its own
// address space, which is the whole point: a stuck or bloated detection
// dies with the child, not with us.
type ExecRunner struct {
	Binary string
	Args   []string
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner builds a runner for the current executable.
func NewExecRunner(args ...string) (*ExecRunner, error) {
	bin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving own binary: %w", err)
	}
	return &ExecRunner{Binary: bin, Args: args}, nil
}

// RunOnce runs one worker process to completion and returns its exit
// code. A non-zero exit is a result, not an error; errors are reserved
// for failing to launch at all.
func (r *ExecRunner) RunOnce(ctx context.Context, tenant string) (int, error) {
	args := append(append([]string{}, r.Args...), "--tenant", tenant)
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("starting worker process: %w", err)
}
