package executor

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// Command is one external process invocation.
type Command struct {
	Dir    string
	Exe    string
	Args   []string
	Env    []string // complete environment, "KEY=VALUE"
	Output io.Writer
}

// Runner is the toolchain boundary: run an executable with args, env and
// working directory, report the exit code and write combined output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// ExecRunner runs commands as child processes. Cancelling the context kills
// the whole process group so that compilers spawned by make or cmake die too.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after a kill.
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Exe, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Output
	cmd.Stderr = c.Output
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}
