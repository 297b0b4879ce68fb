// Package executor runs build plans as external processes.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goplus/cook/internal/plan"
	"github.com/goplus/cook/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// Status is the outcome of Execute.
type Status int

const (
	Succeeded Status = iota
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is handed to the caller and never persisted.
type Result struct {
	Status Status
	// FailedStep is the index of the failing or interrupted step, or -1.
	FailedStep int
	// Output is the combined output of FailedStep.
	Output string
	Err    error
}

func (r *Result) Succeeded() bool { return r.Status == Succeeded }

// Executor runs plans. The zero value runs real processes with no timeout.
type Executor struct {
	Runner Runner
	// Output receives the live output of every step. Nil discards it.
	Output io.Writer
	// Timeout bounds a whole Execute call. Zero means none.
	Timeout time.Duration
	// Environ returns the ambient environment. Nil means os.Environ.
	Environ func() []string
}

// Execute runs the steps of p in order and stops at the first failure.
// Steps are safe to rerun, so a failed Execute may be retried as a whole.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) *Result {
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	environ := e.Environ
	if environ == nil {
		environ = os.Environ
	}
	stream := e.Output
	if stream == nil {
		stream = io.Discard
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	for i, step := range p.Steps {
		if ctx.Err() != nil {
			return cancelled(i, "", ctx.Err())
		}
		log.Infof("%s: [%d/%d] %s", p.Recipe, i+1, len(p.Steps), step.Phase)
		log.Debugf("%s: %s", p.Recipe, step.CommandLine())

		var buf bytes.Buffer
		code, err := run(runCtx, runner, step, environ(), io.MultiWriter(&buf, stream))
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return cancelled(i, buf.String(), ctx.Err())
		}
		if runCtx.Err() != nil {
			err = fmt.Errorf("timed out after %v: %w", e.Timeout, runCtx.Err())
			code = -1
		}
		serr := &StepError{Index: i, Step: step, Output: buf.String(), ExitCode: code, Err: err}
		return &Result{Status: Failed, FailedStep: i, Output: serr.Output, Err: serr}
	}
	return &Result{Status: Succeeded, FailedStep: -1}
}

func run(ctx context.Context, r Runner, step buildsys.Step, environ []string, out io.Writer) (int, error) {
	if step.Dir != "" {
		if err := os.MkdirAll(step.Dir, 0o755); err != nil {
			return -1, err
		}
	}
	return r.Run(ctx, Command{
		Dir:    step.Dir,
		Exe:    step.Exe,
		Args:   step.Args,
		Env:    buildsys.MergeEnv(environ, step.Env),
		Output: out,
	})
}

func cancelled(i int, output string, cause error) *Result {
	err := ErrCancelled
	if cause != nil && !errors.Is(cause, context.Canceled) {
		err = fmt.Errorf("%w: %v", ErrCancelled, cause)
	}
	return &Result{Status: Cancelled, FailedStep: i, Output: output, Err: err}
}
