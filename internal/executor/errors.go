package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goplus/cook/pkgs/buildsys"
)

// ErrCancelled is returned when the caller cancelled a running plan.
var ErrCancelled = errors.New("build cancelled")

// ErrStepFailed is matched by every *StepError.
var ErrStepFailed = errors.New("build step failed")

// StepError reports the first failing step of a plan.
type StepError struct {
	Index    int
	Step     buildsys.Step
	Output   string
	ExitCode int
	Err      error
}

// tailLines is how much diagnostic output Error includes.
const tailLines = 20

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %d (%s) failed", e.Index, e.Step.Phase)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	fmt.Fprintf(&b, ": %s", e.Step.CommandLine())
	if tail := lastLines(e.Output, tailLines); tail != "" {
		b.WriteString("\n")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

func (e *StepError) Unwrap() error { return e.Err }

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
