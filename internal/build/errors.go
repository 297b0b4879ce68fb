package build

import "fmt"

// Stage is a step of the per-recipe pipeline.
type Stage string

const (
	StageConfigure     Stage = "configure"
	StagePrerequisites Stage = "prerequisites"
	StageSource        Stage = "source"
	StagePlan          Stage = "plan"
	StageBuild         Stage = "build"
	StagePackage       Stage = "package"
)

// StageError records the pipeline stage an error came from. The wrapped
// error is kept intact for errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
