package pipeline

import (
	"errors"
	"fmt"

	"github.com/maauso/vidframes/internal/progress"
)

// ErrRunLocked is returned when another run holds the output directory lock.
var ErrRunLocked = errors.New("another run is using this output directory")

// StageError reports a fatal failure and the stage it happened in.
type StageError struct {
	Stage progress.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage progress.Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
