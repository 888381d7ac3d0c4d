package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrArtifactMissing is returned when a stage reports success but its
// artifact is not on disk afterward.
var ErrArtifactMissing = eris.New("pipeline: expected artifact missing")

// StageError wraps a failure with the stage it occurred in. The job is
// failed at the first stage error; later stages never run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
