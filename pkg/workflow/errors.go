package workflow

import (
	"errors"
	"fmt"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/stream"
)

var (
	// ErrValidation indicates the request was rejected before any stage ran.
	ErrValidation = errors.New("invalid workflow request")

	// ErrTemplate indicates the research query could not be built.
	ErrTemplate = errors.New("research query could not be built")

	// ErrSerialization indicates a stage payload could not be encoded.
	ErrSerialization = errors.New("stage payload could not be encoded")
)

// StageError is returned by Run after the matching error event has been
// emitted to the client.
type StageError struct {
	Step    stream.Step // Empty for validation failures
	Message string      // Message sent to the client
	Err     error       // Underlying error
}

func (e *StageError) Error() string {
	if e.Step == "" {
		return e.Message
	}

	return fmt.Sprintf("%s stage failed: %s", e.Step, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
