// Package pipeline runs the audio processing chain: format conversion,
// transcription, and speaker attribution. It reads only the given audio
// resource and never touches the job store.
package pipeline

import (
	"context"
	"fmt"

	"github.com/avoss/meetscribe/pkg/models"
)

// Options selects the model and language for one pipeline run.
type Options struct {
	ModelSize string
	Language  string
}

// Pipeline converts one audio resource into an ordered protocol. Run may
// block for a long time proportional to audio length; callers bound it with
// a context deadline.
type Pipeline interface {
	Run(ctx context.Context, audioPath string, opts Options) ([]models.Segment, error)
}

// Error is a stage-aware pipeline failure.
type Error struct {
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func stageError(stage, message string, err error) *Error {
	return &Error{Stage: stage, Message: message, Err: err}
}
