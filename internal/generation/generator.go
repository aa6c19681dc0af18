// Package generation turns retrieval context and a user query into an answer,
// either buffered or as a fragment stream.
package generation

import (
	"context"
	"errors"
)

// ErrGeneration wraps every failure talking to the text generation backend.
var ErrGeneration = errors.New("generation failed")

// Fragment is one piece of a streamed answer. Err is set on at most the final
// fragment before the channel closes; Text and Err are never both set.
type Fragment struct {
	Text string
	Err  error
}

// Generator produces text from a fully-rendered prompt.
//
// CompleteStream returns a channel of answer fragments. The channel is closed
// when the answer is complete, when the context is cancelled, or after an
// error fragment; closure is the only end-of-stream signal. Implementations
// must not retry failed calls.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteStream(ctx context.Context, prompt string) (<-chan Fragment, error)
}
