package generation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FallbackAnswer is returned when the backend produces an empty answer.
const FallbackAnswer = "I'm not sure how to respond to that."

const promptTemplate = "Based on this context:\n%s\n\nAnswer the question: %s"

// Orchestrator renders prompts and shapes generator output for callers. In
// buffered mode failures become a readable answer string; in streamed mode
// they pass through as error fragments.
type Orchestrator struct {
	generator Generator
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator around generator.
func NewOrchestrator(generator Generator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{generator: generator, logger: logger}
}

// Prompt renders the generation prompt from retrieval context and the query.
func Prompt(contextText, query string) string {
	return fmt.Sprintf(promptTemplate, contextText, query)
}

// Answer produces a complete answer. A backend failure does not surface as an
// error: the caller always gets displayable text.
func (o *Orchestrator) Answer(ctx context.Context, contextText, query string) string {
	text, err := o.generator.Complete(ctx, Prompt(contextText, query))
	if err != nil {
		o.logger.Warn("generation failed", zap.Error(err))
		return fmt.Sprintf("Error processing your request: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return FallbackAnswer
	}
	return text
}

// AnswerStream produces the answer as a fragment stream. The channel closes
// when the answer is complete or after a final error fragment. A backend that
// fails before producing anything yields a single error fragment rather than
// an error return, so callers handle one delivery shape.
func (o *Orchestrator) AnswerStream(ctx context.Context, contextText, query string) <-chan Fragment {
	stream, err := o.generator.CompleteStream(ctx, Prompt(contextText, query))
	if err != nil {
		o.logger.Warn("generation failed", zap.Error(err))
		out := make(chan Fragment, 1)
		out <- Fragment{Err: err}
		close(out)
		return out
	}

	// Relay so a stream that closes without producing any text still
	// delivers the fallback answer.
	out := make(chan Fragment)
	go func() {
		defer close(out)
		sawText := false
		for f := range stream {
			if f.Text != "" {
				sawText = true
			}
			if f.Err != nil {
				o.logger.Warn("generation failed mid-stream", zap.Error(f.Err))
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			if f.Err != nil {
				return
			}
		}
		if !sawText {
			select {
			case out <- Fragment{Text: FallbackAnswer}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}
