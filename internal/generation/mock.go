package generation

import (
	"context"
	"strings"
)

// MockGenerator is a deterministic generator for tests and offline setups. It
// echoes the last line of the prompt, word by word when streaming.
type MockGenerator struct {
	// Reply overrides the echo when set.
	Reply string
	// Err makes every call fail.
	Err error
}

func (m *MockGenerator) reply(prompt string) string {
	if m.Reply != "" {
		return m.Reply
	}
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	return lines[len(lines)-1]
}

func (m *MockGenerator) Complete(_ context.Context, prompt string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.reply(prompt), nil
}

func (m *MockGenerator) CompleteStream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	words := strings.Fields(m.reply(prompt))
	out := make(chan Fragment)
	go func() {
		defer close(out)
		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			select {
			case out <- Fragment{Text: w}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
