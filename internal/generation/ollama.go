package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaGenerator calls a local Ollama server's /api/generate endpoint.
// Failed calls are never retried; the caller decides what a failure means.
type OllamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaGenerator creates a generator for the given Ollama server and
// model. timeout bounds a whole call including body streaming.
func NewOllamaGenerator(baseURL, model string, timeout time.Duration) *OllamaGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaGenerator{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (g *OllamaGenerator) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrGeneration, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: server returned %d: %s", ErrGeneration, resp.StatusCode, msg)
	}
	return resp, nil
}

// Complete returns the whole answer in one piece.
func (g *OllamaGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrGeneration, out.Error)
	}
	return out.Response, nil
}

// CompleteStream returns answer fragments as the model produces them. Errors
// before the first fragment are returned directly; a mid-stream failure is
// delivered as a final error fragment and then the channel closes.
func (g *OllamaGenerator) CompleteStream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	resp, err := g.post(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk generateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				g.emit(ctx, out, Fragment{Err: fmt.Errorf("%w: decode stream: %v", ErrGeneration, err)})
				return
			}
			if chunk.Error != "" {
				g.emit(ctx, out, Fragment{Err: fmt.Errorf("%w: %s", ErrGeneration, chunk.Error)})
				return
			}
			if chunk.Response != "" {
				if !g.emit(ctx, out, Fragment{Text: chunk.Response}) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			g.emit(ctx, out, Fragment{Err: fmt.Errorf("%w: read stream: %v", ErrGeneration, err)})
		}
	}()
	return out, nil
}

// emit delivers a fragment unless the consumer has gone away.
func (g *OllamaGenerator) emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
