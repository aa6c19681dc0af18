package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fakeOllama(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func decodeGenerateRequest(t *testing.T, r *http.Request) generateRequest {
	t.Helper()
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req
}

func TestOllamaComplete(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		req := decodeGenerateRequest(t, r)
		if req.Stream {
			t.Error("buffered call must set stream=false")
		}
		if req.Model != "qwq" {
			t.Errorf("model: got %q", req.Model)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "the answer", Done: true})
	})

	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	got, err := g.Complete(context.Background(), "some prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestOllamaComplete_ServerError(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	_, err := g.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestOllamaComplete_BackendErrorField(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "out of memory"})
	})

	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	_, err := g.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error should carry the backend message, got %v", err)
	}
}

func TestOllamaCompleteStream(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGenerateRequest(t, r)
		if !req.Stream {
			t.Error("streaming call must set stream=true")
		}
		flusher := w.(http.Flusher)
		for _, piece := range []string{"Hello", " ", "world"} {
			json.NewEncoder(w).Encode(generateResponse{Response: piece})
			flusher.Flush()
		}
		json.NewEncoder(w).Encode(generateResponse{Done: true})
	})

	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	stream, err := g.CompleteStream(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	for f := range stream {
		if f.Err != nil {
			t.Fatalf("unexpected error fragment: %v", f.Err)
		}
		b.WriteString(f.Text)
	}
	if b.String() != "Hello world" {
		t.Errorf("reassembled stream: got %q", b.String())
	}
}

func TestOllamaCompleteStream_MidStreamFailure(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		json.NewEncoder(w).Encode(generateResponse{Response: "partial"})
		flusher.Flush()
		json.NewEncoder(w).Encode(generateResponse{Error: "backend crashed"})
	})

	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	stream, err := g.CompleteStream(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}

	var fragments []Fragment
	for f := range stream {
		fragments = append(fragments, f)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected text then error fragment, got %d fragments", len(fragments))
	}
	if fragments[0].Text != "partial" {
		t.Errorf("first fragment: got %q", fragments[0].Text)
	}
	last := fragments[len(fragments)-1]
	if !errors.Is(last.Err, ErrGeneration) {
		t.Errorf("final fragment must carry ErrGeneration, got %v", last.Err)
	}
}

func TestOllamaCompleteStream_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		json.NewEncoder(w).Encode(generateResponse{Response: "first"})
		flusher.Flush()
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	g := NewOllamaGenerator(srv.URL, "qwq", 5*time.Second)
	stream, err := g.CompleteStream(ctx, "prompt")
	if err != nil {
		t.Fatal(err)
	}

	<-stream
	cancel()

	// The channel must close promptly after cancellation.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestOllamaCompleteStream_ConnectFailure(t *testing.T) {
	g := NewOllamaGenerator("http://127.0.0.1:1", "qwq", time.Second)
	_, err := g.CompleteStream(context.Background(), "prompt")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestOllama_NoRetries(t *testing.T) {
	calls := 0
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	g := NewOllamaGenerator(srv.URL, "qwq", time.Second)
	if _, err := g.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("a failed call must not be retried, saw %d calls", calls)
	}
}

func TestOllamaCompleteStream_SkipsBlankLines(t *testing.T) {
	srv := fakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "\n{\"response\":\"ok\"}\n\n{\"done\":true}\n")
	})

	g := NewOllamaGenerator(srv.URL, "qwq", time.Second)
	stream, err := g.CompleteStream(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for f := range stream {
		if f.Err != nil {
			t.Fatal(f.Err)
		}
		b.WriteString(f.Text)
	}
	if b.String() != "ok" {
		t.Errorf("got %q", b.String())
	}
}
