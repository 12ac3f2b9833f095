package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gemini-gateway/internal/geminiproto"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		APIVersion: "v1beta",
		Timeout:    2 * time.Second,
		RetryCount: 2,
		RetryDelay: 5 * time.Millisecond,
	}
}

func TestGenerateSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "kA" {
			t.Errorf("x-goog-api-key = %q, want kA", got)
		}
		_ = json.NewEncoder(w).Encode(geminiproto.GenerateContentResponse{
			Candidates: []geminiproto.Candidate{{Content: geminiproto.Content{Parts: []geminiproto.Part{{Text: "ok"}}}}},
		})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	resp, err := c.Generate(context.Background(), "gemini-1.5-pro", &geminiproto.GenerateContentRequest{}, "kA")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Candidates) != 1 || resp.Candidates[0].Content.Parts[0].Text != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGenerateRetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(geminiproto.GenerateContentResponse{})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), "m", &geminiproto.GenerateContentRequest{}, "kA")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (2 failures + 1 success)", got)
	}
}

func TestGenerateDoesNotRetryOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), "m", &geminiproto.GenerateContentRequest{}, "kA")
	if err == nil {
		t.Fatal("expected error")
	}
	var upErr *Error
	if !asUpstreamError(err, &upErr) {
		t.Fatalf("error is not *Error: %v", err)
	}
	if upErr.Kind != KindCredentialRejected {
		t.Fatalf("kind = %v, want CredentialRejected", upErr.Kind)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 401)", got)
	}
}

func TestGenerateDoesNotRetryOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Generate(context.Background(), "m", &geminiproto.GenerateContentRequest{}, "kA")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (404 is non-retryable)", got)
	}
}

func TestStreamReturnsRawBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"candidates\":[]}\n\n"))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	body, err := c.Stream(context.Background(), "m", &geminiproto.GenerateContentRequest{}, "kA")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer body.Close()
}

func TestStreamClassifiesCredentialRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Stream(context.Background(), "m", &geminiproto.GenerateContentRequest{}, "kA")
	var upErr *Error
	if !asUpstreamError(err, &upErr) || upErr.Kind != KindCredentialRejected {
		t.Fatalf("err = %v, want CredentialRejected", err)
	}
}

func asUpstreamError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
