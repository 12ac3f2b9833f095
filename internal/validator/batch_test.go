package validator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gemini-gateway/internal/geminiproto"
	"gemini-gateway/internal/mask"
	"gemini-gateway/internal/upstream"
)

// TestBatchPartialFailure covers S6: submitting [g, b] where g is valid and
// b rejects with 401 must yield exactly one GOOD and one BAD verdict.
func TestBatchPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") == "good-credential-aaaaaaa" {
			_ = json.NewEncoder(w).Encode(geminiproto.GenerateContentResponse{})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{
		BaseURL:    srv.URL,
		APIVersion: "v1beta",
		Timeout:    2 * time.Second,
		RetryCount: 0,
		RetryDelay: time.Millisecond,
	})
	v := New(client)

	ids := []string{"good-credential-aaaaaaa", "bad-credential-bbbbbbbb"}
	out := make(chan Verdict)
	go v.Run(context.Background(), ids, out)

	var verdicts []Verdict
	for verdict := range out {
		verdicts = append(verdicts, verdict)
	}

	if len(verdicts) != 2 {
		t.Fatalf("got %d verdicts, want 2", len(verdicts))
	}

	byKey := map[string]Verdict{}
	for _, v := range verdicts {
		byKey[v.Key] = v
	}
	if byKey[mask.Key("good-credential-aaaaaaa")].Status != "GOOD" {
		t.Fatalf("good credential verdict = %+v, want GOOD", byKey[mask.Key("good-credential-aaaaaaa")])
	}
	if byKey[mask.Key("bad-credential-bbbbbbbb")].Status != "BAD" {
		t.Fatalf("bad credential verdict = %+v, want BAD", byKey[mask.Key("bad-credential-bbbbbbbb")])
	}
}

func TestValidateBatchSizeBounds(t *testing.T) {
	if _, ok := ValidateBatchSize(nil); ok {
		t.Fatal("empty batch should be rejected")
	}
	big := make([]string, 51)
	if _, ok := ValidateBatchSize(big); ok {
		t.Fatal("51-credential batch should be rejected")
	}
	if _, ok := ValidateBatchSize([]string{"k"}); !ok {
		t.Fatal("single-credential batch should be accepted")
	}
}
