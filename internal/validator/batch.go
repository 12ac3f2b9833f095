// Package validator implements the batch credential validator: it
// probes a submitted list of credentials with bounded concurrency and
// streams per-credential verdicts back as they resolve.
package validator

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gemini-gateway/internal/geminiproto"
	"gemini-gateway/internal/mask"
	"gemini-gateway/internal/upstream"
)

const (
	maxBatchSize     = 50
	maxConcurrency   = 10
	probeTimeout     = 15 * time.Second
	probeModel       = "gemini-1.5-flash"
)

// Verdict is one probe's outcome.
type Verdict struct {
	Key          string `json:"key"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ResponseTime int64  `json:"responseTime"`
}

// Validator runs credential probes against the upstream client.
type Validator struct {
	client *upstream.Client
}

func New(client *upstream.Client) *Validator {
	return &Validator{client: client}
}

// Run probes every credential in ids (truncated to maxBatchSize extras
// dropped by the caller's own validation) with maxConcurrency parallelism,
// processed in arrival-order batches of maxConcurrency, sending each
// verdict to out as soon as it resolves.
func (v *Validator) Run(ctx context.Context, ids []string, out chan<- Verdict) {
	defer close(out)

	for start := 0; start < len(ids); start += maxConcurrency {
		end := start + maxConcurrency
		if end > len(ids) {
			end = len(ids)
		}
		v.runBatch(ctx, ids[start:end], out)
	}
}

func (v *Validator) runBatch(ctx context.Context, batch []string, out chan<- Verdict) {
	var wg sync.WaitGroup
	for _, id := range batch {
		wg.Add(1)
		go func(credential string) {
			defer wg.Done()
			out <- v.probe(ctx, credential)
		}(id)
	}
	wg.Wait()
}

func (v *Validator) probe(ctx context.Context, credential string) Verdict {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req := &geminiproto.GenerateContentRequest{
		Contents: []geminiproto.Content{{
			Role:  "user",
			Parts: []geminiproto.Part{{Text: "Hello"}},
		}},
	}

	_, err := v.client.Generate(probeCtx, probeModel, req, credential)
	elapsed := time.Since(start).Milliseconds()

	verdict := Verdict{Key: mask.Key(credential), ResponseTime: elapsed}
	if err == nil {
		verdict.Status = "GOOD"
		return verdict
	}

	var upErr *upstream.Error
	if e, ok := err.(*upstream.Error); ok {
		upErr = e
	}
	switch {
	case upErr != nil && (upErr.Kind == upstream.KindTimeout || upErr.Kind == upstream.KindNetwork):
		verdict.Status = "ERROR"
	default:
		verdict.Status = "BAD"
	}
	verdict.Error = err.Error()
	return verdict
}

// MaxBatchSize reports the largest accepted batch.
func MaxBatchSize() int { return maxBatchSize }

// ValidateBatchSize enforces the 1-50 bound on a credential batch.
func ValidateBatchSize(ids []string) (int, bool) {
	if len(ids) == 0 || len(ids) > maxBatchSize {
		return http.StatusBadRequest, false
	}
	return 0, true
}
