package gateway

import (
	"encoding/json"
	"net/http"

	"gemini-gateway/internal/validator"
)

// ServeVerify probes every credential in the request's header, streaming
// one SSE verdict per credential as it resolves.
func (o *Orchestrator) ServeVerify(w http.ResponseWriter, r *http.Request, v *validator.Validator) {
	creds := extractCredentials(r)
	if len(creds) == 0 {
		writeAuthMissing(w)
		return
	}
	if _, ok := validator.ValidateBatchSize(creds); !ok {
		writeValidationError(w, "credential list must contain between 1 and 50 entries")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "api_error", "streaming_unsupported", "response writer does not support flushing", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	out := make(chan validator.Verdict)
	go v.Run(r.Context(), creds, out)

	for verdict := range out {
		b, _ := json.Marshal(verdict)
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
