// Package gateway implements the request orchestrator that binds the
// credential scheduler, the upstream client, and the format translator
// together behind the chat completions HTTP surface.
package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gemini-gateway/internal/chatproto"
	"gemini-gateway/internal/config"
	"gemini-gateway/internal/credential"
	"gemini-gateway/internal/geminiproto"
	"gemini-gateway/internal/metrics"
	"gemini-gateway/internal/translate"
	"gemini-gateway/internal/upstream"
)

// Orchestrator wires the credential scheduler, upstream client, and format
// translator behind the /chat/completions surface.
type Orchestrator struct {
	registry *credential.Registry
	selector *credential.Selector
	upclient *upstream.Client
	live     *config.Live
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewOrchestrator(registry *credential.Registry, selector *credential.Selector, upclient *upstream.Client, live *config.Live, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, selector: selector, upclient: upclient, live: live, metrics: m, logger: logger}
}

// ServeChatCompletions runs the full per-request algorithm: validate the
// inbound request, extract the caller's credential pool, translate and
// dispatch upstream with failover across credentials, translate the
// response back.
func (o *Orchestrator) ServeChatCompletions(w http.ResponseWriter, r *http.Request, bodyLimit int64) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		o.metrics.ObserveRequest(r.URL.Path, status, time.Since(start))
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, bodyLimit))
	if err != nil {
		status = http.StatusBadRequest
		writeValidationError(w, "could not read request body")
		return
	}

	var req chatproto.ChatCompletionsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		status = http.StatusBadRequest
		writeValidationError(w, "request body is not valid JSON")
		return
	}
	if len(req.Messages) == 0 {
		status = http.StatusBadRequest
		writeValidationError(w, "messages must be a non-empty list")
		return
	}

	creds := extractCredentials(r)
	if len(creds) == 0 {
		status = http.StatusUnauthorized
		writeAuthMissing(w)
		return
	}

	now := time.Now()
	for _, id := range creds {
		o.registry.Ensure(id, now)
	}

	upReq := translate.Request(&req)
	model := upstreamModel(req.Model)
	cfg := o.live.Health()
	healthCfg := credential.HealthConfig{
		FailureThreshold:      cfg.FailureThreshold,
		CooldownDuration:      cfg.CooldownDuration,
		ProbesRequiredToClose: cfg.ProbesRequiredToClose,
	}
	policy := credential.Policy(o.live.Policy())

	tried := make(map[string]bool, len(creds))
	attemptBudget := len(creds)

	for attempt := 0; attempt < attemptBudget; attempt++ {
		eligible := o.eligibleUntried(healthCfg, tried)
		rec, err := o.selector.Pick(policy, eligible)
		if err != nil {
			status = http.StatusServiceUnavailable
			writeNoCredentialAvailable(w)
			return
		}
		tried[rec.ID()] = true
		rec.OnRequest(time.Now())

		if req.Stream {
			committed, serr := o.serveStreaming(w, r, rec, healthCfg, upReq, model)
			if committed {
				status = http.StatusOK
				if serr == nil {
					o.metrics.ObserveSelection(string(policy), "success")
				} else {
					o.metrics.ObserveSelection(string(policy), "failure")
				}
				return
			}

			o.metrics.ObserveSelection(string(policy), "failure")
			if !o.shouldFailover(serr) || attempt == attemptBudget-1 {
				status = statusForError(w, serr)
				return
			}
			continue
		}

		ctx := r.Context()
		resp, err := o.upclient.Generate(ctx, model, upReq, rec.ID())
		rec.DecInFlight()
		if err == nil {
			rec.OnSuccess(healthCfg, time.Now())
			o.metrics.ObserveSelection(string(policy), "success")
			out := translate.Response(resp, translate.ReverseModel(modelTable, model))
			writeJSON(w, http.StatusOK, out)
			return
		}

		rec.OnFailure(healthCfg, time.Now())
		o.metrics.ObserveSelection(string(policy), "failure")

		if !o.shouldFailover(err) || attempt == attemptBudget-1 {
			status = statusForError(w, err)
			return
		}
	}
}

// eligibleUntried restricts the eligible set to credentials not already
// attempted in this request, preserving registration order.
func (o *Orchestrator) eligibleUntried(cfg credential.HealthConfig, tried map[string]bool) []*credential.Record {
	all := o.registry.Eligible(cfg, time.Now())
	out := make([]*credential.Record, 0, len(all))
	for _, rec := range all {
		if !tried[rec.ID()] {
			out = append(out, rec)
		}
	}
	return out
}

// serveStreaming performs the streaming branch. committed reports whether
// any response bytes (even just headers) have been written: once true, the
// caller must not attempt failover or write its own error response, since
// the client has already seen this attempt commit. A false committed with
// a non-nil err means the upstream call failed before anything was sent,
// so the caller is free to retry with another credential.
func (o *Orchestrator) serveStreaming(w http.ResponseWriter, r *http.Request, rec *credential.Record, healthCfg credential.HealthConfig, upReq *geminiproto.GenerateContentRequest, model string) (committed bool, err error) {
	body, err := o.upclient.Stream(r.Context(), model, upReq, rec.ID())
	rec.DecInFlight()
	if err != nil {
		rec.OnFailure(healthCfg, time.Now())
		return false, err
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := translate.Stream(w, body, model, o.logger); err != nil {
		rec.OnFailure(healthCfg, time.Now())
		o.logger.Warn("stream closed early", "error", err)
		return true, err
	}
	rec.OnSuccess(healthCfg, time.Now())
	return true, nil
}

// shouldFailover decides whether the orchestrator should try the next
// eligible credential: true for CredentialRejected, Timeout, Network,
// Parse, a 5xx, or a 429 (the upstream's own credential-scoped rate
// limit, which another credential may not be subject to); otherwise
// surface the error verbatim.
func (o *Orchestrator) shouldFailover(err error) bool {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		return false
	}
	switch upErr.Kind {
	case upstream.KindCredentialRejected, upstream.KindTimeout, upstream.KindNetwork, upstream.KindParse:
		return true
	case upstream.KindUpstreamStatus:
		return upErr.Status >= 500 || upErr.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

func statusForError(w http.ResponseWriter, err error) int {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		writeError(w, http.StatusInternalServerError, "api_error", "network_error", err.Error(), nil)
		return http.StatusInternalServerError
	}

	switch upErr.Kind {
	case upstream.KindTimeout:
		writeUpstreamError(w, http.StatusGatewayTimeout, "api_error", "upstream_timeout", upErr.Error())
		return http.StatusGatewayTimeout
	case upstream.KindNetwork:
		writeUpstreamError(w, http.StatusInternalServerError, "api_error", "network_error", upErr.Error())
		return http.StatusInternalServerError
	case upstream.KindParse:
		writeUpstreamError(w, http.StatusInternalServerError, "api_error", "parse_error", upErr.Error())
		return http.StatusInternalServerError
	case upstream.KindCredentialRejected:
		writeUpstreamError(w, upErr.Status, "authentication_error", "credential_rejected", upErr.Error())
		return upErr.Status
	case upstream.KindUpstreamStatus:
		status := upErr.Status
		if status < 100 || status > 599 {
			status = http.StatusBadGateway
		}
		writeUpstreamError(w, status, "api_error", "upstream_error", upErr.Error())
		return status
	default:
		writeError(w, http.StatusInternalServerError, "api_error", "unknown_error", upErr.Error(), nil)
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
