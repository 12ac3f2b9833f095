package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gemini-gateway/internal/geminiproto"
)

// Config holds the upstream client's tunables.
type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
}

// Client performs unary and streaming generateContent calls. It holds no
// per-credential state — the credential is supplied per call.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Generate performs a unary generateContent call with linear backoff:
// up to cfg.RetryCount retries, delay retry_delay*(attempt+1), retrying
// only on errors classified Retryable.
func (c *Client) Generate(ctx context.Context, model string, req *geminiproto.GenerateContentRequest, credential string) (*geminiproto.GenerateContentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}

	var lastErr error
	attempts := c.cfg.RetryCount + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
			}
		}

		resp, err := c.doUnary(ctx, model, body, credential)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		var upErr *Error
		if errors.As(err, &upErr) && !upErr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doUnary(ctx context.Context, model string, body []byte, credential string) (*geminiproto.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := c.buildURL(model, "generateContent", false)
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var out geminiproto.GenerateContentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}
	return &out, nil
}

// Stream performs a streaming generateContent call and returns the raw
// upstream response body (SSE bytes) for the caller to translate and
// pass through. It does not retry internally — the orchestrator retries
// at a higher level by picking a different credential.
func (c *Client) Stream(ctx context.Context, model string, req *geminiproto.GenerateContentRequest, credential string) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}

	url := c.buildURL(model, "streamGenerateContent", true)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, respBody)
	}
	return resp.Body, nil
}

func (c *Client) buildURL(model, method string, sse bool) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	url := fmt.Sprintf("%s/%s/models/%s:%s", base, c.cfg.APIVersion, model, method)
	if sse {
		url += "?alt=sse"
	}
	return url
}

// classifyStatus maps a non-200 upstream response to an error Kind: 401/403
// are CredentialRejected; everything else is UpstreamStatus.
func classifyStatus(status int, body []byte) *Error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &Error{Kind: KindCredentialRejected, Status: status, Body: string(body)}
	}
	return &Error{Kind: KindUpstreamStatus, Status: status, Body: string(body)}
}
