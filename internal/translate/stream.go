package translate

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gemini-gateway/internal/chatproto"
	"gemini-gateway/internal/geminiproto"
)

// Stream reads raw upstream SSE bytes from r and writes translated OpenAI
// chat.completion.chunk SSE events to w. It flushes after every event it
// writes and terminates the downstream stream with "data: [DONE]\n\n" once
// r is exhausted.
//
// Parse errors on an individual upstream event are logged and skipped; the
// stream continues uninterrupted rather than aborting the connection.
func Stream(w http.ResponseWriter, r io.Reader, model string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return io.ErrClosedPipe
	}

	id := "chatcmpl-" + randomHex(32)
	created := time.Now().Unix()

	br := bufio.NewReader(r)
	for {
		block, err := readSSEBlock(br)
		if err != nil && block == "" {
			if err == io.EOF {
				break
			}
			return err
		}

		data := extractSSEData(block)
		if data == "" {
			if err == io.EOF {
				break
			}
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk geminiproto.StreamChunk
		if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr != nil {
			logger.Warn("skipping unparseable upstream stream event", "error", jsonErr)
			if err == io.EOF {
				break
			}
			continue
		}

		if out := chunkToDelta(&chunk, id, created, model); out != nil {
			writeOpenAIChunk(w, out)
			flusher.Flush()
		}

		if err == io.EOF {
			break
		}
	}

	writeDoneEvent(w)
	flusher.Flush()
	return nil
}

func chunkToDelta(chunk *geminiproto.StreamChunk, id string, created int64, model string) *chatproto.ChatCompletionChunk {
	if len(chunk.Candidates) == 0 {
		return nil
	}
	cand := chunk.Candidates[0]

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}

	return &chatproto.ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []chatproto.ChunkChoice{{
			Index:        0,
			Delta:        chatproto.Delta{Content: text.String()},
			FinishReason: mapFinishReason(cand.FinishReason),
		}},
	}
}

func writeOpenAIChunk(w http.ResponseWriter, chunk *chatproto.ChatCompletionChunk) {
	b, _ := json.Marshal(chunk)
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n\n"))
}

func writeDoneEvent(w http.ResponseWriter) {
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
}

// readSSEBlock reads up to and including the blank line terminating one SSE
// event, returning its raw lines. It tolerates a final block with no
// trailing blank line by returning it alongside io.EOF.
func readSSEBlock(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), io.EOF
			}
			return "", err
		}
		if line == "\n" || line == "\r\n" {
			return b.String(), nil
		}
		b.WriteString(line)
	}
}

// extractSSEData collects every "data:" line in block, per the SSE spec's
// multi-line-data folding (joined with "\n").
func extractSSEData(block string) string {
	lines := strings.Split(block, "\n")
	var dataLines []string
	for _, ln := range lines {
		ln = strings.TrimRight(ln, "\r")
		if strings.HasPrefix(ln, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(ln, "data:")))
		}
	}
	return strings.TrimSpace(strings.Join(dataLines, "\n"))
}
