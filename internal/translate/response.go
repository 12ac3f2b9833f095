package translate

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"gemini-gateway/internal/chatproto"
	"gemini-gateway/internal/geminiproto"
)

const apologyText = "I apologize, but I was unable to generate a response due to content filtering."

// Response translates a buffered upstream generateContent response into an
// OpenAI-compatible chat completion. model is the value to echo back in the
// response envelope (the result of applying the reverse model table, done
// by the caller).
func Response(up *geminiproto.GenerateContentResponse, model string) *chatproto.ChatCompletionResponse {
	out := &chatproto.ChatCompletionResponse{
		ID:      "chatcmpl-" + randomHex(32),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}

	if len(up.Candidates) == 0 {
		reason := "content_filter"
		out.Choices = []chatproto.Choice{{
			Index:        0,
			Message:      chatproto.ChoiceMessage{Role: "assistant", Content: apologyText},
			FinishReason: &reason,
		}}
		return out
	}

	out.Choices = make([]chatproto.Choice, 0, len(up.Candidates))
	for i, cand := range up.Candidates {
		idx := i
		if cand.Index != nil {
			idx = *cand.Index
		}
		out.Choices = append(out.Choices, candidateToChoice(idx, cand))
	}

	if up.UsageMetadata != nil {
		out.Usage = chatproto.Usage{
			PromptTokens:     up.UsageMetadata.PromptTokenCount,
			CompletionTokens: up.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      up.UsageMetadata.TotalTokenCount,
		}
	}
	return out
}

func candidateToChoice(idx int, cand geminiproto.Candidate) chatproto.Choice {
	var text strings.Builder
	var toolCalls []chatproto.ToolCall

	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args := "{}"
			if len(part.FunctionCall.Args) > 0 {
				args = string(part.FunctionCall.Args)
			}
			toolCalls = append(toolCalls, chatproto.ToolCall{
				ID:   "call_" + randomHex(32),
				Type: "function",
				Function: chatproto.ToolCallFunc{
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			})
		}
	}

	return chatproto.Choice{
		Index: idx,
		Message: chatproto.ChoiceMessage{
			Role:      "assistant",
			Content:   text.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: mapFinishReason(cand.FinishReason),
	}
}

// mapFinishReason maps an upstream finish reason to its OpenAI-compatible
// equivalent. An absent upstream reason maps to a nil pointer, not the
// string "null".
func mapFinishReason(reason string) *string {
	var mapped string
	switch reason {
	case "":
		return nil
	case "STOP":
		mapped = "stop"
	case "MAX_TOKENS":
		mapped = "length"
	case "SAFETY", "RECITATION":
		mapped = "content_filter"
	case "OTHER":
		mapped = "stop"
	default:
		mapped = "stop"
	}
	return &mapped
}

func randomHex(n int) string {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; fall back to a fixed-but-unique-enough marker rather
		// than panicking the request.
		return hex.EncodeToString([]byte(time.Now().String()))[:n]
	}
	return hex.EncodeToString(buf)
}

// ReverseModel applies table in reverse to translate an upstream model name
// back to what the caller originally requested, leaving it unchanged if no
// mapping exists. table maps inbound model name -> upstream model name.
func ReverseModel(table map[string]string, inboundModel string) string {
	for in, up := range table {
		if up == inboundModel {
			return in
		}
	}
	return inboundModel
}
