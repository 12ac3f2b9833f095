// Package translate implements the bidirectional translator between
// the OpenAI Chat Completions schema (internal/chatproto) and the Google
// Generative Language generateContent schema (internal/geminiproto).
package translate

import (
	"encoding/json"
	"strings"

	"gemini-gateway/internal/chatproto"
	"gemini-gateway/internal/geminiproto"
)

var safetyCategories = []string{
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_HARASSMENT",
}

// Request translates an inbound Chat Completions request into the upstream
// generateContent request.
func Request(in *chatproto.ChatCompletionsRequest) *geminiproto.GenerateContentRequest {
	out := &geminiproto.GenerateContentRequest{
		Contents:       buildContents(in.Messages),
		SafetySettings: defaultSafetySettings(),
	}
	if gc := buildGenerationConfig(in); gc != nil {
		out.GenerationConfig = gc
	}
	if tools := buildTools(in.Tools); len(tools) > 0 {
		out.Tools = tools
	}
	return out
}

func defaultSafetySettings() []geminiproto.SafetySetting {
	out := make([]geminiproto.SafetySetting, 0, len(safetyCategories))
	for _, cat := range safetyCategories {
		out = append(out, geminiproto.SafetySetting{Category: cat, Threshold: "BLOCK_NONE"})
	}
	return out
}

// buildContents folds system messages into the first user message and maps
// every remaining message into one contents entry.
func buildContents(messages []chatproto.Message) []geminiproto.Content {
	var systemParts []string
	var rest []chatproto.Message
	for _, m := range messages {
		if m.Role == "system" {
			if strings.TrimSpace(m.Content) != "" {
				systemParts = append(systemParts, m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}

	folded := strings.Join(systemParts, "\n")
	foldedIntoFirstUser := false

	contents := make([]geminiproto.Content, 0, len(rest)+1)
	for _, m := range rest {
		text := m.Content
		if folded != "" && !foldedIntoFirstUser && m.Role == "user" {
			if text != "" {
				text = folded + "\n\n" + text
			} else {
				text = folded
			}
			foldedIntoFirstUser = true
		}
		contents = append(contents, messageToContent(m, text))
	}

	if folded != "" && !foldedIntoFirstUser {
		contents = append([]geminiproto.Content{{
			Role:  "user",
			Parts: []geminiproto.Part{{Text: folded}},
		}}, contents...)
	}

	if len(contents) == 0 {
		contents = append(contents, geminiproto.Content{Role: "user", Parts: []geminiproto.Part{{Text: ""}}})
	}
	return contents
}

func messageToContent(m chatproto.Message, text string) geminiproto.Content {
	var parts []geminiproto.Part

	if text != "" {
		parts = append(parts, geminiproto.Part{Text: text})
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, geminiproto.Part{FunctionCall: &geminiproto.FunctionCall{
			Name: tc.Function.Name,
			Args: normalizeJSON(tc.Function.Arguments),
		}})
	}
	if m.Role == "tool" {
		name := m.Name
		if name == "" {
			name = "unknown_function"
		}
		parts = append(parts, geminiproto.Part{FunctionResponse: &geminiproto.FunctionResponse{
			Name:     name,
			Response: normalizeJSON(m.Content),
		}})
	}
	if len(parts) == 0 {
		parts = []geminiproto.Part{{Text: ""}}
	}

	return geminiproto.Content{Role: mapRole(m.Role), Parts: parts}
}

func mapRole(role string) string {
	switch role {
	case "assistant":
		return "model"
	case "tool":
		return "function"
	case "user":
		return "user"
	default:
		return "user"
	}
}

// normalizeJSON parses s as JSON for embedding as a raw message; a
// non-JSON string is wrapped so functionCall.args / functionResponse.response
// always carry valid JSON, matching what the upstream schema requires.
func normalizeJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	wrapped, _ := json.Marshal(s)
	return wrapped
}

func buildGenerationConfig(in *chatproto.ChatCompletionsRequest) *geminiproto.GenerationConfig {
	var gc geminiproto.GenerationConfig
	set := false

	if in.Temperature != nil {
		t := clamp(*in.Temperature, 0, 2)
		gc.Temperature = &t
		set = true
	}
	if in.TopP != nil {
		p := clamp(*in.TopP, 0, 1)
		gc.TopP = &p
		set = true
	}
	if in.MaxTokens != nil {
		gc.MaxOutputTokens = in.MaxTokens
		set = true
	}
	if stops := decodeStop(in.Stop); len(stops) > 0 {
		gc.StopSequences = stops
		set = true
	}

	if !set {
		return nil
	}
	return &gc
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeStop accepts either a JSON string or a JSON array of strings, per
// the OpenAI "stop" field's two accepted shapes.
func decodeStop(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

func buildTools(tools []chatproto.Tool) []geminiproto.Tool {
	var decls []geminiproto.FunctionDeclaration
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}
		decls = append(decls, geminiproto.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []geminiproto.Tool{{FunctionDeclarations: decls}}
}
