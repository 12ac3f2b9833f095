package gateway

// modelTable maps OpenAI-style model names callers commonly send to the
// upstream Gemini model that serves them. Names absent from the table are
// passed through unchanged.
var modelTable = map[string]string{
	"gpt-4":         "gemini-1.5-pro",
	"gpt-4-turbo":   "gemini-1.5-pro",
	"gpt-4o":        "gemini-1.5-pro",
	"gpt-3.5-turbo": "gemini-1.5-flash",
}

const defaultUpstreamModel = "gemini-1.5-flash"

func upstreamModel(requested string) string {
	if m, ok := modelTable[requested]; ok {
		return m
	}
	if requested != "" {
		return requested
	}
	return defaultUpstreamModel
}
