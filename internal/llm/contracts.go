// Package llm holds the completion-endpoint contract shared by the
// classification, analysis, and insight stages, plus the defensive parsing
// of model output into JSON.
package llm

import "context"

// Message is one chat turn sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat-completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Completer is the interface the pipeline stages depend on. Implementations
// must honor ctx deadlines; callers bound every request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// TruncateRunes bounds text to at most max runes. Prompts carry a bounded
// prefix of the document; the full text is retained elsewhere.
func TruncateRunes(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
