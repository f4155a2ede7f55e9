package adapter

import "context"

// Message represents one entry of the context sent to the reply provider.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// AIReplyService is the port for generating assistant replies. The engine
// treats it as an opaque asynchronous call; the simulated implementation
// stands in for a real provider with a random delay.
type AIReplyService interface {
	// Reply returns only the assistant text.
	Reply(ctx context.Context, model string, messages []Message) (string, error)

	// CountTokens must return prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
