package ai

import (
	"context"

	"support-widget-engine/internal/domain/ports/adapter"
	"support-widget-engine/internal/infra/metrics"
)

var _ adapter.AIReplyService = (*trimmedAI)(nil)

// trimmedAI drops the oldest turns until the prompt fits the token
// budget. The leading system message and the newest user message are
// never dropped.
type trimmedAI struct {
	inner    adapter.AIReplyService
	provider string
	budget   int
}

func NewTrimmedAI(inner adapter.AIReplyService, provider string, tokenBudget int) adapter.AIReplyService {
	if tokenBudget <= 0 {
		return inner
	}
	return &trimmedAI{inner: inner, provider: provider, budget: tokenBudget}
}

func (t *trimmedAI) Reply(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	trimmed, tokens := t.trim(ctx, model, messages)
	metrics.ObserveAIContextTokens(t.provider, model, tokens)
	return t.inner.Reply(ctx, model, trimmed)
}

func (t *trimmedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return t.inner.CountTokens(ctx, model, messages)
}

func (t *trimmedAI) trim(ctx context.Context, model string, messages []adapter.Message) ([]adapter.Message, int) {
	msgs := messages
	var pinnedSystem *adapter.Message
	if len(msgs) > 0 && msgs[0].Role == "system" {
		pinnedSystem = &msgs[0]
		msgs = msgs[1:]
	}

	for {
		full := msgs
		if pinnedSystem != nil {
			full = append([]adapter.Message{*pinnedSystem}, msgs...)
		}
		tokens, err := t.inner.CountTokens(ctx, model, full)
		if err != nil {
			// Counting failure must not block the reply.
			return full, 0
		}
		if tokens <= t.budget || len(msgs) <= 1 {
			return full, tokens
		}
		msgs = msgs[1:]
	}
}
