package ai

import (
	"context"

	"support-widget-engine/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIReplyService = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.AIReplyService
	sem   chan struct{}
}

// NewLimitedAI caps concurrent calls to the provider. Excess callers
// block until a slot frees up or their context is cancelled.
func NewLimitedAI(inner adapter.AIReplyService, maxConcurrent int) adapter.AIReplyService {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Reply(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Reply(ctx, model, messages)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}
