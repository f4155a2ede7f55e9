package ai

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"support-widget-engine/internal/domain/ports/adapter"
)

var _ adapter.AIReplyService = (*SimulatedAdapter)(nil)

// SimulatedAdapter stands in for a real provider in dev and demo runs.
// It picks a canned reply and sleeps a random interval so the async
// reply path behaves like a network call.
type SimulatedAdapter struct {
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

var cannedReplies = []string{
	"Thanks for reaching out! Could you tell me a bit more about what you're seeing?",
	"I understand. Let me look into that for you.",
	"That should be covered in your account settings. Have you checked the billing tab?",
	"Got it. Is there anything else I can help you with?",
	"I'm sorry you're running into this. Could you share the exact error message?",
}

func NewSimulatedAdapter(minLatency, maxLatency time.Duration) *SimulatedAdapter {
	if minLatency <= 0 {
		minLatency = 300 * time.Millisecond
	}
	if maxLatency < minLatency {
		maxLatency = minLatency + 700*time.Millisecond
	}
	return &SimulatedAdapter{
		minLatency: minLatency,
		maxLatency: maxLatency,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimulatedAdapter) Reply(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	s.mu.Lock()
	delay := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)+1))
	reply := cannedReplies[s.rng.Intn(len(cannedReplies))]
	s.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return reply, nil
}

// CountTokens estimates with the usual ~4 chars per token heuristic.
func (s *SimulatedAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		n := len(strings.TrimSpace(m.Content)) / 4
		if n < 1 {
			n = 1
		}
		total += n + 4 // role and separator overhead
	}
	return total, nil
}
