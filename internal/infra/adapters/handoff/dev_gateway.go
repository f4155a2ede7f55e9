package handoff

import (
	"context"
	"fmt"
	"sync/atomic"

	"support-widget-engine/internal/domain/ports/adapter"
)

var _ adapter.HumanHandoffService = (*DevGateway)(nil)

// DevGateway accepts every escalation with a synthetic chat id. Used in
// dev mode and the demo binary when no agent backend is configured.
type DevGateway struct {
	seq atomic.Int64
}

func NewDevGateway() *DevGateway { return &DevGateway{} }

func (g *DevGateway) RequestHandoff(ctx context.Context, req adapter.HandoffRequest) (string, error) {
	return fmt.Sprintf("dev-chat-%d", g.seq.Add(1)), nil
}
