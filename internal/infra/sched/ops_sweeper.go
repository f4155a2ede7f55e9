package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/infra/metrics"
	"support-widget-engine/internal/usecase"
)

// OpsSweeper drives the stuck-operation detector: every interval is one
// tick, and operations outliving the threshold get evicted with an
// emergency recovery for their profile.
type OpsSweeper struct {
	interval time.Duration
	ops      usecase.OperationCoordinator
	log      *zerolog.Logger
}

func NewOpsSweeper(interval time.Duration, ops usecase.OperationCoordinator, logger *zerolog.Logger) *OpsSweeper {
	compLog := logger.With().Str("component", "OpsSweeper").Logger()
	return &OpsSweeper{
		interval: interval,
		ops:      ops,
		log:      &compLog,
	}
}

func (w *OpsSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting ops sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping ops sweeper")
			return ctx.Err()
		case <-ticker.C:
			evicted, recovered := w.ops.SweepTicks()
			if evicted > 0 {
				metrics.AddStuckEvictions(evicted)
				w.log.Warn().Int("evicted", evicted).Int("recovered", recovered).Msg("stuck operations evicted")
			}
			for i := 0; i < recovered; i++ {
				metrics.IncEmergencyRecovery("sweep")
			}
		}
	}
}
