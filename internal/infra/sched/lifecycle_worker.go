package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/infra/metrics"
	"support-widget-engine/internal/usecase"
)

// LifecycleWorker applies the idle, max-duration and handoff timers to
// every unfinished session.
type LifecycleWorker struct {
	interval  time.Duration
	lifecycle usecase.LifecycleUseCase
	log       *zerolog.Logger
}

func NewLifecycleWorker(interval time.Duration, lifecycle usecase.LifecycleUseCase, logger *zerolog.Logger) *LifecycleWorker {
	compLog := logger.With().Str("component", "LifecycleWorker").Logger()
	return &LifecycleWorker{
		interval:  interval,
		lifecycle: lifecycle,
		log:       &compLog,
	}
}

func (w *LifecycleWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting lifecycle worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping lifecycle worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *LifecycleWorker) runSweep(ctx context.Context) {
	res, err := w.lifecycle.SweepTimeouts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("lifecycle sweep failed")
		return
	}
	for i := 0; i < res.IdledOut; i++ {
		metrics.IncLifecycleTransition("idle_timeout")
	}
	for i := 0; i < res.MaxedOut; i++ {
		metrics.IncLifecycleTransition("max_session")
	}
	for i := 0; i < res.HandoffExpired; i++ {
		metrics.IncLifecycleTransition("active")
	}
	if res.IdledOut+res.MaxedOut+res.HandoffExpired > 0 {
		w.log.Info().
			Int("idled_out", res.IdledOut).
			Int("maxed_out", res.MaxedOut).
			Int("handoff_expired", res.HandoffExpired).
			Msg("lifecycle sweep applied")
	}
}
