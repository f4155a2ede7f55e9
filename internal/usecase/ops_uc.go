// File: internal/usecase/ops_uc.go
package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
)

// Compile-time check
var _ OperationCoordinator = (*opsCoordinator)(nil)

// OperationCoordinator tracks in-flight async operations per profile and
// exposes the "should the widget block interaction" signal. A periodic
// sweep (driven by infra/sched) evicts operations that outlive the stuck
// threshold; this is the safety net against a caller that forgot Remove.
type OperationCoordinator interface {
	Add(profileID string, op model.LoadingOperation)
	Remove(profileID, opID string)
	ClearAll(profileID string)
	Active(profileID string) []model.LoadingOperation
	ShouldBlockInteractions(profileID string) bool
	// BlockingOperation returns the highest-priority blocking operation,
	// which determines the loading message shown to the user.
	BlockingOperation(profileID string) (model.LoadingOperation, bool)
	// SweepTicks runs one sweep pass over every active operation and
	// returns how many were evicted as stuck and how many profiles went
	// through emergency recovery because of them.
	SweepTicks() (evicted, recovered int)
	// Recover runs the emergency path for one profile: all operations and
	// their counters are dropped and the interactive surface is forced
	// back on. Throttled per profile.
	Recover(profileID, reason string) bool
}

type trackedOp struct {
	op    model.LoadingOperation
	ticks int
}

// OpsConfig bounds the sweep behavior.
type OpsConfig struct {
	StuckThresholdTicks int           // sweeps an op may survive before eviction
	RecoveryCooldown    time.Duration // min gap between recoveries per profile
}

type opsCoordinator struct {
	mu           sync.Mutex
	ops          map[string]map[string]*trackedOp // profileID -> opID -> op
	lastRecovery map[string]time.Time

	cfg     OpsConfig
	surface adapter.InteractiveSurface
	log     zerolog.Logger
	now     func() time.Time
}

func NewOperationCoordinator(cfg OpsConfig, surface adapter.InteractiveSurface, logger *zerolog.Logger) *opsCoordinator {
	if cfg.StuckThresholdTicks <= 0 {
		cfg.StuckThresholdTicks = 10
	}
	if cfg.RecoveryCooldown <= 0 {
		cfg.RecoveryCooldown = 10 * time.Second
	}
	return &opsCoordinator{
		ops:          make(map[string]map[string]*trackedOp),
		lastRecovery: make(map[string]time.Time),
		cfg:          cfg,
		surface:      surface,
		log:          logger.With().Str("component", "OpsCoordinator").Logger(),
		now:          time.Now,
	}
}

// Add registers an operation. A second registration under the same id
// replaces the first and restarts its tick counter.
func (c *opsCoordinator) Add(profileID string, op model.LoadingOperation) {
	if op.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.ops[profileID]
	if m == nil {
		m = make(map[string]*trackedOp)
		c.ops[profileID] = m
	}
	m[op.ID] = &trackedOp{op: op}
}

func (c *opsCoordinator) Remove(profileID, opID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.ops[profileID]; m != nil {
		delete(m, opID)
		if len(m) == 0 {
			delete(c.ops, profileID)
		}
	}
}

func (c *opsCoordinator) ClearAll(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ops, profileID)
}

func (c *opsCoordinator) Active(profileID string) []model.LoadingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.ops[profileID]
	out := make([]model.LoadingOperation, 0, len(m))
	for _, t := range m {
		out = append(out, t.op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *opsCoordinator) ShouldBlockInteractions(profileID string) bool {
	_, ok := c.BlockingOperation(profileID)
	return ok
}

func (c *opsCoordinator) BlockingOperation(profileID string) (model.LoadingOperation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best model.LoadingOperation
	found := false
	for _, t := range c.ops[profileID] {
		if !t.op.BlockInteractions {
			continue
		}
		if !found || t.op.Priority > best.Priority {
			best = t.op
			found = true
		}
	}
	return best, found
}

func (c *opsCoordinator) SweepTicks() (evicted, recovered int) {
	c.mu.Lock()
	stuckProfiles := make(map[string]bool)
	for profileID, m := range c.ops {
		for opID, t := range m {
			t.ticks++
			if t.ticks > c.cfg.StuckThresholdTicks {
				c.log.Warn().
					Str("profile_id", profileID).
					Str("op_id", opID).
					Str("op_type", string(t.op.Type)).
					Int("ticks", t.ticks).
					Msg("evicting stuck operation")
				delete(m, opID)
				evicted++
				stuckProfiles[profileID] = true
			}
		}
		if len(m) == 0 {
			delete(c.ops, profileID)
		}
	}
	c.mu.Unlock()

	for profileID := range stuckProfiles {
		if c.Recover(profileID, "stuck operations") {
			recovered++
		}
	}
	return evicted, recovered
}

func (c *opsCoordinator) Recover(profileID, reason string) bool {
	c.mu.Lock()
	if last, ok := c.lastRecovery[profileID]; ok && c.now().Sub(last) < c.cfg.RecoveryCooldown {
		c.mu.Unlock()
		return false
	}
	c.lastRecovery[profileID] = c.now()
	delete(c.ops, profileID)
	c.mu.Unlock()

	// The force-unblock runs unconditionally: a wedged widget matters more
	// than a legitimate block we might be cancelling.
	if c.surface != nil {
		c.surface.SetInteractive(profileID, true)
	}
	c.log.Warn().Str("profile_id", profileID).Str("reason", reason).Msg("emergency recovery")
	return true
}
