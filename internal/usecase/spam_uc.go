// File: internal/usecase/spam_uc.go
package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain/ports/adapter"
)

// Compile-time check
var _ SpamGuardUseCase = (*spamGuardUC)(nil)

// SpamGuardUseCase enforces a flat minimum delay between accepted sends
// per profile. Purely time-based; no backoff growth across violations.
type SpamGuardUseCase interface {
	CanSend(profileID string) bool
	RecordSend(profileID string)
	// CheckSpamAttempt reports true (blocked) while the cooldown is still
	// running, emitting a cooldown notice with the remaining time.
	CheckSpamAttempt(profileID string) bool
	// ResetCooldown clears the profile's stamp; called when the
	// conversation ends.
	ResetCooldown(profileID string)
}

type spamGuardUC struct {
	mu       sync.Mutex
	lastSend map[string]time.Time

	minDelay time.Duration
	notifier adapter.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewSpamGuardUseCase(minDelay time.Duration, notifier adapter.Notifier, logger *zerolog.Logger) *spamGuardUC {
	if minDelay <= 0 {
		minDelay = 2 * time.Second
	}
	return &spamGuardUC{
		lastSend: make(map[string]time.Time),
		minDelay: minDelay,
		notifier: notifier,
		log:      logger.With().Str("component", "SpamGuardUC").Logger(),
		now:      time.Now,
	}
}

func (s *spamGuardUC) remaining(profileID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSend[profileID]
	if !ok {
		return 0
	}
	if left := s.minDelay - s.now().Sub(last); left > 0 {
		return left
	}
	return 0
}

func (s *spamGuardUC) CanSend(profileID string) bool {
	return s.remaining(profileID) == 0
}

func (s *spamGuardUC) RecordSend(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSend[profileID] = s.now()
}

func (s *spamGuardUC) CheckSpamAttempt(profileID string) bool {
	left := s.remaining(profileID)
	if left == 0 {
		return false
	}
	s.log.Debug().Str("profile_id", profileID).Dur("cooldown_left", left).Msg("send blocked by cooldown")
	if s.notifier != nil {
		secs := int(left.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		s.notifier.Notify(profileID, adapter.Notice{
			Kind: adapter.NoticeCooldown,
			Text: fmt.Sprintf("You're sending messages too quickly. Wait %ds and try again.", secs),
		})
	}
	return true
}

func (s *spamGuardUC) ResetCooldown(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSend, profileID)
}
