package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrSessionEnded     = errors.New("session has ended")
	ErrSessionNotActive = errors.New("session is not active")
	ErrQuotaExceeded    = errors.New("message quota exceeded")
	ErrSpamCooldown     = errors.New("send cooldown in effect")
	ErrAwaitingHuman    = errors.New("waiting for a human agent")
	ErrHandoffFailed    = errors.New("human handoff request failed")
	ErrNotIdentified    = errors.New("identification required before sending")
	ErrCorruptState     = errors.New("persisted state unreadable")
)
