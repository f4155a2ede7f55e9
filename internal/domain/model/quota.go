package model

import "time"

type QuotaWindow string

// Priority order for exceeded / warning messages.
const (
	QuotaDaily   QuotaWindow = "daily"
	QuotaHourly  QuotaWindow = "hourly"
	QuotaSession QuotaWindow = "session"
)

// QuotaConfig is passed by value; per-window enable flags and limits.
type QuotaConfig struct {
	DailyEnabled   bool
	HourlyEnabled  bool
	SessionEnabled bool

	DailyLimit   int
	HourlyLimit  int
	SessionLimit int

	WarningThreshold int
}

// QuotaState holds the persisted counters for one profile. Counts only
// grow within a window and reset exactly once when the window boundary
// is crossed.
type QuotaState struct {
	DailyCount    int    `json:"dailyCount"`
	HourlyCount   int    `json:"hourlyCount"`
	SessionCount  int    `json:"sessionCount"`
	LastResetDate string `json:"lastResetDate"` // YYYY-MM-DD
	LastResetHour int    `json:"lastResetHour"`
}

func NewQuotaState(now time.Time) *QuotaState {
	return &QuotaState{
		LastResetDate: now.Format("2006-01-02"),
		LastResetHour: now.Hour(),
	}
}

// RollWindows applies the window-crossing rule: a day change zeroes both
// the daily and hourly counts, an hour change zeroes the hourly count only.
// Returns true when anything was reset.
func (q *QuotaState) RollWindows(now time.Time) bool {
	date := now.Format("2006-01-02")
	if date != q.LastResetDate {
		q.DailyCount = 0
		q.HourlyCount = 0
		q.LastResetDate = date
		q.LastResetHour = now.Hour()
		return true
	}
	if now.Hour() != q.LastResetHour {
		q.HourlyCount = 0
		q.LastResetHour = now.Hour()
		return true
	}
	return false
}

func (q *QuotaState) Increment() {
	q.DailyCount++
	q.HourlyCount++
	q.SessionCount++
}

// ResetSession zeroes the session counter only.
func (q *QuotaState) ResetSession() {
	q.SessionCount = 0
}

func remaining(limit, count int) int {
	if r := limit - count; r > 0 {
		return r
	}
	return 0
}

// Remaining reports max(0, limit-count) for one window. Disabled windows
// report -1 so callers can skip them.
func (q *QuotaState) Remaining(cfg QuotaConfig, w QuotaWindow) int {
	switch w {
	case QuotaDaily:
		if !cfg.DailyEnabled {
			return -1
		}
		return remaining(cfg.DailyLimit, q.DailyCount)
	case QuotaHourly:
		if !cfg.HourlyEnabled {
			return -1
		}
		return remaining(cfg.HourlyLimit, q.HourlyCount)
	case QuotaSession:
		if !cfg.SessionEnabled {
			return -1
		}
		return remaining(cfg.SessionLimit, q.SessionCount)
	}
	return -1
}

// Exceeded returns the first exhausted enabled window in priority order
// (daily, hourly, session), or "" when none is exhausted.
func (q *QuotaState) Exceeded(cfg QuotaConfig) QuotaWindow {
	for _, w := range []QuotaWindow{QuotaDaily, QuotaHourly, QuotaSession} {
		if q.Remaining(cfg, w) == 0 {
			return w
		}
	}
	return ""
}
