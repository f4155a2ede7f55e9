//go:build !integration

package model

import (
	"testing"
	"time"
)

// --- Session Model Tests ---

func TestNewSession(t *testing.T) {
	s := NewSession("sess-1", "profile-1")

	if s.Status != SessionActive {
		t.Errorf("expected initial status active, got %s", s.Status)
	}
	if len(s.Messages) != 0 {
		t.Errorf("expected empty transcript, got %d messages", len(s.Messages))
	}
	if s.CreatedAt.IsZero() || s.LastInteractionAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestSessionAddMessagePreservesOrder(t *testing.T) {
	s := NewSession("sess-1", "profile-1")
	for _, id := range []string{"a", "b", "c"} {
		s.AddMessage(Message{ID: id, Type: MessageUser, Content: id, Timestamp: time.Now()})
	}
	if len(s.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(s.Messages))
	}
	for i, want := range []string{"a", "b", "c"} {
		if s.Messages[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, s.Messages[i].ID)
		}
	}
}

func TestSessionFirstReplyStamp(t *testing.T) {
	s := NewSession("sess-1", "profile-1")
	first := time.Now().Add(-time.Minute)
	s.AddMessage(Message{ID: "r1", Type: MessageAI, Content: "hi", Timestamp: first})
	s.AddMessage(Message{ID: "r2", Type: MessageAI, Content: "again", Timestamp: time.Now()})

	if !s.FirstReplyAt.Equal(first) {
		t.Errorf("FirstReplyAt should stick to the first AI reply, got %v", s.FirstReplyAt)
	}
}

func TestSessionPendingUserMessages(t *testing.T) {
	s := NewSession("sess-1", "profile-1")
	s.AddMessage(Message{ID: "m1", Type: MessageUser, Content: "one", IsPending: true})
	s.AddMessage(Message{ID: "p1", Type: MessageIdentifyPrompt})
	s.AddMessage(Message{ID: "m2", Type: MessageUser, Content: "two", IsPending: true})
	s.AddMessage(Message{ID: "m3", Type: MessageUser, Content: "three"})

	pending := s.PendingUserMessages()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != "m1" || pending[1].ID != "m2" {
		t.Errorf("pending messages out of order: %s, %s", pending[0].ID, pending[1].ID)
	}
}

// --- Quota Model Tests ---

func quotaCfg() QuotaConfig {
	return QuotaConfig{
		DailyEnabled: true, HourlyEnabled: true, SessionEnabled: true,
		DailyLimit: 5, HourlyLimit: 4, SessionLimit: 3,
		WarningThreshold: 1,
	}
}

func TestQuotaRemainingNeverNegative(t *testing.T) {
	cfg := quotaCfg()
	q := NewQuotaState(time.Now())
	for i := 0; i < 10; i++ {
		q.Increment()
		for _, w := range []QuotaWindow{QuotaDaily, QuotaHourly, QuotaSession} {
			if r := q.Remaining(cfg, w); r < 0 {
				t.Fatalf("remaining %s went negative after %d increments: %d", w, i+1, r)
			}
		}
	}
	if q.Remaining(cfg, QuotaSession) != 0 {
		t.Errorf("expected session remaining 0, got %d", q.Remaining(cfg, QuotaSession))
	}
}

func TestQuotaRemainingDisabledWindow(t *testing.T) {
	cfg := quotaCfg()
	cfg.HourlyEnabled = false
	q := NewQuotaState(time.Now())
	if r := q.Remaining(cfg, QuotaHourly); r != -1 {
		t.Errorf("disabled window should report -1, got %d", r)
	}
}

func TestQuotaRollWindows(t *testing.T) {
	base := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)

	t.Run("day change resets daily and hourly", func(t *testing.T) {
		q := NewQuotaState(base)
		q.DailyCount, q.HourlyCount, q.SessionCount = 4, 2, 1
		if !q.RollWindows(base.Add(24 * time.Hour)) {
			t.Fatal("expected a reset on day crossing")
		}
		if q.DailyCount != 0 || q.HourlyCount != 0 {
			t.Errorf("expected daily+hourly zeroed, got %d/%d", q.DailyCount, q.HourlyCount)
		}
		if q.SessionCount != 1 {
			t.Errorf("session count must not be touched, got %d", q.SessionCount)
		}
	})

	t.Run("hour change resets hourly only", func(t *testing.T) {
		q := NewQuotaState(base)
		q.DailyCount, q.HourlyCount = 4, 2
		if !q.RollWindows(base.Add(time.Hour)) {
			t.Fatal("expected a reset on hour crossing")
		}
		if q.HourlyCount != 0 {
			t.Errorf("expected hourly zeroed, got %d", q.HourlyCount)
		}
		if q.DailyCount != 4 {
			t.Errorf("daily must never reset on hour crossing, got %d", q.DailyCount)
		}
	})

	t.Run("same window is a no-op", func(t *testing.T) {
		q := NewQuotaState(base)
		q.DailyCount = 3
		if q.RollWindows(base.Add(time.Minute)) {
			t.Error("no reset expected within the same hour")
		}
		if q.DailyCount != 3 {
			t.Errorf("counts changed without a window crossing: %d", q.DailyCount)
		}
	})
}

func TestQuotaExceededPriorityOrder(t *testing.T) {
	cfg := quotaCfg()
	q := NewQuotaState(time.Now())
	q.DailyCount, q.HourlyCount, q.SessionCount = 5, 4, 3

	if w := q.Exceeded(cfg); w != QuotaDaily {
		t.Errorf("daily must win when all are exhausted, got %s", w)
	}
	q.DailyCount = 0
	if w := q.Exceeded(cfg); w != QuotaHourly {
		t.Errorf("hourly before session, got %s", w)
	}
	q.HourlyCount = 0
	if w := q.Exceeded(cfg); w != QuotaSession {
		t.Errorf("expected session, got %s", w)
	}
	q.SessionCount = 0
	if w := q.Exceeded(cfg); w != "" {
		t.Errorf("nothing exhausted, got %s", w)
	}
}

func TestQuotaResetSession(t *testing.T) {
	q := NewQuotaState(time.Now())
	q.DailyCount, q.HourlyCount, q.SessionCount = 4, 3, 3
	q.ResetSession()
	if q.SessionCount != 0 {
		t.Errorf("expected session count 0, got %d", q.SessionCount)
	}
	if q.DailyCount != 4 || q.HourlyCount != 3 {
		t.Errorf("daily/hourly must be unaffected, got %d/%d", q.DailyCount, q.HourlyCount)
	}
}
