package notify

import (
	"fmt"
	"testing"

	"support-widget-engine/internal/domain/ports/adapter"
)

func TestHub_DrainReturnsAndClears(t *testing.T) {
	h := NewHub()
	h.Notify("p1", adapter.Notice{Kind: adapter.NoticeInfo, Text: "one"})
	h.Notify("p1", adapter.Notice{Kind: adapter.NoticeWarning, Text: "two"})

	got := h.Drain("p1")
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "two" {
		t.Fatalf("Drain = %+v", got)
	}
	if again := h.Drain("p1"); len(again) != 0 {
		t.Fatalf("second Drain = %+v, want empty", again)
	}
}

func TestHub_QueueCapDropsOldest(t *testing.T) {
	h := NewHub()
	for i := 0; i < 25; i++ {
		h.Notify("p1", adapter.Notice{Kind: adapter.NoticeInfo, Text: fmt.Sprintf("n%d", i)})
	}
	got := h.Drain("p1")
	if len(got) != 20 {
		t.Fatalf("queue length = %d, want 20", len(got))
	}
	if got[0].Text != "n5" || got[19].Text != "n24" {
		t.Fatalf("window = %s..%s, want n5..n24", got[0].Text, got[19].Text)
	}
}

func TestHub_ProfilesAreIsolated(t *testing.T) {
	h := NewHub()
	h.Notify("p1", adapter.Notice{Kind: adapter.NoticeInfo, Text: "for p1"})
	if got := h.Drain("p2"); len(got) != 0 {
		t.Fatalf("p2 received %+v", got)
	}
	if got := h.Drain("p1"); len(got) != 1 {
		t.Fatalf("p1 notices = %+v", got)
	}
}

func TestHub_SetInteractiveQueuesRecoveryNotice(t *testing.T) {
	h := NewHub()
	h.SetInteractive("p1", true)
	got := h.Drain("p1")
	if len(got) != 1 || got[0].Kind != adapter.NoticeInfo {
		t.Fatalf("notices = %+v", got)
	}

	h.SetInteractive("p1", false)
	if got := h.Drain("p1"); len(got) != 0 {
		t.Fatalf("disable queued a notice: %+v", got)
	}
}
