package notify

import (
	"sync"

	"support-widget-engine/internal/domain/ports/adapter"
)

// Hub queues toast notices per profile until the widget polls its state.
// Delivery is best-effort: the queue is capped and old notices fall off.
type Hub struct {
	mu        sync.Mutex
	queues    map[string][]adapter.Notice
	maxQueued int
}

var (
	_ adapter.Notifier           = (*Hub)(nil)
	_ adapter.InteractiveSurface = (*Hub)(nil)
)

func NewHub() *Hub {
	return &Hub{
		queues:    make(map[string][]adapter.Notice),
		maxQueued: 20,
	}
}

func (h *Hub) Notify(profileID string, n adapter.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := append(h.queues[profileID], n)
	if len(q) > h.maxQueued {
		q = q[len(q)-h.maxQueued:]
	}
	h.queues[profileID] = q
}

// Drain returns queued notices for the profile and clears the queue.
func (h *Hub) Drain(profileID string) []adapter.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := h.queues[profileID]
	delete(h.queues, profileID)
	return q
}

// SetInteractive is called by emergency recovery after it dropped the
// profile's stuck operations. The widget derives its interactive state
// from the operation list on the next poll, so the only extra work here
// is telling the user.
func (h *Hub) SetInteractive(profileID string, interactive bool) {
	if !interactive {
		return
	}
	h.Notify(profileID, adapter.Notice{
		Kind: adapter.NoticeInfo,
		Text: "Something went wrong, but you can continue chatting.",
	})
}
