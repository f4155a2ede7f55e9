package adapter

// NoticeKind classifies toast-level notices shown by the widget.
type NoticeKind string

const (
	NoticeInfo     NoticeKind = "info"
	NoticeWarning  NoticeKind = "warning"
	NoticeCooldown NoticeKind = "cooldown"
	NoticeError    NoticeKind = "error"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Notifier surfaces non-fatal, toast-level notices to one widget instance.
// Delivery is best-effort.
type Notifier interface {
	Notify(profileID string, n Notice)
}

// InteractiveSurface is the single capability the engine has over the
// widget's interactive state. The coordinator calls it during emergency
// recovery; it never touches presentation internals.
type InteractiveSurface interface {
	SetInteractive(profileID string, interactive bool)
}
