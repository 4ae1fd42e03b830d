package chat

import (
	"time"

	"github.com/openwidget/chat/pkg/protocol"
)

// Transport is the connection collaborator: a source of named protocol
// events plus send/connect/isConnected. The session never touches sockets.
type Transport interface {
	Connect(url string)
	Send(name protocol.EventName, payload interface{}) error
	IsConnected() bool
	// DisableAutoReconnect stops further reconnect attempts; flipped by the
	// fatal protocol error codes.
	DisableAutoReconnect()
}

// CensorPolicy is what the renderer should do with lines from a muted or
// banned user.
type CensorPolicy int

const (
	CensorRemove  CensorPolicy = iota // drop the lines
	CensorRedact                      // keep them but mark censored
	CensorNothing                     // leave them alone
)

// Renderer is the external rendering surface. The session drives it with
// fine-grained notifications; batch begin/end pairs are a hint to coalesce
// visual updates during bulk mutation, not a concurrency primitive.
type Renderer interface {
	MessageAdded(win *Window, msg *Message)
	MessageUpdated(win *Window, msg *Message)
	MessageRemoved(win *Window, msg *Message)
	WindowShown(win *Window)
	WindowHidden(win *Window)
	WindowClosed(win *Window)
	IndicatorsChanged()
	BeginBatch(win *Window)
	EndBatch(win *Window)
	Censor(win *Window, nick string, policy CensorPolicy)
}

// Notifier is the desktop-notification collaborator. Implementations are
// expected to no-op when permission has not been granted.
type Notifier interface {
	Notify(title, body, tag string, timeout bool)
}

// Refresher handles the BROADCAST reload/refresh directives. Both are
// outward-facing side effects the engine only requests.
type Refresher interface {
	ReloadChat(after time.Duration)
	ReloadStream(after time.Duration)
}

// Profile is the session-info payload from the API collaborator.
type Profile struct {
	Nick     string
	Features []string
	Settings []byte // raw settings payload, nil when absent
}

// WhisperThread is one unread-whisper summary from the API collaborator.
type WhisperThread struct {
	MessageID int64
	Nick      string
	Unread    int
}

// HistoryEntry is one archived whisper line.
type HistoryEntry struct {
	From      string
	Text      string
	Timestamp time.Time
}

// BanRecord is the viewer's ban status.
type BanRecord struct {
	Found    bool
	IssuedBy string
	Reason   string
	Start    time.Time
	End      time.Time // zero for permanent
}

// API bundles the HTTP collaborators. Calls block; the session invokes them
// from goroutines and marshals results back onto its event loop.
type API interface {
	Me() (*Profile, error)
	UnreadWhispers() ([]WhisperThread, error)
	History(nick string) ([]HistoryEntry, error)
	ChatHistory() ([]string, error)
	BanInfo() (*BanRecord, error)
	SaveSettings(blob []byte) error
	MarkWhisperOpen(messageID int64) error
}

// Storage is the local persistence façade: plain key/value read-write.
// Reads of never-written keys return the empty string.
type Storage interface {
	Read(key string) (string, error)
	Write(key, value string) error
}

// Counters is the metrics hook the session increments. Nil-safe wrappers in
// the session keep it optional.
type Counters interface {
	InboundEvent(name string)
	OutboundEvent(name string)
	MessageAdmitted(kind string)
	MessageSuppressed()
}
