package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageKind discriminates the message variants the engine renders.
type MessageKind int

const (
	KindUserChat MessageKind = iota
	KindEmote
	KindWhisper
	KindWhisperOutgoing
	KindHistorical
	KindInfo
	KindError
	KindStatus
	KindCommand
	KindBroadcast
)

// String returns the kind's render-class name.
func (k MessageKind) String() string {
	switch k {
	case KindUserChat:
		return "user"
	case KindEmote:
		return "emote"
	case KindWhisper:
		return "whisper"
	case KindWhisperOutgoing:
		return "whisper-outgoing"
	case KindHistorical:
		return "historical"
	case KindInfo:
		return "info"
	case KindError:
		return "error"
	case KindStatus:
		return "status"
	case KindCommand:
		return "command"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Message is one rendered chat line. Author is nil for the informational
// kinds. The derived flags are only populated for user-chat messages.
type Message struct {
	ID        string
	Kind      MessageKind
	Author    *User
	Target    string // whisper recipient for outgoing whispers
	Text      string
	Timestamp time.Time

	// Derived flags, computed on admission.
	IsSelf            bool
	IsSlashMe         bool
	ContinuesPrevious bool
	Highlighted       bool
	Mentioned         []string
	TagColor          string

	// Combo state for emote-kind messages.
	ComboCount int
	comboDone  bool
}

func newMessage(kind MessageKind, text string, ts time.Time) *Message {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Message{ID: uuid.NewString(), Kind: kind, Text: text, Timestamp: ts}
}

// NewUserMessage builds a user-chat message. Derived flags are filled in by
// the pipeline on admission.
func NewUserMessage(author *User, text string, ts time.Time) *Message {
	m := newMessage(KindUserChat, text, ts)
	m.Author = author
	return m
}

// NewEmoteMessage builds an emote message with the given repeat count.
func NewEmoteMessage(text string, ts time.Time, count int) *Message {
	m := newMessage(KindEmote, text, ts)
	m.ComboCount = count
	return m
}

// NewWhisper builds an inbound whisper line.
func NewWhisper(author *User, text string, ts time.Time) *Message {
	m := newMessage(KindWhisper, text, ts)
	m.Author = author
	return m
}

// NewWhisperOutgoing builds an outgoing whisper line directed at target.
func NewWhisperOutgoing(author *User, target, text string, ts time.Time) *Message {
	m := newMessage(KindWhisperOutgoing, text, ts)
	m.Author = author
	m.Target = target
	return m
}

// NewHistorical builds a replayed conversation-history line.
func NewHistorical(author *User, text string, ts time.Time) *Message {
	m := newMessage(KindHistorical, text, ts)
	m.Author = author
	return m
}

// NewInfo builds an informational feedback line.
func NewInfo(text string) *Message { return newMessage(KindInfo, text, time.Time{}) }

// NewError builds a local error feedback line.
func NewError(text string) *Message { return newMessage(KindError, text, time.Time{}) }

// NewStatus builds a status line.
func NewStatus(text string) *Message { return newMessage(KindStatus, text, time.Time{}) }

// NewCommandLine builds a moderation notice line (mutes, bans, sub-only).
func NewCommandLine(text string, ts time.Time) *Message {
	return newMessage(KindCommand, text, ts)
}

// NewBroadcast builds a broadcast line.
func NewBroadcast(text string, ts time.Time) *Message {
	return newMessage(KindBroadcast, text, ts)
}

// IncCombo increments the emote repeat counter. Returns false once the combo
// has been broken.
func (m *Message) IncCombo() bool {
	if m.Kind != KindEmote || m.comboDone {
		return false
	}
	m.ComboCount++
	return true
}

// CompleteCombo marks the combo finished; further repeats start a new line.
func (m *Message) CompleteCombo() {
	m.comboDone = true
}

// ComboDone reports whether the combo has been closed out.
func (m *Message) ComboDone() bool {
	return m.comboDone
}

// slashMePrefix strips a leading "/me " (case-insensitive) from text,
// returning the trimmed remainder.
func stripSlashMe(text string) string {
	if len(text) >= 4 && strings.EqualFold(text[:4], "/me ") {
		return strings.TrimSpace(text[4:])
	}
	return strings.TrimSpace(text)
}

// isSlashMe reports whether text is an intent message.
func isSlashMe(text string) bool {
	return len(text) >= 4 && strings.EqualFold(text[:4], "/me ")
}
