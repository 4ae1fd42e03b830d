package chat

// MainWindowName is the name of the always-present main chat window.
const MainWindowName = "main"

// Window is one rendering surface: an ordered, bounded sequence of messages.
// At most one window is visible at a time; visibility is managed by the
// session. The lock count batches render work during bulk mutation.
type Window struct {
	Name     string // "main" or a normalized whisper nick
	Label    string // display nick for whisper windows
	Visible  bool
	MaxLines int

	messages []*Message
	last     *Message
	locks    int
	primed   bool // conversation history loaded once
}

// NewWindow creates a window with the given identity and line limit.
func NewWindow(name, label string, maxLines int) *Window {
	if maxLines <= 0 {
		maxLines = 250
	}
	return &Window{Name: name, Label: label, MaxLines: maxLines}
}

// IsMain reports whether this is the main chat window.
func (w *Window) IsMain() bool {
	return w.Name == MainWindowName
}

// Append adds a message, evicting the oldest lines beyond MaxLines, and
// tracks it as the window's most recent message.
func (w *Window) Append(msg *Message) {
	w.messages = append(w.messages, msg)
	if over := len(w.messages) - w.MaxLines; over > 0 {
		w.messages = append([]*Message(nil), w.messages[over:]...)
	}
	w.last = msg
}

// RemoveLast drops the most recent message; used when a repeated plain emote
// is replaced by a combo message. Returns the removed message, or nil.
func (w *Window) RemoveLast() *Message {
	if len(w.messages) == 0 {
		return nil
	}
	removed := w.messages[len(w.messages)-1]
	w.messages = w.messages[:len(w.messages)-1]
	if len(w.messages) > 0 {
		w.last = w.messages[len(w.messages)-1]
	} else {
		w.last = nil
	}
	return removed
}

// RemoveByID drops the message with the given identity, wherever it sits.
// Returns the removed message, or nil when no line carries the ID.
func (w *Window) RemoveByID(id string) *Message {
	for i, msg := range w.messages {
		if msg.ID != id {
			continue
		}
		w.messages = append(w.messages[:i], w.messages[i+1:]...)
		if len(w.messages) > 0 {
			w.last = w.messages[len(w.messages)-1]
		} else {
			w.last = nil
		}
		return msg
	}
	return nil
}

// Last returns the most recently added message, or nil.
func (w *Window) Last() *Message {
	return w.last
}

// Messages returns the rendered lines, oldest first. The returned slice is
// shared; callers must not mutate it.
func (w *Window) Messages() []*Message {
	return w.messages
}

// Len returns the number of rendered lines.
func (w *Window) Len() int {
	return len(w.messages)
}

// Lock increments the render-batch counter. The first lock opens a batch on
// the renderer.
func (w *Window) Lock(r Renderer) {
	w.locks++
	if w.locks == 1 && r != nil {
		r.BeginBatch(w)
	}
}

// Unlock decrements the render-batch counter, closing the batch when it
// reaches zero.
func (w *Window) Unlock(r Renderer) {
	if w.locks == 0 {
		return
	}
	w.locks--
	if w.locks == 0 && r != nil {
		r.EndBatch(w)
	}
}

// Locked reports whether a render batch is open.
func (w *Window) Locked() bool {
	return w.locks > 0
}

// Conversation is the whisper metadata for one correspondent.
type Conversation struct {
	ThreadID int64  // opaque thread id from the whisper API
	Nick     string // display nick
	Unread   int
	Open     bool
}
