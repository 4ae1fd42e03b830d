package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openwidget/chat/pkg/protocol"
)

// ---------------------------------------------------------------------------
// Recording fakes
// ---------------------------------------------------------------------------

type sentFrame struct {
	Name    protocol.EventName
	Payload interface{}
}

// fakeTransport records outbound frames and connection directives.
type fakeTransport struct {
	sent              []sentFrame
	connected         bool
	connectURL        string
	reconnectDisabled bool
}

func (t *fakeTransport) Connect(url string) {
	t.connected = true
	t.connectURL = url
}

func (t *fakeTransport) Send(name protocol.EventName, payload interface{}) error {
	t.sent = append(t.sent, sentFrame{Name: name, Payload: payload})
	return nil
}

func (t *fakeTransport) IsConnected() bool { return t.connected }

func (t *fakeTransport) DisableAutoReconnect() { t.reconnectDisabled = true }

func (t *fakeTransport) lastSent() *sentFrame {
	if len(t.sent) == 0 {
		return nil
	}
	return &t.sent[len(t.sent)-1]
}

// fakeRenderer records render callbacks as a flat event log so tests can
// assert on ordering and absence.
type fakeRenderer struct {
	events   []string
	censored []string
}

func (r *fakeRenderer) record(format string, args ...interface{}) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *fakeRenderer) MessageAdded(win *Window, msg *Message)   { r.record("added %s %q", win.Name, msg.Text) }
func (r *fakeRenderer) MessageUpdated(win *Window, msg *Message) { r.record("updated %s %q", win.Name, msg.Text) }
func (r *fakeRenderer) MessageRemoved(win *Window, msg *Message) { r.record("removed %s %q", win.Name, msg.Text) }
func (r *fakeRenderer) WindowShown(win *Window)                  { r.record("shown %s", win.Name) }
func (r *fakeRenderer) WindowHidden(win *Window)                 { r.record("hidden %s", win.Name) }
func (r *fakeRenderer) WindowClosed(win *Window)                 { r.record("closed %s", win.Name) }
func (r *fakeRenderer) IndicatorsChanged()                       {}
func (r *fakeRenderer) BeginBatch(win *Window)                   { r.record("batch-begin %s", win.Name) }
func (r *fakeRenderer) EndBatch(win *Window)                     { r.record("batch-end %s", win.Name) }

func (r *fakeRenderer) Censor(win *Window, nick string, policy CensorPolicy) {
	r.censored = append(r.censored, fmt.Sprintf("%s %s %d", win.Name, nick, policy))
}

func (r *fakeRenderer) countEvents(prefix string) int {
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// fakeNotifier records desktop notifications.
type fakeNotifier struct {
	notices []string
}

func (n *fakeNotifier) Notify(title, body, tag string, timeout bool) {
	n.notices = append(n.notices, title+": "+body)
}

// fakeRefresher records reload requests.
type fakeRefresher struct {
	chatReloads   int
	streamReloads int
}

func (f *fakeRefresher) ReloadChat(time.Duration)   { f.chatReloads++ }
func (f *fakeRefresher) ReloadStream(time.Duration) { f.streamReloads++ }

// fakeAPI serves canned responses. All methods are safe for concurrent use
// since the session invokes them from goroutines.
type fakeAPI struct {
	mu sync.Mutex

	profile *Profile
	threads []WhisperThread
	history map[string][]HistoryEntry
	backlog []string
	banInfo *BanRecord
	banErr  error
	saved   [][]byte
	opened  []int64
	histErr error
}

func (a *fakeAPI) Me() (*Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profile == nil {
		return nil, fmt.Errorf("not signed in")
	}
	return a.profile, nil
}

func (a *fakeAPI) UnreadWhispers() ([]WhisperThread, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threads, nil
}

func (a *fakeAPI) History(nick string) ([]HistoryEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.histErr != nil {
		return nil, a.histErr
	}
	return a.history[nick], nil
}

func (a *fakeAPI) ChatHistory() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.histErr != nil {
		return nil, a.histErr
	}
	return a.backlog, nil
}

func (a *fakeAPI) BanInfo() (*BanRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.banInfo, a.banErr
}

func (a *fakeAPI) SaveSettings(blob []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, blob)
	return nil
}

func (a *fakeAPI) MarkWhisperOpen(messageID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opened = append(a.opened, messageID)
	return nil
}

// fakeStorage is an in-memory key/value store.
type fakeStorage struct {
	values map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{values: map[string]string{}}
}

func (s *fakeStorage) Read(key string) (string, error) {
	return s.values[key], nil
}

func (s *fakeStorage) Write(key, value string) error {
	s.values[key] = value
	return nil
}

// ---------------------------------------------------------------------------
// Session harness
// ---------------------------------------------------------------------------

type harness struct {
	session   *Session
	transport *fakeTransport
	renderer  *fakeRenderer
	notifier  *fakeNotifier
	refresher *fakeRefresher
	storage   *fakeStorage

	// posts holds async completions until the test drains them, keeping
	// re-entry on the test goroutine.
	posts chan func()
}

func newHarness(emotes ...string) *harness {
	h := &harness{
		transport: &fakeTransport{},
		renderer:  &fakeRenderer{},
		notifier:  &fakeNotifier{},
		refresher: &fakeRefresher{},
		storage:   newFakeStorage(),
		posts:     make(chan func(), 16),
	}
	h.session = NewSession(Config{
		Transport:     h.transport,
		Renderer:      h.renderer,
		Notifier:      h.notifier,
		Refresher:     h.refresher,
		Storage:       h.storage,
		Emotes:        emotes,
		EmoteSuffixes: []string{"spin", "wide"},
		Post:          func(fn func()) { h.posts <- fn },
	})
	return h
}

// drain runs n posted async completions, failing the test if one does not
// arrive in time.
func (h *harness) drain(t testing.TB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case fn := <-h.posts:
			fn()
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for async completion %d of %d", i+1, n)
		}
	}
}

// signIn installs a named viewer identity.
func (h *harness) signIn(nick string, features ...string) {
	h.session.SetUser(&Profile{Nick: nick, Features: features})
	h.session.ApplySettings(false)
}

// deliver feeds a raw inbound frame line into the session.
func (h *harness) deliver(line string) {
	h.session.HandleRaw(line)
}

// chatLine builds a raw MSG frame from nick and text.
func chatLine(nick, text string) string {
	return fmt.Sprintf(`MSG {"nick":%q,"timestamp":%d,"data":%q}`, nick, time.Now().UnixMilli(), text)
}
