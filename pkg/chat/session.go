package chat

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/openwidget/chat/pkg/debounce"
	"github.com/openwidget/chat/pkg/protocol"
	"github.com/openwidget/chat/pkg/settings"
)

// unresolvedExpiry bounds how long an optimistic send waits for its inbound
// echo. Without a bound a stale entry could swallow an unrelated identical
// message much later.
const unresolvedExpiry = 30 * time.Second

// defaultSaveDelay debounces settings persistence.
const defaultSaveDelay = time.Second

// pendingSend is one optimistic local send awaiting its inbound echo.
type pendingSend struct {
	msg *Message
	at  time.Time
}

// Config wires a Session to its collaborators. Transport and Renderer are
// required; everything else degrades to a no-op when absent.
type Config struct {
	Logger    *log.Logger
	Transport Transport
	Renderer  Renderer
	Notifier  Notifier
	Refresher Refresher
	API       API
	Storage   Storage
	Metrics   Counters

	Emotes        []string
	EmoteSuffixes []string

	// Post marshals a closure onto the session's event loop; async request
	// completions re-enter through it. Nil means invoke inline.
	Post func(func())

	// SaveDelay overrides the settings-save debounce interval.
	SaveDelay time.Duration
}

// Session is the client-side chat session engine: it owns the roster,
// windows, settings, the vote subsystem, and the two event buses, and it is
// the single place all state mutation happens. All methods must be called
// from one goroutine (the event loop); asynchronous completions re-enter
// via Config.Post.
type Session struct {
	log       *log.Logger
	transport Transport
	renderer  Renderer
	notifier  Notifier
	refresher Refresher
	api       API
	storage   Storage
	metrics   Counters
	post      func(func())

	user          *User
	authenticated bool
	users         map[string]*User

	settings *settings.Settings
	persist  *settings.Persister
	saver    *debounce.Debouncer
	ignoring map[string]struct{}
	matchers *Matchers
	emotes   *EmoteSet

	windows     map[string]*Window
	windowOrder []string
	active      *Window
	mainWindow  *Window
	whispers    map[string]*Conversation

	unresolved []pendingSend
	vote       *Vote

	inbound *Bus[protocol.EventName, *protocol.Frame]
	control *Bus[Command, []string]

	backlog bool
	hidden  bool
	motd    bool
}

// NewSession builds a session with default settings and an anonymous
// identity, binds both buses, and creates the main window.
func NewSession(cfg Config) *Session {
	s := &Session{
		log:       cfg.Logger,
		transport: cfg.Transport,
		renderer:  cfg.Renderer,
		notifier:  cfg.Notifier,
		refresher: cfg.Refresher,
		api:       cfg.API,
		storage:   cfg.Storage,
		metrics:   cfg.Metrics,
		post:      cfg.Post,
		users:     make(map[string]*User),
		settings:  settings.Default(),
		ignoring:  make(map[string]struct{}),
		emotes:    NewEmoteSet(cfg.Emotes, cfg.EmoteSuffixes),
		windows:   make(map[string]*Window),
		whispers:  make(map[string]*Conversation),
		inbound:   NewBus[protocol.EventName, *protocol.Frame](),
		control:   NewBus[Command, []string](),
		motd:      true,
	}
	if s.post == nil {
		s.post = func(fn func()) { fn() }
	}

	saveDelay := cfg.SaveDelay
	if saveDelay <= 0 {
		saveDelay = defaultSaveDelay
	}
	s.persist = &settings.Persister{
		Local: func(key, value string) error {
			if s.storage == nil {
				return nil
			}
			return s.storage.Write(key, value)
		},
		Remote:        s.saveSettingsRemote,
		Authenticated: func() bool { return s.authenticated },
	}
	s.saver = debounce.New(saveDelay, func() { s.post(func() { s.saveSettings() }) })

	s.user = s.anonymousUser()

	s.mainWindow = NewWindow(MainWindowName, "Main Chat", s.settings.MaxLines)
	s.addWindow(s.mainWindow)
	s.BringToFront(MainWindowName)

	s.bindInbound()
	s.bindControl()
	s.ApplySettings(false)
	return s
}

func (s *Session) anonymousUser() *User {
	return &User{Nick: fmt.Sprintf("User%d", 10000+rand.Intn(90000))}
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// User returns the viewer's identity.
func (s *Session) User() *User {
	return s.user
}

// Authenticated reports whether the viewer is signed in.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// Settings returns the live settings record. Mutations must go through
// ApplySettings to take effect.
func (s *Session) Settings() *settings.Settings {
	return s.settings
}

// SetHidden records document visibility; notifications only fire while
// hidden.
func (s *Session) SetHidden(hidden bool) {
	s.hidden = hidden
}

// Connect asks the transport to establish the session.
func (s *Session) Connect(url string) {
	if s.transport != nil {
		s.transport.Connect(url)
	}
}

// === identity and settings ===

// SetUser installs the viewer identity from a profile, or an anonymous
// guest when the profile is nil or empty.
func (s *Session) SetUser(profile *Profile) {
	if profile == nil || profile.Nick == "" {
		s.user = s.AddUser(protocol.UserInfo{Nick: s.anonymousUser().Nick})
		s.authenticated = false
		return
	}
	s.user = s.AddUser(protocol.UserInfo{Nick: profile.Nick, Features: profile.Features})
	s.authenticated = true
}

// LoadSettings merges a stored settings payload (remote profile blob or
// local storage) into the live record, migrating old schemas. A migration
// persists the upgraded payload immediately.
func (s *Session) LoadSettings(blob []byte) {
	if len(blob) == 0 || !(s.authenticated && s.settings.ProfileSettings) {
		// Fall back to device storage.
		if s.storage != nil {
			if stored, err := s.storage.Read(settings.StorageKey); err == nil && stored != "" {
				blob = []byte(stored)
			}
		}
	}
	migrated, err := s.settings.LoadBlob(blob)
	if err != nil {
		s.logf("settings payload rejected: %v", err)
	}
	if migrated {
		s.saveSettings()
	}
	s.ApplySettings(false)
}

// LoadProfile fetches session info and settings from the API collaborator,
// degrading to an anonymous guest with defaults on failure.
func (s *Session) LoadProfile() {
	if s.api == nil {
		s.SetUser(nil)
		s.LoadSettings(nil)
		return
	}
	go func() {
		profile, err := s.api.Me()
		s.post(func() {
			if err != nil {
				s.logf("profile load failed: %v", err)
				s.SetUser(nil)
				s.LoadSettings(nil)
				return
			}
			s.SetUser(profile)
			s.LoadSettings(profile.Settings)
			s.LoadWhispers()
		})
	}()
}

// LoadWhispers fetches the unread-whisper thread list.
func (s *Session) LoadWhispers() {
	if s.api == nil || !s.authenticated {
		return
	}
	go func() {
		threads, err := s.api.UnreadWhispers()
		s.post(func() {
			if err != nil {
				s.logf("whisper list load failed: %v", err)
				return
			}
			for _, thread := range threads {
				s.whispers[Normalize(thread.Nick)] = &Conversation{
					ThreadID: thread.MessageID,
					Nick:     thread.Nick,
					Unread:   thread.Unread,
				}
			}
			s.indicatorsChanged()
		})
	}()
}

// LoadHistory fetches the recent public backlog and replays it, keeping the
// last limit raw lines. A limit of zero replays everything the API returns.
func (s *Session) LoadHistory(limit int) {
	if s.api == nil {
		return
	}
	go func() {
		lines, err := s.api.ChatHistory()
		s.post(func() {
			if err != nil {
				s.logf("backlog load failed: %v", err)
				return
			}
			if limit > 0 && len(lines) > limit {
				lines = lines[len(lines)-limit:]
			}
			s.LoadBacklog(lines)
		})
	}()
}

// ApplySettings recomputes every derived artifact from the settings record:
// the ignore set, the matcher cache, and per-window line limits. Idempotent;
// persistence only happens when persist is true.
func (s *Session) ApplySettings(persist bool) {
	if persist {
		s.CommitSettings()
	}

	s.ignoring = make(map[string]struct{}, len(s.settings.IgnoreNicks))
	for _, nick := range s.settings.IgnoreNicks {
		s.ignoring[Normalize(nick)] = struct{}{}
	}

	s.matchers = CompileMatchers(
		s.user.Nick, s.settings.IgnoreNicks, s.settings.HighlightNicks, s.settings.CustomHighlight)

	for _, win := range s.windows {
		win.MaxLines = s.settings.MaxLines
	}
}

// CommitSettings schedules a debounced save.
func (s *Session) CommitSettings() {
	s.saver.Trigger()
}

// FlushSettings forces any pending debounced save to run now; called on
// shutdown.
func (s *Session) FlushSettings() {
	s.saver.Flush()
}

func (s *Session) saveSettings() {
	if err := s.persist.Save(s.settings); err != nil {
		s.logf("settings save failed: %v", err)
	}
}

func (s *Session) saveSettingsRemote(blob []byte) error {
	if s.api == nil {
		return fmt.Errorf("no api collaborator")
	}
	go func() {
		if err := s.api.SaveSettings(blob); err != nil {
			s.logf("remote settings save failed: %v", err)
		}
	}()
	return nil
}

// === roster ===

// AddUser inserts or refreshes a roster entry and returns the canonical
// User reference.
func (s *Session) AddUser(info protocol.UserInfo) *User {
	if info.Nick == "" {
		return nil
	}
	normalized := Normalize(info.Nick)
	user, ok := s.users[normalized]
	if !ok {
		user = &User{Nick: info.Nick, Features: info.Features}
		s.users[normalized] = user
		return user
	}
	if info.Features != nil {
		user.Features = info.Features
	}
	return user
}

// LookupUser returns the roster entry for a nick, or nil.
func (s *Session) LookupUser(nick string) *User {
	return s.users[Normalize(nick)]
}

// RosterSize returns the number of known users.
func (s *Session) RosterSize() int {
	return len(s.users)
}

// === ignore set ===

// Ignored reports whether a message from nick with the given body should be
// suppressed: exact normalized-nick match, or (when enabled) the ignore
// word list against the body, or (when enabled) the fixed NSFW keyword
// check.
func (s *Session) Ignored(nick, text string) bool {
	if _, ok := s.ignoring[Normalize(nick)]; ok {
		return true
	}
	if text == "" {
		return false
	}
	if s.settings.IgnoreMentions && s.matchers != nil && s.matchers.Ignore != nil && s.matchers.Ignore.MatchString(text) {
		return true
	}
	return s.settings.HideNSFW && MatchesNSFW(text)
}

// Ignore adds or removes a nick from the ignore set and reapplies settings.
func (s *Session) Ignore(nick string, ignore bool) {
	normalized := Normalize(nick)
	_, exists := s.ignoring[normalized]
	if ignore == exists {
		return
	}
	if ignore {
		s.settings.IgnoreNicks = append(s.settings.IgnoreNicks, normalized)
	} else {
		kept := s.settings.IgnoreNicks[:0]
		for _, n := range s.settings.IgnoreNicks {
			if Normalize(n) != normalized {
				kept = append(kept, n)
			}
		}
		s.settings.IgnoreNicks = kept
	}
	s.ApplySettings(true)
}

// === windows and conversations ===

func (s *Session) addWindow(win *Window) {
	s.windows[win.Name] = win
	s.windowOrder = append(s.windowOrder, win.Name)
	s.indicatorsChanged()
}

// MainWindow returns the main chat window.
func (s *Session) MainWindow() *Window {
	return s.mainWindow
}

// ActiveWindow returns the single visible window.
func (s *Session) ActiveWindow() *Window {
	return s.active
}

// GetWindow returns the named window, or nil.
func (s *Session) GetWindow(name string) *Window {
	return s.windows[name]
}

// Conversations returns the whisper metadata map, keyed by normalized nick.
func (s *Session) Conversations() map[string]*Conversation {
	return s.whispers
}

// BringToFront makes the named window the visible one. Idempotent: if the
// window is already frontmost nothing happens, including no render side
// effects. Switching windows breaks any in-progress combo.
func (s *Session) BringToFront(name string) *Window {
	win, ok := s.windows[name]
	if !ok || win == s.active {
		return win
	}
	for _, w := range s.windows {
		if !w.Visible {
			continue
		}
		if !w.Locked() {
			w.Lock(s.renderer)
		}
		w.Visible = false
		if s.renderer != nil {
			s.renderer.WindowHidden(w)
		}
		if conv, ok := s.whispers[w.Name]; ok {
			conv.Open = false
		}
		if last := w.Last(); last != nil && last.Kind == KindEmote {
			last.CompleteCombo()
		}
	}

	win.Visible = true
	s.active = win
	if s.renderer != nil {
		s.renderer.WindowShown(win)
	}
	if win.Locked() {
		win.Unlock(s.renderer)
	}

	if conv, ok := s.whispers[win.Name]; ok {
		conv.Open = true
		conv.Unread = 0
	}
	s.primeConversation(win)
	s.indicatorsChanged()
	return win
}

// OpenConversation opens (creating if needed) the whisper window for nick
// and brings it to front.
func (s *Session) OpenConversation(nick string) {
	normalized := Normalize(nick)
	if _, ok := s.whispers[normalized]; !ok {
		s.whispers[normalized] = &Conversation{Nick: nick}
	}
	if _, ok := s.windows[normalized]; !ok {
		conv := s.whispers[normalized]
		s.addWindow(NewWindow(normalized, conv.Nick, s.settings.MaxLines))
	}
	s.BringToFront(normalized)
}

// primeConversation loads whisper history into a freshly shown conversation
// window, exactly once.
func (s *Session) primeConversation(win *Window) {
	if win.IsMain() || win.primed {
		return
	}
	win.primed = true
	s.addMessage(NewInfo(fmt.Sprintf("Messages between you and %s", win.Label)), win)
	if s.api == nil {
		return
	}
	nick := win.Label
	go func() {
		entries, err := s.api.History(nick)
		s.post(func() { s.applyHistory(win.Name, entries, err) })
	}()
}

// applyHistory absorbs a history response. The conversation may have been
// closed while the fetch was in flight; a stale response is dropped.
func (s *Session) applyHistory(name string, entries []HistoryEntry, err error) {
	win, ok := s.windows[name]
	if !ok {
		return
	}
	if err != nil {
		s.addMessage(NewError("Failed to load messages :("), win)
		return
	}
	if len(entries) == 0 {
		return
	}
	win.Lock(s.renderer)
	s.addMessage(NewInfo(fmt.Sprintf("Last message %s", entries[len(entries)-1].Timestamp.Format("Monday, 2 January 2006 15:04"))), win)
	for _, entry := range entries {
		author := s.LookupUser(entry.From)
		if author == nil {
			author = NewUser(entry.From)
		}
		s.addMessage(NewHistorical(author, entry.Text, entry.Timestamp), win)
	}
	win.Unlock(s.renderer)
}

// CloseWindow removes a window. The main window is never closable. Closing
// the frontmost window brings the most recently added remaining window to
// front so exactly one stays visible.
func (s *Session) CloseWindow(name string) {
	win, ok := s.windows[name]
	if !ok || win.IsMain() {
		return
	}
	wasVisible := win.Visible
	delete(s.windows, name)
	for i, n := range s.windowOrder {
		if n == name {
			s.windowOrder = append(s.windowOrder[:i], s.windowOrder[i+1:]...)
			break
		}
	}
	if conv, ok := s.whispers[name]; ok {
		conv.Open = false
	}
	if s.renderer != nil {
		s.renderer.WindowClosed(win)
	}
	if wasVisible {
		s.active = nil
		s.BringToFront(s.windowOrder[len(s.windowOrder)-1])
	} else {
		s.indicatorsChanged()
	}
}

func (s *Session) indicatorsChanged() {
	if s.renderer != nil {
		s.renderer.IndicatorsChanged()
	}
}

// === message admission ===

// feedback helpers render engine-generated lines into the active window.
func (s *Session) info(text string) *Message    { return s.addMessage(NewInfo(text), s.active) }
func (s *Session) errorf(text string) *Message  { return s.addMessage(NewError(text), s.active) }
func (s *Session) status(text string) *Message  { return s.addMessage(NewStatus(text), s.active) }
func (s *Session) command(text string, ts time.Time) *Message {
	return s.addMessage(NewCommandLine(text, ts), s.mainWindow)
}

// addMessage runs the admission pipeline tail: suppression, combo
// termination, derived flags, rendering, and the highlight notification.
// Returns nil when the message was suppressed.
func (s *Session) addMessage(msg *Message, win *Window) *Message {
	if win == nil {
		win = s.mainWindow
	}

	if msg.Kind == KindUserChat && msg.Author != nil {
		isOwn := Normalize(msg.Author.Nick) == Normalize(s.user.Nick)
		if !isOwn && s.Ignored(msg.Author.Nick, msg.Text) {
			s.countSuppressed()
			return nil
		}
	}

	if !s.backlog {
		win.Lock(s.renderer)
	}

	// A new message of any kind invalidates the running combo.
	if last := win.Last(); last != nil && last.Kind == KindEmote && last.ComboCount > 1 {
		last.CompleteCombo()
	}

	if msg.Kind == KindUserChat {
		s.decorate(msg, win)
	}

	win.Append(msg)
	if s.renderer != nil {
		s.renderer.MessageAdded(win, msg)
	}
	s.countAdmitted(msg.Kind)

	if !s.backlog && msg.Highlighted && s.settings.NotificationHighlight && s.hidden && s.notifier != nil {
		s.notifier.Notify(
			fmt.Sprintf("%s said ...", msg.Author.Nick),
			msg.Text,
			fmt.Sprintf("chat-%d", msg.Timestamp.UnixMilli()),
			s.settings.NotificationTimeout,
		)
	}

	if !s.backlog {
		win.Unlock(s.renderer)
	}
	return msg
}

// decorate computes the derived per-message flags for a user-chat message
// about to enter win.
func (s *Session) decorate(msg *Message, win *Window) {
	msg.IsSlashMe = isSlashMe(msg.Text)
	msg.IsSelf = Normalize(msg.Author.Nick) == Normalize(s.user.Nick)

	last := win.Last()
	msg.ContinuesPrevious = last != nil && last.Target == "" && last.Author != nil &&
		Normalize(last.Author.Nick) == Normalize(msg.Author.Nick)

	for _, nick := range ExtractNicks(msg.Text) {
		if _, known := s.users[Normalize(nick)]; known {
			msg.Mentioned = append(msg.Mentioned, nick)
		}
	}

	msg.TagColor = s.settings.TaggedNicks[Normalize(msg.Author.Nick)]

	if !msg.IsSelf && s.matchers != nil {
		msg.Highlighted = (s.settings.HighlightSelf && s.matchers.HighlightSelf != nil && s.matchers.HighlightSelf.MatchString(msg.Text)) ||
			(s.matchers.HighlightNicks != nil && s.matchers.HighlightNicks.MatchString(msg.Author.Nick)) ||
			(s.matchers.HighlightCustom != nil && s.matchers.HighlightCustom.MatchString(msg.Author.Nick+" "+msg.Text))
	}
}

// pushUnresolved registers an optimistic local send awaiting its echo.
func (s *Session) pushUnresolved(msg *Message) {
	s.unresolved = append(s.unresolved, pendingSend{msg: msg, at: time.Now()})
}

// resolveUnresolved removes the oldest matching optimistic send for an
// inbound echo authored by the viewer. The matched line adopts the gateway
// timestamp; expired entries are swept, and their optimistic lines pulled
// from the window by message identity. Returns true when an entry was
// consumed.
func (s *Session) resolveUnresolved(nick, text string, ts time.Time) bool {
	if Normalize(nick) != Normalize(s.user.Nick) {
		return false
	}
	now := time.Now()
	kept := s.unresolved[:0]
	resolved := false
	for _, pending := range s.unresolved {
		if now.Sub(pending.at) > unresolvedExpiry {
			if removed := s.mainWindow.RemoveByID(pending.msg.ID); removed != nil && s.renderer != nil {
				s.renderer.MessageRemoved(s.mainWindow, removed)
			}
			continue
		}
		if !resolved && pending.msg.Text == text {
			resolved = true
			if !ts.IsZero() {
				pending.msg.Timestamp = ts
				if s.renderer != nil {
					s.renderer.MessageUpdated(s.mainWindow, pending.msg)
				}
			}
			continue
		}
		kept = append(kept, pending)
	}
	s.unresolved = kept
	return resolved
}

// UnresolvedCount returns the number of sends still awaiting echoes.
func (s *Session) UnresolvedCount() int {
	return len(s.unresolved)
}

// === backlog ===

// LoadBacklog replays raw protocol lines through the inbound dispatch with
// vote intercepts, notifications, and render batching suppressed.
func (s *Session) LoadBacklog(lines []string) {
	if len(lines) == 0 {
		return
	}
	s.backlog = true
	s.mainWindow.Lock(s.renderer)
	for _, line := range lines {
		s.HandleRaw(line)
	}
	s.mainWindow.Unlock(s.renderer)
	s.backlog = false
}

// === unsent input ===

const unsentInputKey = "chat.unsentMessage"

// SaveUnsentInput preserves the in-progress input line across sessions.
func (s *Session) SaveUnsentInput(text string) {
	if s.storage != nil {
		_ = s.storage.Write(unsentInputKey, text)
	}
}

// RestoreUnsentInput returns the preserved input line, if any.
func (s *Session) RestoreUnsentInput() string {
	if s.storage == nil {
		return ""
	}
	text, _ := s.storage.Read(unsentInputKey)
	return text
}

// === metrics (nil-safe) ===

func (s *Session) countInbound(name protocol.EventName) {
	if s.metrics != nil {
		s.metrics.InboundEvent(string(name))
	}
}

func (s *Session) countOutbound(name protocol.EventName) {
	if s.metrics != nil {
		s.metrics.OutboundEvent(string(name))
	}
}

func (s *Session) countAdmitted(kind MessageKind) {
	if s.metrics != nil {
		s.metrics.MessageAdmitted(kind.String())
	}
}

func (s *Session) countSuppressed() {
	if s.metrics != nil {
		s.metrics.MessageSuppressed()
	}
}

// send forwards an outbound event to the transport.
func (s *Session) send(name protocol.EventName, payload interface{}) {
	if s.transport == nil {
		return
	}
	s.countOutbound(name)
	if err := s.transport.Send(name, payload); err != nil {
		s.logf("send %s failed: %v", name, err)
	}
}
