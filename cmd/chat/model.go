package main

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openwidget/chat/pkg/chat"
	"github.com/openwidget/chat/pkg/protocol"
	"github.com/openwidget/chat/pkg/storage"
	"github.com/openwidget/chat/pkg/transport"
)

// frameMsg carries one inbound protocol frame into the update loop.
type frameMsg struct {
	frame *protocol.Frame
}

// postMsg carries one async session completion into the update loop, so all
// session mutation happens on the bubbletea goroutine.
type postMsg struct {
	fn func()
}

type modelConfig struct {
	logger   *log.Logger
	conn     *transport.Conn
	store    *storage.Store
	api      chat.API
	counters chat.Counters
	notifier chat.Notifier
	emotes   []string
	suffixes []string
	gateway  string
	backlog  int
}

// reconnectRefresher implements the session's reload directives for a
// terminal client: reloading chat means reconnecting the socket; there is
// no embedded stream to refresh.
type reconnectRefresher struct {
	conn    *transport.Conn
	gateway string
}

func (r reconnectRefresher) ReloadChat(after time.Duration) {
	conn, gateway := r.conn, r.gateway
	time.AfterFunc(after, func() { conn.Connect(gateway) })
}

func (r reconnectRefresher) ReloadStream(time.Duration) {}

// model is the bubbletea application: a viewport over the active window, a
// textarea for input, and a tab strip for conversations.
type model struct {
	session *chat.Session
	conn    *transport.Conn
	posts   chan func()
	gateway string
	backlog int
	logger  *log.Logger

	viewport viewport.Model
	input    textarea.Model
	ready    bool
	width    int
	height   int

	renderer *tabRenderer
}

func newModel(cfg modelConfig) *model {
	input := textarea.New()
	input.Placeholder = "Write something..."
	input.CharLimit = 512
	input.SetHeight(1)
	input.ShowLineNumbers = false
	input.Focus()

	m := &model{
		conn:    cfg.conn,
		posts:   make(chan func(), 64),
		gateway: cfg.gateway,
		backlog: cfg.backlog,
		logger:  cfg.logger,
		input:   input,
	}
	m.renderer = &tabRenderer{censored: make(map[string]chat.CensorPolicy)}
	m.session = chat.NewSession(chat.Config{
		Logger:        cfg.logger,
		Transport:     cfg.conn,
		Renderer:      m.renderer,
		Notifier:      cfg.notifier,
		Refresher:     reconnectRefresher{conn: cfg.conn, gateway: cfg.gateway},
		API:           cfg.api,
		Storage:       cfg.store,
		Metrics:       cfg.counters,
		Emotes:        cfg.emotes,
		EmoteSuffixes: cfg.suffixes,
		Post:          func(fn func()) { m.posts <- fn },
	})
	m.input.SetValue(m.session.RestoreUnsentInput())
	return m
}

func (m *model) Init() tea.Cmd {
	m.session.LoadProfile()
	m.session.LoadHistory(m.backlog)
	m.session.Connect(m.gateway)
	return tea.Batch(m.waitFrame(), m.waitPost(), textarea.Blink)
}

// waitFrame blocks on the transport's incoming channel.
func (m *model) waitFrame() tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-m.conn.Incoming()
		if !ok {
			return tea.Quit()
		}
		return frameMsg{frame: frame}
	}
}

// waitPost blocks on the async completion queue.
func (m *model) waitPost() tea.Cmd {
	return func() tea.Msg {
		return postMsg{fn: <-m.posts}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputHeight := 3
		tabHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight-tabHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight - tabHeight
		}
		m.input.SetWidth(msg.Width - 2)
		m.refresh()
		return m, nil

	case frameMsg:
		m.session.HandleEvent(msg.frame)
		m.refresh()
		return m, m.waitFrame()

	case postMsg:
		msg.fn()
		m.refresh()
		return m, m.waitPost()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.session.SaveUnsentInput(m.input.Value())
			m.session.FlushSettings()
			return m, tea.Quit
		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			m.session.Send(text)
			m.refresh()
			return m, nil
		case tea.KeyTab:
			m.cycleWindow()
			m.refresh()
			return m, nil
		case tea.KeyEsc:
			if !m.session.ActiveWindow().IsMain() {
				m.session.BringToFront(chat.MainWindowName)
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycleWindow brings the next window in tab order to the front, opening the
// conversation window first when only its metadata exists.
func (m *model) cycleWindow() {
	names := m.windowNames()
	if len(names) < 2 {
		return
	}
	active := m.session.ActiveWindow().Name
	for i, name := range names {
		if name == active {
			next := names[(i+1)%len(names)]
			if m.session.GetWindow(next) == nil {
				m.session.OpenConversation(next)
			} else {
				m.session.BringToFront(next)
			}
			return
		}
	}
}

func (m *model) windowNames() []string {
	var nicks []string
	for nick := range m.session.Conversations() {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return append([]string{chat.MainWindowName}, nicks...)
}

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("244"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("212"))
	unreadStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("203"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	nickStyle      = lipgloss.NewStyle().Bold(true)
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	broadcastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	emoteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("147"))
	censoredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Strikethrough(true)
	tagColorCodes  = map[string]string{
		"green": "40", "yellow": "226", "orange": "214", "red": "196",
		"purple": "129", "blue": "33", "sky": "117", "lime": "118",
		"pink": "213", "black": "240",
	}
)

// refresh re-renders the active window into the viewport.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	win := m.session.ActiveWindow()
	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderWindow(win))
	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) renderWindow(win *chat.Window) string {
	format := m.session.Settings().TimestampFormat
	var b strings.Builder
	for _, msg := range win.Messages() {
		if line := m.renderMessage(win, msg, format); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m *model) renderMessage(win *chat.Window, msg *chat.Message, format string) string {
	if msg.Author != nil {
		if policy, ok := m.renderer.policyFor(win.Name, chat.Normalize(msg.Author.Nick)); ok {
			if policy == chat.CensorRemove {
				return ""
			}
			if policy == chat.CensorRedact {
				return censoredStyle.Render(fmt.Sprintf("%s <censored>", msg.Author.Nick))
			}
		}
	}

	ts := ""
	if !msg.Timestamp.IsZero() && m.session.Settings().ShowTime {
		ts = timeStyle.Render(msg.Timestamp.Format(format)) + " "
	}

	switch msg.Kind {
	case chat.KindInfo:
		return ts + infoStyle.Render(msg.Text)
	case chat.KindError, chat.KindStatus:
		return ts + errorStyle.Render(msg.Text)
	case chat.KindCommand:
		return ts + infoStyle.Render(msg.Text)
	case chat.KindBroadcast:
		return ts + broadcastStyle.Render(msg.Text)
	case chat.KindEmote:
		text := msg.Text
		if msg.ComboCount > 1 {
			text = fmt.Sprintf("%s x%d", text, msg.ComboCount)
		}
		return ts + emoteStyle.Render(text)
	case chat.KindWhisper:
		return ts + nickStyle.Render(msg.Author.Nick) + " whispered: " + msg.Text
	case chat.KindWhisperOutgoing:
		return ts + nickStyle.Render("To "+msg.Target) + ": " + msg.Text
	case chat.KindHistorical:
		return ts + timeStyle.Render(msg.Author.Nick+": "+msg.Text)
	default:
		nick := nickStyle
		if color, ok := tagColorCodes[msg.TagColor]; ok {
			nick = nick.Foreground(lipgloss.Color(color))
		}
		prefix := ""
		if !msg.ContinuesPrevious {
			prefix = nick.Render(msg.Author.Nick) + ": "
		}
		text := msg.Text
		if msg.IsSlashMe {
			return ts + emoteStyle.Render(fmt.Sprintf("%s %s", msg.Author.Nick, strings.TrimPrefix(text, "/me ")))
		}
		if msg.Highlighted {
			return ts + prefix + broadcastStyle.Render(text)
		}
		return ts + prefix + text
	}
}

func (m *model) renderTabs() string {
	var tabs []string
	for _, name := range m.windowNames() {
		win := m.session.GetWindow(name)
		label := name
		if win != nil {
			label = win.Label
		} else if conv, ok := m.session.Conversations()[name]; ok {
			label = conv.Nick
		}
		if conv, ok := m.session.Conversations()[name]; ok && conv.Unread > 0 {
			tabs = append(tabs, unreadStyle.Render(fmt.Sprintf("%s (%d)", label, conv.Unread)))
			continue
		}
		if win != nil && win.Visible {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *model) View() string {
	if !m.ready {
		return "Connecting..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.renderTabs(), m.viewport.View(), m.input.View())
}

// tabRenderer receives the session's render callbacks. The view re-renders
// from session state after every update, so most callbacks only need to
// track censoring directives.
type tabRenderer struct {
	censored map[string]chat.CensorPolicy
}

func censorKey(win, nick string) string { return win + "\x00" + nick }

func (r *tabRenderer) policyFor(win, nick string) (chat.CensorPolicy, bool) {
	policy, ok := r.censored[censorKey(win, nick)]
	return policy, ok
}

func (r *tabRenderer) MessageAdded(*chat.Window, *chat.Message)   {}
func (r *tabRenderer) MessageUpdated(*chat.Window, *chat.Message) {}
func (r *tabRenderer) MessageRemoved(*chat.Window, *chat.Message) {}
func (r *tabRenderer) WindowShown(*chat.Window)                   {}
func (r *tabRenderer) WindowHidden(*chat.Window)                  {}
func (r *tabRenderer) WindowClosed(win *chat.Window) {
	prefix := win.Name + "\x00"
	for key := range r.censored {
		if strings.HasPrefix(key, prefix) {
			delete(r.censored, key)
		}
	}
}
func (r *tabRenderer) IndicatorsChanged()        {}
func (r *tabRenderer) BeginBatch(*chat.Window)   {}
func (r *tabRenderer) EndBatch(*chat.Window)     {}

func (r *tabRenderer) Censor(win *chat.Window, nick string, policy chat.CensorPolicy) {
	r.censored[censorKey(win.Name, nick)] = policy
}
