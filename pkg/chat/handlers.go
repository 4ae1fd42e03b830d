package chat

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/openwidget/chat/pkg/protocol"
)

// HandleRaw parses a raw text frame and dispatches it on the inbound bus.
// Malformed frames are logged and dropped; nothing in the inbound path is
// fatal.
func (s *Session) HandleRaw(line string) {
	frame, err := protocol.ParseFrame(line)
	if err != nil {
		s.logf("dropping malformed frame: %v", err)
		return
	}
	s.HandleEvent(frame)
}

// HandleEvent dispatches one inbound protocol event. Events with no bound
// handler are logged for visibility, matching the tolerance required of an
// evolving peer.
func (s *Session) HandleEvent(frame *protocol.Frame) {
	s.countInbound(frame.Name)
	if !s.inbound.Emit(frame.Name, frame) {
		s.logf("unhandled inbound event %s", frame.Name)
	}
}

func (s *Session) bindInbound() {
	s.inbound.On(protocol.EventConnecting, s.onConnecting)
	s.inbound.On(protocol.EventOpen, s.onOpen)
	s.inbound.On(protocol.EventClose, s.onClose)
	s.inbound.On(protocol.EventSocketError, s.onSocketError)
	s.inbound.On(protocol.EventPing, s.onPing)
	s.inbound.On(protocol.EventDispatch, s.onDispatch)
	s.inbound.On(protocol.EventNames, s.onNames)
	s.inbound.On(protocol.EventJoin, s.onJoin)
	s.inbound.On(protocol.EventQuit, s.onQuit)
	s.inbound.On(protocol.EventMsg, s.onMsg)
	s.inbound.On(protocol.EventMute, s.onMute)
	s.inbound.On(protocol.EventUnmute, s.onUnmute)
	s.inbound.On(protocol.EventBan, s.onBan)
	s.inbound.On(protocol.EventUnban, s.onUnban)
	s.inbound.On(protocol.EventErr, s.onErr)
	s.inbound.On(protocol.EventSubOnly, s.onSubOnly)
	s.inbound.On(protocol.EventBroadcast, s.onBroadcast)
	s.inbound.On(protocol.EventPrivmsg, s.onPrivmsg)
	s.inbound.On(protocol.EventPrivmsgSent, s.onPrivmsgSent)
	s.inbound.On(protocol.EventRefresh, s.onRefresh)
}

func (s *Session) onConnecting(*protocol.Frame) {
	s.logf("connecting")
}

func (s *Session) onOpen(*protocol.Frame) {
	s.logf("connected")
}

func (s *Session) onClose(frame *protocol.Frame) {
	var closed protocol.Close
	_ = frame.Decode(&closed)
	if closed.RetryMilli > 0 {
		seconds := (closed.RetryMilli + 500) / 1000
		s.addMessage(NewError(fmt.Sprintf(
			"There was an error connecting to chat. Automatically attempting to reconnect in %d seconds.", seconds)), s.mainWindow)
	} else {
		s.addMessage(NewError("You have disconnected from chat"), s.mainWindow)
	}
}

func (s *Session) onSocketError(*protocol.Frame) {
	// The close event carries the useful detail; nothing to render here.
}

func (s *Session) onPing(frame *protocol.Frame) {
	s.send(protocol.EventPong, json.RawMessage(frame.Payload))
}

func (s *Session) onDispatch(frame *protocol.Frame) {
	var payload struct {
		Nick     string              `json:"nick"`
		Features []string            `json:"features"`
		Users    []protocol.UserInfo `json:"users"`
	}
	if err := frame.Decode(&payload); err != nil {
		s.logf("dispatch: %v", err)
		return
	}
	if payload.Nick != "" {
		s.AddUser(protocol.UserInfo{Nick: payload.Nick, Features: payload.Features})
	}
	for _, info := range payload.Users {
		s.AddUser(info)
	}
}

func (s *Session) onNames(frame *protocol.Frame) {
	var names protocol.Names
	if err := frame.Decode(&names); err != nil {
		s.logf("names: %v", err)
		return
	}
	for _, info := range names.Users {
		s.AddUser(info)
	}
	if s.motd {
		s.motd = false
		s.addMessage(NewInfo(fmt.Sprintf(
			"Currently serving %d connections and %d users.", names.ConnectionCount, len(names.Users))), s.mainWindow)
	}
}

func (s *Session) onJoin(frame *protocol.Frame) {
	var info protocol.UserInfo
	if err := frame.Decode(&info); err != nil {
		s.logf("join: %v", err)
		return
	}
	s.AddUser(info)
}

func (s *Session) onQuit(frame *protocol.Frame) {
	var info protocol.UserInfo
	if err := frame.Decode(&info); err != nil {
		s.logf("quit: %v", err)
		return
	}
	delete(s.users, Normalize(info.Nick))
}

// onMsg is the head of the message pipeline: vote intercept, combo-emote
// check, optimistic-echo reconciliation, then full admission.
func (s *Session) onMsg(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("msg: %v", err)
		return
	}

	author := s.AddUser(protocol.UserInfo{Nick: msg.Nick, Features: msg.Features})
	if author == nil {
		return
	}
	textOnly := removeSlashCmd(msg.Data)

	// Vote intercept: matching start/cast/stop lines never render as chat.
	if !s.backlog && s.interceptVote(author, msg.Data, textOnly, msg.Time()) {
		return
	}

	win := s.mainWindow
	if s.emotes.Matches(textOnly) {
		if last := win.Last(); last != nil && stripSlashMe(last.Text) == textOnly {
			if last.Kind == KindEmote && !last.ComboDone() {
				win.Lock(s.renderer)
				last.IncCombo()
				if s.renderer != nil {
					s.renderer.MessageUpdated(win, last)
				}
				win.Unlock(s.renderer)
				return
			}
			if last.Kind == KindUserChat {
				// First repeat of a plain message: replace it with a combo
				// emote carrying count 2.
				removed := win.RemoveLast()
				if removed != nil && s.renderer != nil {
					s.renderer.MessageRemoved(win, removed)
				}
				s.addMessage(NewEmoteMessage(textOnly, msg.Time(), 2), win)
				return
			}
		}
	}

	if s.resolveUnresolved(msg.Nick, msg.Data, msg.Time()) {
		// The locally rendered optimistic copy stands in for this echo.
		return
	}

	s.addMessage(NewUserMessage(author, msg.Data, msg.Time()), win)
}

// interceptVote applies the poll mini-state-machine to an inbound chat
// line. Returns true when the line was consumed.
func (s *Session) interceptVote(author *User, raw, textOnly string, ts time.Time) bool {
	if s.vote != nil {
		if IsVoteStopFmt(raw) {
			if Normalize(author.Nick) == Normalize(s.vote.Initiator) {
				s.endVote()
			}
			return true
		}
		if IsVoteCastFmt(textOnly) {
			s.vote.CastText(author.Nick, textOnly)
			return true
		}
		return false
	}
	if IsVoteStartFmt(raw) && s.canStartVote(author) {
		question, options, ok := ParseVoteStart(raw)
		if !ok {
			if Normalize(author.Nick) == Normalize(s.user.Nick) {
				s.errorf("Your vote failed to start.")
			}
			return true
		}
		s.vote = NewVote(author.Nick, question, options, ts)
		numbers := make([]string, len(options))
		for i := range options {
			numbers[i] = fmt.Sprintf("%d", i+1)
		}
		s.addMessage(NewInfo(fmt.Sprintf(
			"A vote has been started: %s Type %s in chat", question, strings.Join(numbers, " or "))), s.mainWindow)
		return true
	}
	return false
}

func (s *Session) canStartVote(user *User) bool {
	return user.IsPrivileged()
}

// endVote closes the poll and renders the tally.
func (s *Session) endVote() {
	if s.vote == nil {
		return
	}
	totals := s.vote.Totals()
	parts := make([]string, len(totals))
	for i, total := range totals {
		parts[i] = fmt.Sprintf("%s: %d", s.vote.Options[i], total)
	}
	s.addMessage(NewInfo(fmt.Sprintf(
		"The vote has ended. %s %s", s.vote.Question, strings.Join(parts, ", "))), s.mainWindow)
	s.vote = nil
}

// VoteOpen reports whether a poll is in progress.
func (s *Session) VoteOpen() bool {
	return s.vote != nil
}

// CurrentVote returns the open poll, or nil.
func (s *Session) CurrentVote() *Vote {
	return s.vote
}

func (s *Session) onMute(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("mute: %v", err)
		return
	}
	if Normalize(msg.Data) == Normalize(s.user.Nick) {
		s.command("You have been purged/muted. Mutes are never permanent.", msg.Time())
	} else {
		s.command(fmt.Sprintf("%s has been purged/muted. Mutes are never permanent.", msg.Data), msg.Time())
	}
	s.censor(msg.Data)
}

func (s *Session) onUnmute(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("unmute: %v", err)
		return
	}
	if Normalize(msg.Data) == Normalize(s.user.Nick) {
		s.command(fmt.Sprintf("You have been unmuted by %s.", msg.Nick), msg.Time())
	} else {
		s.command(fmt.Sprintf("%s has been unmuted", msg.Data), msg.Time())
	}
}

func (s *Session) onBan(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("ban: %v", err)
		return
	}
	if Normalize(msg.Data) == Normalize(s.user.Nick) {
		s.command("You are currently banned.", msg.Time())
		s.fetchBanInfo()
	} else {
		s.command(fmt.Sprintf("%s has been banned", msg.Data), msg.Time())
	}
	s.censor(msg.Data)
}

func (s *Session) onUnban(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("unban: %v", err)
		return
	}
	if Normalize(msg.Data) == Normalize(s.user.Nick) {
		s.command(fmt.Sprintf("You have been unbanned by %s.", msg.Nick), msg.Time())
	} else {
		s.command(fmt.Sprintf("%s has been unbanned", msg.Data), msg.Time())
	}
}

// censor applies the showremoved policy to a user's prior lines.
func (s *Session) censor(nick string) {
	if s.renderer == nil {
		return
	}
	policy := CensorPolicy(s.settings.ShowRemoved)
	if policy < CensorRemove || policy > CensorNothing {
		policy = CensorRedact
	}
	s.mainWindow.Lock(s.renderer)
	s.renderer.Censor(s.mainWindow, Normalize(nick), policy)
	s.mainWindow.Unlock(s.renderer)
}

// onErr maps a gateway error code to its feedback string. Two codes mean
// the gateway will not take this client back; reconnecting would only churn.
func (s *Session) onErr(frame *protocol.Frame) {
	var code string
	if err := frame.Decode(&code); err != nil {
		code = strings.Trim(string(frame.Payload), `"`)
	}
	if protocol.IsFatalError(code) && s.transport != nil {
		s.transport.DisableAutoReconnect()
	}
	s.addMessage(NewError(protocol.ErrorText(code)), s.active)
}

func (s *Session) onSubOnly(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("subonly: %v", err)
		return
	}
	mode := "disabled"
	if msg.Data == "on" {
		mode = "enabled"
	}
	s.command(fmt.Sprintf("Subscriber only mode %s by %s", mode, msg.Nick), msg.Time())
}

func (s *Session) onBroadcast(frame *protocol.Frame) {
	var msg protocol.Msg
	if err := frame.Decode(&msg); err != nil {
		s.logf("broadcast: %v", err)
		return
	}
	switch msg.Data {
	case "reload":
		if s.backlog {
			return
		}
		if !s.settings.AllowRefresh {
			s.addMessage(NewBroadcast("A chat refresh was requested but refreshes are disabled.", msg.Time()), s.mainWindow)
			return
		}
		if s.refresher != nil {
			s.refresher.ReloadChat(time.Duration(1000+rand.Intn(1000)) * time.Millisecond)
		}
		s.addMessage(NewBroadcast("Chat will refresh automatically in a moment", msg.Time()), s.mainWindow)
	case "refresh":
		if s.backlog {
			return
		}
		if !s.settings.AllowRefresh {
			s.addMessage(NewBroadcast("A stream refresh was requested but refreshes are disabled.", msg.Time()), s.mainWindow)
			return
		}
		if s.refresher != nil {
			s.refresher.ReloadStream(time.Duration(1000+rand.Intn(1000)) * time.Millisecond)
		}
		s.addMessage(NewBroadcast("The stream will refresh automatically in a moment", msg.Time()), s.mainWindow)
	default:
		s.addMessage(NewBroadcast(msg.Data, msg.Time()), s.mainWindow)
	}
}

func (s *Session) onPrivmsg(frame *protocol.Frame) {
	var pm protocol.Privmsg
	if err := frame.Decode(&pm); err != nil {
		s.logf("privmsg: %v", err)
		return
	}
	normalized := Normalize(pm.Nick)
	if s.Ignored(normalized, pm.Data) {
		s.countSuppressed()
		return
	}

	conv, ok := s.whispers[normalized]
	if !ok {
		conv = &Conversation{Nick: pm.Nick}
		s.whispers[normalized] = conv
	}
	conv.ThreadID = pm.MessageID

	author := s.LookupUser(pm.Nick)
	if author == nil {
		author = NewUser(pm.Nick)
	}
	ts := time.UnixMilli(pm.Timestamp)

	if s.settings.ShowWhispersInChat {
		s.addMessage(NewWhisper(author, pm.Data, ts), s.mainWindow)
	}

	if s.settings.NotificationWhisper && s.hidden && s.notifier != nil {
		s.notifier.Notify(
			fmt.Sprintf("%s whispered ...", pm.Nick), pm.Data,
			fmt.Sprintf("whisper-%d", pm.Timestamp), s.settings.NotificationTimeout)
	}

	win := s.windows[normalized]
	if win != nil {
		s.addMessage(NewHistorical(author, pm.Data, ts), win)
	}

	if win != nil && win == s.active {
		conv.Open = true
		s.markWhisperOpen(pm.MessageID)
	} else {
		conv.Unread++
	}
	s.indicatorsChanged()
}

func (s *Session) markWhisperOpen(messageID int64) {
	if s.api == nil || messageID == 0 {
		return
	}
	go func() {
		if err := s.api.MarkWhisperOpen(messageID); err != nil {
			s.logf("mark whisper open failed: %v", err)
		}
	}()
}

func (s *Session) onPrivmsgSent(*protocol.Frame) {
	if s.mainWindow.Visible && !s.settings.ShowWhispersInChat {
		s.addMessage(NewInfo("Your message has been sent."), s.mainWindow)
	}
}

func (s *Session) onRefresh(*protocol.Frame) {
	if s.refresher != nil {
		s.refresher.ReloadChat(0)
	}
}

// removeSlashCmd strips a leading slash verb so emote and vote matching see
// the bare text of action messages.
func removeSlashCmd(text string) string {
	if strings.HasPrefix(text, "/") {
		if idx := strings.IndexByte(text, ' '); idx >= 0 {
			return strings.TrimSpace(text[idx+1:])
		}
		return ""
	}
	return text
}
