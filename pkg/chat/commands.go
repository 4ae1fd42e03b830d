package chat

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openwidget/chat/pkg/protocol"
)

var slashVerbPattern = regexp.MustCompile(`^/([^/\s]+)`)

// tagColors is the palette accepted by /tag. An unrecognized color falls
// back to a random pick from this list.
var tagColors = []string{
	"green", "yellow", "orange", "red", "purple",
	"blue", "sky", "lime", "pink", "black",
}

func validTagColor(color string) bool {
	for _, c := range tagColors {
		if c == color {
			return true
		}
	}
	return false
}

func randomTagColor() string {
	return tagColors[rand.Intn(len(tagColors))]
}

func (s *Session) bindControl() {
	s.control.On(CmdHelp, s.cmdHelp)
	s.control.On(CmdEmotes, s.cmdEmotes)
	s.control.On(CmdWhisper, s.cmdWhisper)
	s.control.On(CmdIgnore, s.cmdIgnore)
	s.control.On(CmdUnignore, s.cmdUnignore)
	s.control.On(CmdHighlight, s.cmdHighlight)
	s.control.On(CmdUnhighlight, s.cmdUnhighlight)
	s.control.On(CmdMaxLines, s.cmdMaxLines)
	s.control.On(CmdMute, s.cmdMute)
	s.control.On(CmdUnmute, s.cmdUnmute)
	s.control.On(CmdSubOnly, s.cmdSubOnly)
	s.control.On(CmdBan, func(args []string) { s.cmdBan(args, false) })
	s.control.On(CmdIPBan, func(args []string) { s.cmdBan(args, true) })
	s.control.On(CmdUnban, s.cmdUnban)
	s.control.On(CmdTimestampFormat, s.cmdTimestampFormat)
	s.control.On(CmdTag, s.cmdTag)
	s.control.On(CmdUntag, s.cmdUntag)
	s.control.On(CmdExit, s.cmdExit)
	s.control.On(CmdVote, s.cmdVote)
	s.control.On(CmdVoteStop, s.cmdVoteStop)
	s.control.On(CmdBanInfo, s.cmdBanInfo)
	s.control.On(CmdBroadcast, s.cmdBroadcast)
	s.control.On(CmdConnect, s.cmdConnect)
}

// Send interprets one line of user input: slash commands route through the
// control bus, whisper windows turn plain text into PRIVMSG, and everything
// else goes out as MSG with an optimistic local copy.
func (s *Session) Send(input string) {
	raw := strings.TrimRight(input, " \t")
	if strings.TrimSpace(raw) == "" {
		return
	}
	win := s.active

	// A doubled slash escapes command parsing and sends a literal slash.
	if strings.HasPrefix(raw, "//") {
		raw = raw[1:]
		s.sendChat(raw, win)
		return
	}

	verb := slashVerbPattern.FindStringSubmatch(raw)
	if verb != nil && !strings.EqualFold(verb[1], "me") {
		cmd, known := LookupCommand(verb[1])
		if !known || cmd == CmdSend {
			s.addMessage(NewError("Unknown command. Try /help"), win)
			return
		}
		if !win.IsMain() && cmd != CmdExit {
			s.addMessage(NewError("No commands in private windows. Try /exit"), win)
			return
		}
		s.control.Emit(cmd, strings.Fields(strings.TrimSpace(raw[len(verb[0]):])))
		return
	}

	if !win.IsMain() {
		s.addMessage(NewWhisperOutgoing(s.user, win.Name, raw, time.Now()), win)
		s.send(protocol.EventPrivmsg, protocol.SendPrivmsg{Nick: win.Name, Data: raw})
		return
	}

	textOnly := removeSlashCmd(raw)
	if s.vote != nil && !s.backlog && IsVoteCastFmt(textOnly) {
		if s.vote.HasVoted(s.user.Nick) {
			s.errorf("You have already voted!")
			return
		}
		s.vote.CastText(s.user.Nick, textOnly)
		s.info("Your vote has been cast!")
		s.send(protocol.EventMsg, protocol.SendMsg{Data: raw})
		return
	}

	s.sendChat(raw, win)
}

// sendChat ships raw text as MSG. Non-emote lines render immediately and
// join the unresolved queue so the inbound echo does not duplicate them;
// emote lines wait for the echo so combos accumulate on one message.
func (s *Session) sendChat(raw string, win *Window) {
	textOnly := removeSlashCmd(raw)
	if !s.emotes.Matches(textOnly) {
		msg := s.addMessage(NewUserMessage(s.user, raw, time.Now()), win)
		if msg != nil {
			s.pushUnresolved(msg)
		}
	}
	s.send(protocol.EventMsg, protocol.SendMsg{Data: raw})
}

func (s *Session) cmdHelp([]string) {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, info := range Commands() {
		b.WriteString(fmt.Sprintf(" /%s", strings.ToLower(info.Name)))
	}
	s.info(b.String())
}

func (s *Session) cmdEmotes([]string) {
	s.info(fmt.Sprintf("Available emoticons: %s (pin them to your taskbar for easy access)",
		strings.Join(s.emotes.Names(), ", ")))
}

func (s *Session) cmdWhisper(args []string) {
	if len(args) < 2 {
		s.errorf("Invalid nick/message. Usage: /w {nick} {message}")
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	if !ValidNick(nick) {
		s.errorf("Invalid nick. Usage: /w {nick} {message}")
		return
	}
	if Normalize(nick) == Normalize(s.user.Nick) {
		s.errorf("Cannot send a message to yourself")
		return
	}
	text := strings.Join(args[1:], " ")
	s.send(protocol.EventPrivmsg, protocol.SendPrivmsg{Nick: nick, Data: text})
	s.OpenConversation(nick)
	if win := s.windows[Normalize(nick)]; win != nil {
		s.addMessage(NewWhisperOutgoing(s.user, nick, text, time.Now()), win)
	}
}

func (s *Session) cmdIgnore(args []string) {
	if len(args) == 0 {
		if len(s.settings.IgnoreNicks) == 0 {
			s.info("You have no ignored nicks")
			return
		}
		listed := append([]string(nil), s.settings.IgnoreNicks...)
		sort.Strings(listed)
		s.info(fmt.Sprintf("Ignoring the following nicks: %s", strings.Join(listed, ", ")))
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	if !ValidNick(nick) {
		s.errorf("Invalid nick. Usage: /ignore {nick}")
		return
	}
	s.Ignore(nick, true)
	s.status(fmt.Sprintf("Ignoring %s", nick))
}

func (s *Session) cmdUnignore(args []string) {
	if len(args) == 0 || !ValidNick(strings.TrimPrefix(args[0], "@")) {
		s.errorf("Invalid nick. Usage: /unignore {nick}")
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	s.Ignore(nick, false)
	s.status(fmt.Sprintf("%s has been removed from your ignore list", nick))
}

func (s *Session) cmdHighlight(args []string) {
	if len(args) == 0 {
		if len(s.settings.HighlightNicks) == 0 {
			s.info("You have no highlighted words")
			return
		}
		s.info(fmt.Sprintf("Currently highlighted words: %s", strings.Join(s.settings.HighlightNicks, ", ")))
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	if !ValidNick(nick) {
		s.errorf("Invalid nick. Usage: /highlight {nick}")
		return
	}
	normalized := Normalize(nick)
	for _, existing := range s.settings.HighlightNicks {
		if Normalize(existing) == normalized {
			s.info(fmt.Sprintf("Highlighting %s", nick))
			return
		}
	}
	s.settings.HighlightNicks = append(s.settings.HighlightNicks, normalized)
	s.ApplySettings(true)
	s.info(fmt.Sprintf("Highlighting %s", nick))
}

func (s *Session) cmdUnhighlight(args []string) {
	if len(args) == 0 || !ValidNick(strings.TrimPrefix(args[0], "@")) {
		s.errorf("Invalid nick. Usage: /unhighlight {nick}")
		return
	}
	normalized := Normalize(strings.TrimPrefix(args[0], "@"))
	kept := s.settings.HighlightNicks[:0]
	for _, existing := range s.settings.HighlightNicks {
		if Normalize(existing) != normalized {
			kept = append(kept, existing)
		}
	}
	s.settings.HighlightNicks = kept
	s.ApplySettings(true)
	s.info(fmt.Sprintf("No longer highlighting %s", normalized))
}

func (s *Session) cmdMaxLines(args []string) {
	if len(args) == 0 {
		s.info(fmt.Sprintf("Current number of lines shown: %d", s.settings.MaxLines))
		return
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		s.errorf("Invalid number of lines. Usage: /maxlines {number}")
		return
	}
	s.settings.MaxLines = count
	s.ApplySettings(true)
	s.info(fmt.Sprintf("Current number of lines shown: %d", count))
}

func (s *Session) cmdMute(args []string) {
	if len(args) == 0 {
		s.info("Usage: /mute {nick} [{time}]")
		return
	}
	if !ValidNick(args[0]) {
		s.errorf("Invalid nick. Usage: /mute {nick} [{time}]")
		return
	}
	var duration time.Duration
	if len(args) > 1 {
		duration = ParseInterval(args[1])
	}
	var reason string
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}
	s.send(protocol.EventMute, protocol.SendMute{Nick: args[0], Duration: duration, Reason: reason})
}

func (s *Session) cmdUnmute(args []string) {
	if len(args) == 0 || !ValidNick(args[0]) {
		s.errorf("Invalid nick. Usage: /unmute {nick}")
		return
	}
	s.send(protocol.EventUnmute, protocol.SendNick{Data: args[0]})
}

func (s *Session) cmdSubOnly(args []string) {
	if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
		s.errorf("Invalid subonly mode. Usage: /subonly {on|off}")
		return
	}
	s.send(protocol.EventSubOnly, protocol.SendNick{Data: args[0]})
}

func (s *Session) cmdBan(args []string, banIP bool) {
	if len(args) < 2 {
		s.info("Usage: /ban {nick} {time} {reason} (time can be \"perm\" for permanent)")
		return
	}
	if !ValidNick(args[0]) {
		s.errorf("Invalid nick. Usage: /ban {nick} {time} {reason}")
		return
	}
	payload := protocol.SendBan{
		Nick:   args[0],
		Reason: strings.Join(args[2:], " "),
		BanIP:  banIP,
	}
	if payload.Reason == "" {
		payload.Reason = "No Reason Given"
	}
	if IsPermanent(args[1]) {
		payload.IsPermanent = true
	} else {
		payload.Duration = ParseInterval(args[1])
	}
	s.send(protocol.EventBan, payload)
}

func (s *Session) cmdUnban(args []string) {
	if len(args) == 0 || !ValidNick(args[0]) {
		s.errorf("Invalid nick. Usage: /unban {nick}")
		return
	}
	s.send(protocol.EventUnban, protocol.SendNick{Data: args[0]})
}

func (s *Session) cmdTimestampFormat(args []string) {
	if len(args) == 0 {
		s.info(fmt.Sprintf("Current format: %s (the default is '15:04', for more info on formats see the time package reference)",
			s.settings.TimestampFormat))
		return
	}
	format := strings.Join(args, " ")
	if !ValidTimestampFormat(format) {
		s.errorf("Invalid format, see the time package reference")
		return
	}
	s.settings.TimestampFormat = format
	s.ApplySettings(true)
	s.info(fmt.Sprintf("New format: %s", format))
}

func (s *Session) cmdTag(args []string) {
	if len(args) == 0 {
		if len(s.settings.TaggedNicks) == 0 {
			s.info("No tagged nicks. Usage: /tag {nick} [{color}]")
			return
		}
		nicks := make([]string, 0, len(s.settings.TaggedNicks))
		for nick := range s.settings.TaggedNicks {
			nicks = append(nicks, nick)
		}
		sort.Strings(nicks)
		s.info(fmt.Sprintf("Tagged nicks: %s. Available colors: %s",
			strings.Join(nicks, ", "), strings.Join(tagColors, ", ")))
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	if !ValidNick(nick) {
		s.errorf("Invalid nick. Usage: /tag {nick} [{color}]")
		return
	}
	if Normalize(nick) == Normalize(s.user.Nick) {
		s.errorf("Cannot tag yourself")
		return
	}
	color := randomTagColor()
	if len(args) > 1 && validTagColor(strings.ToLower(args[1])) {
		color = strings.ToLower(args[1])
	}
	s.settings.TaggedNicks[Normalize(nick)] = color
	s.ApplySettings(true)
	s.info(fmt.Sprintf("Tagged %s with %s", nick, color))
}

func (s *Session) cmdUntag(args []string) {
	if len(args) == 0 || !ValidNick(strings.TrimPrefix(args[0], "@")) {
		s.errorf("Invalid nick. Usage: /untag {nick}")
		return
	}
	nick := strings.TrimPrefix(args[0], "@")
	delete(s.settings.TaggedNicks, Normalize(nick))
	s.ApplySettings(true)
	s.info(fmt.Sprintf("Un-tagged %s", nick))
}

func (s *Session) cmdExit([]string) {
	win := s.active
	if win.IsMain() {
		s.errorf("Cannot exit the main window")
		return
	}
	s.CloseWindow(win.Name)
}

func (s *Session) cmdVote(args []string) {
	if s.vote != nil {
		s.errorf("Vote already in progress.")
		return
	}
	if !s.user.IsPrivileged() {
		s.errorf("You do not have permission to start a vote.")
		return
	}
	raw := "/vote " + strings.Join(args, " ")
	if !IsVoteStartFmt(raw) {
		s.errorf("Invalid vote. Usage: /vote {question}? [{option} or {option} ...]")
		return
	}
	s.send(protocol.EventMsg, protocol.SendMsg{Data: raw})
}

func (s *Session) cmdVoteStop([]string) {
	if s.vote == nil {
		s.errorf("No vote in progress.")
		return
	}
	if Normalize(s.vote.Initiator) != Normalize(s.user.Nick) && !s.user.IsPrivileged() {
		s.errorf("Only the vote starter can stop the vote.")
		return
	}
	s.send(protocol.EventMsg, protocol.SendMsg{Data: "/votestop"})
}

func (s *Session) cmdBanInfo([]string) {
	s.fetchBanInfo()
}

// fetchBanInfo queries the web service for the viewer's active ban and
// renders the outcome back on the event loop.
func (s *Session) fetchBanInfo() {
	if s.api == nil {
		s.errorf("Error loading ban info, try again later or contact support")
		return
	}
	go func() {
		record, err := s.api.BanInfo()
		s.post(func() {
			if err != nil {
				s.errorf("Error loading ban info, try again later or contact support")
				return
			}
			if record == nil || !record.Found {
				s.info("You have no active bans. Happy chatting!")
				return
			}
			text := "You have been banned"
			if record.IssuedBy != "" {
				text += fmt.Sprintf(" by %s", record.IssuedBy)
			}
			if record.End.IsZero() {
				text += " permanently"
			} else {
				text += fmt.Sprintf(" until %s", record.End.Format("2006-01-02 15:04 MST"))
			}
			if record.Reason != "" {
				text += fmt.Sprintf(". Reason: %s", record.Reason)
			}
			s.errorf(text + ".")
		})
	}()
}

func (s *Session) cmdBroadcast(args []string) {
	if len(args) == 0 {
		s.errorf("Usage: /broadcast {message}")
		return
	}
	if !s.user.IsPrivileged() {
		s.errorf("You do not have permission to broadcast.")
		return
	}
	s.send(protocol.EventBroadcast, protocol.SendMsg{Data: strings.Join(args, " ")})
}

func (s *Session) cmdConnect(args []string) {
	if len(args) == 0 {
		s.errorf("Usage: /connect {url}")
		return
	}
	s.Connect(args[0])
}
