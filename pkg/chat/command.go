package chat

import "strings"

// Command is the closed set of control-bus events. Slash-command verbs and
// their aliases resolve to one of these through a static table.
type Command int

const (
	CmdSend Command = iota
	CmdHelp
	CmdEmotes
	CmdWhisper
	CmdIgnore
	CmdUnignore
	CmdHighlight
	CmdUnhighlight
	CmdMaxLines
	CmdMute
	CmdUnmute
	CmdSubOnly
	CmdBan
	CmdIPBan
	CmdUnban
	CmdTimestampFormat
	CmdTag
	CmdUntag
	CmdExit
	CmdVote
	CmdVoteStop
	CmdBanInfo
	CmdBroadcast
	CmdConnect
)

// commandAliases is the static verb table. Keys are uppercased command
// tokens with the slash stripped.
var commandAliases = map[string]Command{
	"SEND":   CmdSend,
	"HELP":   CmdHelp,
	"EMOTES": CmdEmotes,

	"MESSAGE": CmdWhisper,
	"MSG":     CmdWhisper,
	"WHISPER": CmdWhisper,
	"W":       CmdWhisper,
	"TELL":    CmdWhisper,
	"T":       CmdWhisper,
	"NOTIFY":  CmdWhisper,
	"PM":      CmdWhisper,
	"DM":      CmdWhisper,

	"IGNORE":   CmdIgnore,
	"BLOCK":    CmdIgnore,
	"UNIGNORE": CmdUnignore,
	"UNBLOCK":  CmdUnignore,

	"HIGHLIGHT":   CmdHighlight,
	"UNHIGHLIGHT": CmdUnhighlight,
	"MAXLINES":    CmdMaxLines,

	"MUTE":    CmdMute,
	"UNMUTE":  CmdUnmute,
	"SUBONLY": CmdSubOnly,
	"BAN":     CmdBan,
	"IPBAN":   CmdIPBan,
	"UNBAN":   CmdUnban,

	"TIMESTAMPFORMAT": CmdTimestampFormat,
	"TAG":             CmdTag,
	"UNTAG":           CmdUntag,
	"EXIT":            CmdExit,

	"VOTE":     CmdVote,
	"V":        CmdVote,
	"VOTESTOP": CmdVoteStop,
	"VS":       CmdVoteStop,

	"BANINFO":   CmdBanInfo,
	"BROADCAST": CmdBroadcast,
	"CONNECT":   CmdConnect,
}

// LookupCommand resolves a command token (without the slash, any case) to
// its Command.
func LookupCommand(verb string) (Command, bool) {
	cmd, ok := commandAliases[strings.ToUpper(verb)]
	return cmd, ok
}

// CommandInfo describes one entry of the /help listing.
type CommandInfo struct {
	Name       string
	Desc       string
	Aliases    []string
	Privileged bool
}

// commandList drives /help output and autocomplete seeding, in display
// order.
var commandList = []CommandInfo{
	{Name: "help", Desc: "Helpful information."},
	{Name: "emotes", Desc: "A list of the chats emotes in text form."},
	{Name: "me", Desc: "A message with intent."},
	{Name: "message", Desc: "Send someone a private message.", Aliases: []string{"msg", "whisper", "w", "tell", "t", "notify", "pm", "dm"}},
	{Name: "ignore", Desc: "No longer see a users messages.", Aliases: []string{"block"}},
	{Name: "unignore", Desc: "Remove a user from your ignore list.", Aliases: []string{"unblock"}},
	{Name: "highlight", Desc: "Highlights a target users messages."},
	{Name: "unhighlight", Desc: "Unhighlight target user."},
	{Name: "maxlines", Desc: "The maximum number of lines the chat will store."},
	{Name: "mute", Desc: "The users messages will be blocked from everyone.", Privileged: true},
	{Name: "unmute", Desc: "Unmute the user.", Privileged: true},
	{Name: "subonly", Desc: "Subscribers only.", Privileged: true},
	{Name: "ban", Desc: "User will no longer be able to connect to the chat.", Aliases: []string{"ipban"}, Privileged: true},
	{Name: "unban", Desc: "Unban a user.", Privileged: true},
	{Name: "timestampformat", Desc: "Set the time format of the chat."},
	{Name: "tag", Desc: "Mark a users messages."},
	{Name: "untag", Desc: "Unmark a users messages."},
	{Name: "exit", Desc: "Exit the conversation."},
	{Name: "vote", Desc: "Start a vote.", Aliases: []string{"v"}},
	{Name: "votestop", Desc: "Stop the poll.", Aliases: []string{"vs"}},
}

// Commands returns the /help command listing.
func Commands() []CommandInfo {
	return commandList
}
