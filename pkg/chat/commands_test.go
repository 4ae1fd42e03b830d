package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwidget/chat/pkg/protocol"
)

func TestDoubledSlashSendsLiteralSlash(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("//hello")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventMsg, sent.Name)
	assert.Equal(t, protocol.SendMsg{Data: "/hello"}, sent.Payload)
	assert.Equal(t, "/hello", h.session.MainWindow().Last().Text)
}

func TestSlashMeSendsAsChat(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/me waves")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventMsg, sent.Name)
	assert.Equal(t, protocol.SendMsg{Data: "/me waves"}, sent.Payload)
	msg := h.session.MainWindow().Last()
	assert.True(t, msg.IsSlashMe)
}

func TestUnknownCommandRejected(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/frobnicate now")

	assert.Empty(t, h.transport.sent)
	msg := h.session.MainWindow().Last()
	require.NotNil(t, msg)
	assert.Equal(t, KindError, msg.Kind)
	assert.Contains(t, msg.Text, "Unknown command")
}

func TestEmptyInputIgnored(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("")
	h.session.Send("   ")

	assert.Empty(t, h.transport.sent)
	assert.Equal(t, 0, h.session.MainWindow().Len())
}

func TestMuteCommandBuildsDurationPayload(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/mute bob 10m rude")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventMute, sent.Name)
	assert.Equal(t, protocol.SendMute{Nick: "bob", Duration: 600000000000, Reason: "rude"}, sent.Payload)

	blob, err := json.Marshal(sent.Payload)
	require.NoError(t, err)
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &wire))
	assert.Equal(t, "bob", wire["nick"])
	assert.Equal(t, float64(600000000000), wire["duration"])
	assert.Equal(t, "rude", wire["reason"])
}

func TestMuteWithoutDurationOmitsIt(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/mute bob")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.SendMute{Nick: "bob"}, sent.Payload)

	blob, err := json.Marshal(sent.Payload)
	require.NoError(t, err)
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &wire))
	assert.NotContains(t, wire, "duration")
	assert.NotContains(t, wire, "reason")
}

func TestBanCommandVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  protocol.SendBan
	}{
		{
			name:  "timed with reason",
			input: "/ban bob 1d spamming links",
			want:  protocol.SendBan{Nick: "bob", Reason: "spamming links", Duration: 24 * time.Hour},
		},
		{
			name:  "permanent",
			input: "/ban bob perm bye",
			want:  protocol.SendBan{Nick: "bob", Reason: "bye", IsPermanent: true},
		},
		{
			name:  "missing reason gets default",
			input: "/ban bob 1h",
			want:  protocol.SendBan{Nick: "bob", Reason: "No Reason Given", Duration: time.Hour},
		},
		{
			name:  "ipban sets flag",
			input: "/ipban bob perm evading",
			want:  protocol.SendBan{Nick: "bob", Reason: "evading", IsPermanent: true, BanIP: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.signIn("alice")

			h.session.Send(tt.input)

			sent := h.transport.lastSent()
			require.NotNil(t, sent)
			assert.Equal(t, protocol.EventBan, sent.Name)
			assert.Equal(t, tt.want, sent.Payload)
		})
	}
}

func TestWhisperCommandSendsPrivmsg(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/w bob are you around")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventPrivmsg, sent.Name)
	assert.Equal(t, protocol.SendPrivmsg{Nick: "bob", Data: "are you around"}, sent.Payload)

	// The conversation window opens in front with the outgoing line in it.
	win := h.session.GetWindow("bob")
	require.NotNil(t, win)
	assert.True(t, win.Visible)
	assert.Equal(t, KindWhisperOutgoing, win.Last().Kind)
}

func TestWhisperToSelfRejected(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/w Alice hi me")

	assert.Empty(t, h.transport.sent)
	assert.Contains(t, h.session.MainWindow().Last().Text, "yourself")
}

func TestPlainTextInWhisperWindowSendsPrivmsg(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.session.OpenConversation("bob")

	h.session.Send("see you at 8")

	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventPrivmsg, sent.Name)
	assert.Equal(t, protocol.SendPrivmsg{Nick: "bob", Data: "see you at 8"}, sent.Payload)

	win := h.session.GetWindow("bob")
	require.NotNil(t, win)
	msg := win.Last()
	assert.Equal(t, KindWhisperOutgoing, msg.Kind)
	assert.Equal(t, "see you at 8", msg.Text)
}

func TestCommandsRejectedInWhisperWindows(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.session.OpenConversation("bob")

	h.session.Send("/ignore carol")

	assert.Empty(t, h.transport.sent)
	win := h.session.GetWindow("bob")
	assert.Contains(t, win.Last().Text, "No commands in private windows")
}

func TestExitClosesWhisperWindow(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.session.OpenConversation("bob")
	require.Equal(t, "bob", h.session.ActiveWindow().Name)

	h.session.Send("/exit")

	assert.Nil(t, h.session.GetWindow("bob"))
	assert.Equal(t, MainWindowName, h.session.ActiveWindow().Name)
}

func TestExitInMainWindowRejected(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/exit")

	assert.NotNil(t, h.session.MainWindow())
	assert.Contains(t, h.session.MainWindow().Last().Text, "Cannot exit")
}

func TestIgnoreCommandUpdatesSettings(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/ignore Bob")
	assert.Contains(t, h.session.Settings().IgnoreNicks, "bob")
	assert.True(t, h.session.Ignored("BOB", ""))

	h.session.Send("/unignore bob")
	assert.NotContains(t, h.session.Settings().IgnoreNicks, "bob")
	assert.False(t, h.session.Ignored("bob", ""))
}

func TestMaxLinesCommand(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/maxlines 50")
	assert.Equal(t, 50, h.session.Settings().MaxLines)
	assert.Equal(t, 50, h.session.MainWindow().MaxLines)

	h.session.Send("/maxlines nonsense")
	assert.Equal(t, 50, h.session.Settings().MaxLines)
	assert.Contains(t, h.session.MainWindow().Last().Text, "Invalid number of lines")
}

func TestSubOnlyValidatesMode(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/subonly on")
	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventSubOnly, sent.Name)
	assert.Equal(t, protocol.SendNick{Data: "on"}, sent.Payload)

	h.session.Send("/subonly sideways")
	assert.Len(t, h.transport.sent, 1)
	assert.Contains(t, h.session.MainWindow().Last().Text, "Invalid subonly mode")
}

func TestTagCommandPalette(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/tag bob purple")
	assert.Equal(t, "purple", h.session.Settings().TaggedNicks["bob"])

	// An unknown color falls back to a random palette pick.
	h.session.Send("/tag carol chartreuse")
	assert.True(t, validTagColor(h.session.Settings().TaggedNicks["carol"]))

	h.session.Send("/untag bob")
	_, tagged := h.session.Settings().TaggedNicks["bob"]
	assert.False(t, tagged)
}

func TestTagSelfRejected(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/tag alice red")

	_, tagged := h.session.Settings().TaggedNicks["alice"]
	assert.False(t, tagged)
	assert.Contains(t, h.session.MainWindow().Last().Text, "yourself")
}

func TestTaggedAuthorColorsMessage(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.session.Send("/tag bob sky")

	h.deliver(chatLine("bob", "colorful"))

	msg := h.session.MainWindow().Last()
	assert.Equal(t, "sky", msg.TagColor)
}

func TestCommandAliasesResolve(t *testing.T) {
	tests := []struct {
		verb string
		want Command
	}{
		{"w", CmdWhisper},
		{"TELL", CmdWhisper},
		{"dm", CmdWhisper},
		{"block", CmdIgnore},
		{"unblock", CmdUnignore},
		{"v", CmdVote},
		{"vs", CmdVoteStop},
	}
	for _, tt := range tests {
		cmd, ok := LookupCommand(tt.verb)
		require.True(t, ok, tt.verb)
		assert.Equal(t, tt.want, cmd, tt.verb)
	}
}

func TestTimestampFormatCommand(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/timestampformat 2 Jan 15:04")
	assert.Equal(t, "2 Jan 15:04", h.session.Settings().TimestampFormat)

	h.session.Send("/timestampformat {bad}")
	assert.Equal(t, "2 Jan 15:04", h.session.Settings().TimestampFormat)
}

func TestBroadcastCommandRequiresPrivilege(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/broadcast big news")
	assert.Empty(t, h.transport.sent)

	h.signIn("mod", FeatureModerator)
	h.session.Send("/broadcast big news")
	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.EventBroadcast, sent.Name)
	assert.Equal(t, protocol.SendMsg{Data: "big news"}, sent.Payload)
}

func TestEmoteSendSkipsUnresolvedQueue(t *testing.T) {
	h := newHarness("OhKrappa")
	h.signIn("alice")

	h.session.Send("OhKrappa")

	assert.Equal(t, 0, h.session.UnresolvedCount())
	assert.Equal(t, 0, h.session.MainWindow().Len(), "emotes wait for the echo")
	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.SendMsg{Data: "OhKrappa"}, sent.Payload)
}

func TestSuffixedEmoteSendSkipsUnresolvedQueue(t *testing.T) {
	h := newHarness("OhKrappa")
	h.signIn("alice")

	h.session.Send("OhKrappa:spin")

	assert.Equal(t, 0, h.session.UnresolvedCount())
	assert.Equal(t, 0, h.session.MainWindow().Len(), "suffixed emotes wait for the echo too")

	// The echo renders exactly once, not as a combo of an optimistic line.
	h.deliver(chatLine("alice", "OhKrappa:spin"))
	main := h.session.MainWindow()
	require.Equal(t, 1, main.Len())
	assert.Equal(t, KindUserChat, main.Last().Kind)
	assert.Equal(t, 0, h.session.UnresolvedCount())
}

func TestConnectCommand(t *testing.T) {
	h := newHarness()
	h.signIn("alice")

	h.session.Send("/connect wss://chat.example.com/ws")

	assert.True(t, h.transport.connected)
	assert.Equal(t, "wss://chat.example.com/ws", h.transport.connectURL)
}
