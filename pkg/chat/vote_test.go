package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwidget/chat/pkg/protocol"
)

func TestParseVoteStartOptions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		question string
		options  []string
		ok       bool
	}{
		{
			name:     "explicit options",
			input:    "/vote best snack? chips or pretzels or nothing",
			question: "best snack?",
			options:  []string{"chips", "pretzels", "nothing"},
			ok:       true,
		},
		{
			name:     "defaults to yes no",
			input:    "/vote should we do it?",
			question: "should we do it?",
			options:  []string{"yes", "no"},
			ok:       true,
		},
		{
			name:  "no question mark",
			input: "/vote hello everyone",
			ok:    false,
		},
		{
			name:  "not a vote",
			input: "just chatting",
			ok:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question, options, ok := ParseVoteStart(tt.input)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.question, question)
			assert.Equal(t, tt.options, options)
		})
	}
}

func TestVoteStartRequiresPrivilege(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.deliver(`JOIN {"nick":"pleb"}`)

	h.deliver(chatLine("pleb", "/vote is this allowed? yes or no"))

	assert.False(t, h.session.VoteOpen())
	// The line falls through and renders as ordinary chat.
	require.Equal(t, 1, h.session.MainWindow().Len())
	assert.Equal(t, KindUserChat, h.session.MainWindow().Last().Kind)
}

func TestVoteLifecycle(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.deliver(`JOIN {"nick":"mod","features":["moderator"]}`)

	h.deliver(chatLine("mod", "/vote pizza tonight? yes or no"))
	require.True(t, h.session.VoteOpen())
	assert.Contains(t, h.session.MainWindow().Last().Text, "A vote has been started")
	assert.Contains(t, h.session.MainWindow().Last().Text, "1 or 2")

	// Casts are intercepted, never rendered as chat.
	before := h.session.MainWindow().Len()
	h.deliver(chatLine("bob", "1"))
	h.deliver(chatLine("carol", "2"))
	assert.Equal(t, before, h.session.MainWindow().Len())

	// A later cast overwrites the earlier one.
	h.deliver(chatLine("bob", "2"))
	vote := h.session.CurrentVote()
	require.NotNil(t, vote)
	assert.Equal(t, 2, vote.Choice("bob"))
	assert.Equal(t, []int{0, 2}, vote.Totals())

	// Only the initiator stops it; a tally line renders.
	h.deliver(chatLine("bob", "/votestop"))
	require.True(t, h.session.VoteOpen())
	h.deliver(chatLine("mod", "/votestop"))
	assert.False(t, h.session.VoteOpen())
	assert.Contains(t, h.session.MainWindow().Last().Text, "The vote has ended")
	assert.Contains(t, h.session.MainWindow().Last().Text, "no: 2")
}

func TestVoteCastOutOfRangeRejected(t *testing.T) {
	vote := NewVote("mod", "pick one?", []string{"a", "b"}, time.Now())
	assert.False(t, vote.Cast("bob", 0))
	assert.False(t, vote.Cast("bob", 3))
	assert.True(t, vote.Cast("bob", 2))
	assert.True(t, vote.HasVoted("BOB"))
}

func TestOwnCastViaSendInterpreter(t *testing.T) {
	h := newHarness()
	h.signIn("alice")
	h.deliver(`JOIN {"nick":"mod","features":["moderator"]}`)
	h.deliver(chatLine("mod", "/vote pizza tonight? yes or no"))
	require.True(t, h.session.VoteOpen())

	h.session.Send("1")
	assert.Contains(t, h.session.MainWindow().Last().Text, "Your vote has been cast")
	assert.True(t, h.session.CurrentVote().HasVoted("alice"))

	// Voting again is rejected before anything hits the wire.
	sentBefore := len(h.transport.sent)
	h.session.Send("2")
	assert.Contains(t, h.session.MainWindow().Last().Text, "You have already voted")
	assert.Len(t, h.transport.sent, sentBefore)
	assert.Equal(t, 1, h.session.CurrentVote().Choice("alice"))
}

func TestVoteCommandValidatesFormat(t *testing.T) {
	h := newHarness()
	h.signIn("mod", FeatureModerator)

	h.session.Send("/vote no question mark here")
	assert.Empty(t, h.transport.sent)
	assert.Contains(t, h.session.MainWindow().Last().Text, "Invalid vote")

	h.session.Send("/vote dinner? tacos or soup")
	sent := h.transport.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, protocol.SendMsg{Data: "/vote dinner? tacos or soup"}, sent.Payload)
}
