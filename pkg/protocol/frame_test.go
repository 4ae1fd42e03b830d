package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantName    EventName
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "message with payload",
			raw:         `MSG {"nick":"alice","timestamp":1,"data":"hello"}`,
			wantName:    EventMsg,
			wantPayload: `{"nick":"alice","timestamp":1,"data":"hello"}`,
		},
		{
			name:        "error with string payload",
			raw:         `ERR "muted"`,
			wantName:    EventErr,
			wantPayload: `"muted"`,
		},
		{
			name:     "bare event",
			raw:      "PRIVMSGSENT",
			wantName: EventPrivmsgSent,
		},
		{
			name:        "trailing newline stripped",
			raw:         "PING {}\r\n",
			wantName:    EventPing,
			wantPayload: "{}",
		},
		{
			name:    "empty frame",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "lowercase name rejected",
			raw:     "msg {}",
			wantErr: true,
		},
		{
			name:    "leading space rejected",
			raw:     " MSG {}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, frame.Name)
			assert.Equal(t, tt.wantPayload, string(frame.Payload))
		})
	}
}

func TestFormatFrame(t *testing.T) {
	out, err := FormatFrame(EventMsg, &SendMsg{Data: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, `MSG {"data":"hello world"}`, out)

	out, err = FormatFrame(EventPong, nil)
	require.NoError(t, err)
	assert.Equal(t, "PONG", out)
}

func TestMsgRoundTrip(t *testing.T) {
	out, err := FormatFrame(EventPrivmsg, &SendPrivmsg{Nick: "bob", Data: "hi there"})
	require.NoError(t, err)

	frame, err := ParseFrame(out)
	require.NoError(t, err)
	require.Equal(t, EventPrivmsg, frame.Name)

	var decoded SendPrivmsg
	require.NoError(t, frame.Decode(&decoded))
	assert.Equal(t, "bob", decoded.Nick)
	assert.Equal(t, "hi there", decoded.Data)
}

// TestFrameRoundTrip checks that any message body survives format/parse.
func TestFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nick := rapid.StringMatching(`[a-zA-Z0-9_]{3,20}`).Draw(t, "nick")
		data := rapid.StringN(0, 256, -1).Draw(t, "data")
		ts := rapid.Int64Range(0, 1<<45).Draw(t, "ts")

		raw, err := FormatFrame(EventMsg, &Msg{Nick: nick, Timestamp: ts, Data: data})
		if err != nil {
			t.Fatalf("format failed: %v", err)
		}
		if strings.ContainsAny(raw, "\r\n") {
			t.Fatalf("frame contains raw newline: %q", raw)
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		var decoded Msg
		if err := frame.Decode(&decoded); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.Nick != nick || decoded.Data != data || decoded.Timestamp != ts {
			t.Fatalf("round-trip mismatch: got %+v", decoded)
		}
	})
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Your previous message was identical.", ErrorText(ErrDuplicate))
	assert.Equal(t, "somenewcode", ErrorText("somenewcode"))
}

func TestIsFatalError(t *testing.T) {
	assert.True(t, IsFatalError(ErrTooManyConnections))
	assert.True(t, IsFatalError(ErrBanned))
	assert.False(t, IsFatalError(ErrMuted))
	assert.False(t, IsFatalError("unknown"))
}
