package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventName identifies a named protocol event. The wire format is a text
// frame of the form "NAME payload" where payload is a JSON document, e.g.
//
//	MSG {"nick":"alice","timestamp":1696000000000,"data":"hello"}
//	ERR "muted"
type EventName string

// Inbound events emitted by the chat gateway.
const (
	EventDispatch    EventName = "DISPATCH"
	EventNames       EventName = "NAMES"
	EventJoin        EventName = "JOIN"
	EventQuit        EventName = "QUIT"
	EventMsg         EventName = "MSG"
	EventMute        EventName = "MUTE"
	EventUnmute      EventName = "UNMUTE"
	EventBan         EventName = "BAN"
	EventUnban       EventName = "UNBAN"
	EventErr         EventName = "ERR"
	EventSubOnly     EventName = "SUBONLY"
	EventBroadcast   EventName = "BROADCAST"
	EventPrivmsg     EventName = "PRIVMSG"
	EventPrivmsgSent EventName = "PRIVMSGSENT"
	EventPing        EventName = "PING"
	EventPong        EventName = "PONG"
	EventRefresh     EventName = "REFRESH"
)

// Synthetic events emitted by the transport itself, never seen on the wire.
const (
	EventConnecting  EventName = "CONNECTING"
	EventOpen        EventName = "OPEN"
	EventClose       EventName = "CLOSE"
	EventSocketError EventName = "SOCKETERROR"
)

// Frame is one parsed protocol event: the event name plus its raw JSON
// payload. Payload may be empty for events that carry no body.
type Frame struct {
	Name    EventName
	Payload []byte
}

// ParseFrame splits a raw text frame into its event name and JSON payload.
// The name is the leading run of characters up to the first space and must
// be a non-empty uppercase token.
func ParseFrame(raw string) (*Frame, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return nil, fmt.Errorf("empty frame")
	}
	name := raw
	payload := ""
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		name, payload = raw[:i], raw[i+1:]
	}
	if name == "" || name != strings.ToUpper(name) {
		return nil, fmt.Errorf("malformed event name %q", name)
	}
	return &Frame{Name: EventName(name), Payload: []byte(payload)}, nil
}

// FormatFrame renders an outbound event as a text frame. A nil payload
// produces a bare event name.
func FormatFrame(name EventName, payload interface{}) (string, error) {
	if payload == nil {
		return string(name), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", name, err)
	}
	return string(name) + " " + string(body), nil
}

// Decode unmarshals the frame payload into v.
func (f *Frame) Decode(v interface{}) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", f.Name)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Name, err)
	}
	return nil
}
