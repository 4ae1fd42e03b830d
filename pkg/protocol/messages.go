package protocol

import "time"

// UserInfo describes one connected user as the gateway reports it.
type UserInfo struct {
	Nick     string   `json:"nick"`
	Features []string `json:"features,omitempty"`
}

// Msg is the payload of MSG, and also of the moderation events (MUTE, UNMUTE,
// BAN, UNBAN, SUBONLY, BROADCAST) where Data carries the target nick or the
// on/off token rather than chat text.
type Msg struct {
	Nick      string   `json:"nick"`
	Features  []string `json:"features,omitempty"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
	Data      string   `json:"data"`
}

// Time converts the millisecond timestamp to a time.Time.
func (m *Msg) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Names is the payload of NAMES: the full roster snapshot sent on connect.
type Names struct {
	ConnectionCount int        `json:"connectioncount"`
	Users           []UserInfo `json:"users"`
}

// Privmsg is the payload of PRIVMSG: an inbound whisper.
type Privmsg struct {
	MessageID int64  `json:"messageid,omitempty"`
	Nick      string `json:"nick"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
}

// Close is the payload of the synthetic CLOSE event. RetryMilli is the
// transport's retry-delay hint; zero means it will not retry.
type Close struct {
	RetryMilli int64 `json:"retryMilli"`
}

// SendMsg is the outbound MSG payload.
type SendMsg struct {
	Data string `json:"data"`
}

// SendPrivmsg is the outbound PRIVMSG payload.
type SendPrivmsg struct {
	Nick string `json:"nick"`
	Data string `json:"data"`
}

// SendMute is the outbound MUTE payload. Duration is in nanoseconds and is
// omitted for the gateway's default mute length.
type SendMute struct {
	Nick     string        `json:"nick"`
	Duration time.Duration `json:"duration,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// SendBan is the outbound BAN payload. Exactly one of Duration or
// IsPermanent is set.
type SendBan struct {
	Nick        string        `json:"nick"`
	Reason      string        `json:"reason"`
	Duration    time.Duration `json:"duration,omitempty"`
	IsPermanent bool          `json:"ispermanent,omitempty"`
	BanIP       bool          `json:"banip,omitempty"`
}

// SendNick is the outbound payload of events that carry only a nick
// (UNMUTE, UNBAN) or an on/off token (SUBONLY).
type SendNick struct {
	Data string `json:"data"`
}
