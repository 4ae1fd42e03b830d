package protocol

// Error codes the gateway sends in ERR payloads.
const (
	ErrUnknown            = "unknown"
	ErrNoPermission       = "nopermission"
	ErrProtocolError      = "protocolerror"
	ErrNeedLogin          = "needlogin"
	ErrInvalidMsg         = "invalidmsg"
	ErrThrottled          = "throttled"
	ErrDuplicate          = "duplicate"
	ErrMuted              = "muted"
	ErrSubMode            = "submode"
	ErrNeedBanReason      = "needbanreason"
	ErrBanned             = "banned"
	ErrPrivmsgBanned      = "privmsgbanned"
	ErrRequireSocket      = "requiresocket"
	ErrTooManyConnections = "toomanyconnections"
	ErrSocketError        = "socketerror"
	ErrAccountTooYoung    = "privmsgaccounttooyoung"
	ErrNotFound           = "notfound"
	ErrNotConnected       = "notconnected"
)

var errorStrings = map[string]string{
	ErrUnknown:            "There was an unknown error",
	ErrNoPermission:       "You do not have the correct permissions for that command",
	ErrProtocolError:      "Invalid or incorrectly formatted message/command",
	ErrNeedLogin:          "You are not currently logged in. If this issue persists after refreshing, try logging out and back in.",
	ErrInvalidMsg:         "There was an error sending your message. It may have hit the character limit.",
	ErrThrottled:          "You tried sending messages too quickly",
	ErrDuplicate:          "Your previous message was identical.",
	ErrMuted:              "You are currently muted. Mutes are never permanent.",
	ErrSubMode:            "The chat is currently in sub-only mode",
	ErrNeedBanReason:      "Providing a reason for the ban is currently required",
	ErrBanned:             "You are currently banned.",
	ErrPrivmsgBanned:      "You are currently banned and cannot use this feature.",
	ErrRequireSocket:      "Chat requires that your browser supports websockets",
	ErrTooManyConnections: "Only 5 connections allowed. Make sure you do not have the chat open in multiple tabs.",
	ErrSocketError:        "There was an error connecting to the server",
	ErrAccountTooYoung:    "Your account is too new to use this feature",
	ErrNotFound:           "The user was not found",
	ErrNotConnected:       "You are not currently connected to chat. If this issue persists after refreshing, try logging out and back in.",
}

// ErrorText maps a gateway error code to its human-readable string, falling
// back to the raw code when unmapped.
func ErrorText(code string) string {
	if s, ok := errorStrings[code]; ok {
		return s
	}
	return code
}

// IsFatalError reports whether an error code should suppress automatic
// reconnect attempts.
func IsFatalError(code string) bool {
	return code == ErrTooManyConnections || code == ErrBanned
}
