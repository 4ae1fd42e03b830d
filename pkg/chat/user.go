package chat

import "strings"

// Feature names the gateway attaches to users. Only the ones the session
// engine cares about are named here; anything else passes through for
// rendering.
const (
	FeatureAdmin     = "admin"
	FeatureModerator = "moderator"
	FeatureBot       = "bot"
	FeatureProtected = "protected"
	FeatureSub       = "subscriber"
)

// User is one known chat participant. The session roster maps normalized
// nicks to a single User instance; everything else holds references.
type User struct {
	Nick     string
	Features []string
}

// NewUser constructs a transient user for a nick that has not been seen in
// the roster, e.g. the sender of a whisper who is not currently connected.
func NewUser(nick string) *User {
	return &User{Nick: nick}
}

// HasFeature reports whether the user carries the named feature.
func (u *User) HasFeature(name string) bool {
	for _, f := range u.Features {
		if f == name {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the user may run moderation commands and
// start votes.
func (u *User) IsPrivileged() bool {
	return u.HasFeature(FeatureAdmin) || u.HasFeature(FeatureModerator) || u.HasFeature(FeatureBot)
}

// Normalize lower-cases a nick for use as a map key.
func Normalize(nick string) string {
	return strings.ToLower(nick)
}
