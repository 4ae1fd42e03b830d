// Package settings holds the versioned client configuration: a typed record
// seeded from a fixed default table, a partial merge from stored payloads,
// one-way schema migrations, and persistence routing between the per-account
// profile store and local device storage.
package settings

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current settings schema version. Stored payloads with
// an older version are migrated on load.
const SchemaVersion = 2

// StorageKey is the key settings are stored under in local device storage.
const StorageKey = "chat.settings"

// Settings is the live configuration record. Field names map to the stringly
// keys of the stored payload (see Map / Merge).
type Settings struct {
	SchemaVersion         int
	ShowTime              bool
	HideFlairIcons        bool
	ProfileSettings       bool
	TimestampFormat       string
	MaxLines              int
	NotificationWhisper   bool
	NotificationHighlight bool
	HighlightSelf         bool
	CustomHighlight       []string
	HighlightNicks        []string
	TaggedNicks           map[string]string
	ShowRemoved           int
	ShowWhispersInChat    bool
	IgnoreNicks           []string
	FocusMentioned        bool
	NotificationTimeout   bool
	IgnoreMentions        bool
	AutocompleteHelper    bool
	TaggedVisibility      bool
	HideNSFW              bool
	AnimateForever        bool
	FormatterGreen        bool
	FormatterEmote        bool
	FormatterAntiLinkGore bool
	BoldTags              bool
	AllowRefresh          bool
}

// Default returns the fixed default settings table.
func Default() *Settings {
	return &Settings{
		SchemaVersion:         SchemaVersion,
		ShowTime:              false,
		HideFlairIcons:        false,
		ProfileSettings:       true,
		TimestampFormat:       "15:04",
		MaxLines:              250,
		NotificationWhisper:   true,
		NotificationHighlight: true,
		HighlightSelf:         true,
		CustomHighlight:       nil,
		HighlightNicks:        nil,
		TaggedNicks:           map[string]string{},
		ShowRemoved:           0,
		ShowWhispersInChat:    true,
		IgnoreNicks:           nil,
		FocusMentioned:        false,
		NotificationTimeout:   true,
		IgnoreMentions:        false,
		AutocompleteHelper:    true,
		TaggedVisibility:      false,
		HideNSFW:              false,
		AnimateForever:        false,
		FormatterGreen:        true,
		FormatterEmote:        true,
		FormatterAntiLinkGore: true,
		BoldTags:              true,
		AllowRefresh:          true,
	}
}

// Map renders the record as the stringly-keyed payload used by both the
// profile store and local storage. Tagged nicks serialize as [nick, color]
// pairs, matching the stored shape.
func (s *Settings) Map() map[string]interface{} {
	tagged := make([][2]string, 0, len(s.TaggedNicks))
	for nick, color := range s.TaggedNicks {
		tagged = append(tagged, [2]string{nick, color})
	}
	return map[string]interface{}{
		"schemaversion":          s.SchemaVersion,
		"showtime":               s.ShowTime,
		"hideflairicons":         s.HideFlairIcons,
		"profilesettings":        s.ProfileSettings,
		"timestampformat":        s.TimestampFormat,
		"maxlines":               s.MaxLines,
		"notificationwhisper":    s.NotificationWhisper,
		"notificationhighlight":  s.NotificationHighlight,
		"highlight":              s.HighlightSelf,
		"customhighlight":        s.CustomHighlight,
		"highlightnicks":         s.HighlightNicks,
		"taggednicks":            tagged,
		"showremoved":            s.ShowRemoved,
		"showhispersinchat":      s.ShowWhispersInChat,
		"ignorenicks":            s.IgnoreNicks,
		"focusmentioned":         s.FocusMentioned,
		"notificationtimeout":    s.NotificationTimeout,
		"ignorementions":         s.IgnoreMentions,
		"autocompletehelper":     s.AutocompleteHelper,
		"taggedvisibility":       s.TaggedVisibility,
		"hidensfw":               s.HideNSFW,
		"animateforever":         s.AnimateForever,
		"formatter-green":        s.FormatterGreen,
		"formatter-emote":        s.FormatterEmote,
		"formatter-antilinkgore": s.FormatterAntiLinkGore,
		"boldtags":               s.BoldTags,
		"allowRefresh":           s.AllowRefresh,
	}
}

// Marshal renders the record as a JSON blob for persistence.
func (s *Settings) Marshal() ([]byte, error) {
	return json.Marshal(s.Map())
}

// Load merges a stored payload into the record and runs schema migrations.
// Only keys present in the default table are merged, and only when the
// stored value is defined; everything else keeps its default. Returns true
// when a migration ran and the payload should be persisted back.
func (s *Settings) Load(stored map[string]interface{}) bool {
	if len(stored) == 0 {
		return false
	}

	oldVersion := -1
	if v, ok := asInt(stored["schemaversion"]); ok {
		oldVersion = v
	}

	mergeBool(stored, "showtime", &s.ShowTime)
	mergeBool(stored, "hideflairicons", &s.HideFlairIcons)
	mergeBool(stored, "profilesettings", &s.ProfileSettings)
	mergeString(stored, "timestampformat", &s.TimestampFormat)
	mergeInt(stored, "maxlines", &s.MaxLines)
	mergeBool(stored, "notificationwhisper", &s.NotificationWhisper)
	mergeBool(stored, "notificationhighlight", &s.NotificationHighlight)
	mergeBool(stored, "highlight", &s.HighlightSelf)
	mergeStrings(stored, "customhighlight", &s.CustomHighlight)
	mergeStrings(stored, "highlightnicks", &s.HighlightNicks)
	mergeTagged(stored, "taggednicks", &s.TaggedNicks)
	mergeInt(stored, "showremoved", &s.ShowRemoved)
	mergeBool(stored, "showhispersinchat", &s.ShowWhispersInChat)
	mergeStrings(stored, "ignorenicks", &s.IgnoreNicks)
	mergeBool(stored, "focusmentioned", &s.FocusMentioned)
	mergeBool(stored, "notificationtimeout", &s.NotificationTimeout)
	mergeBool(stored, "ignorementions", &s.IgnoreMentions)
	mergeBool(stored, "autocompletehelper", &s.AutocompleteHelper)
	mergeBool(stored, "taggedvisibility", &s.TaggedVisibility)
	mergeBool(stored, "hidensfw", &s.HideNSFW)
	mergeBool(stored, "animateforever", &s.AnimateForever)
	mergeBool(stored, "formatter-green", &s.FormatterGreen)
	mergeBool(stored, "formatter-emote", &s.FormatterEmote)
	mergeBool(stored, "formatter-antilinkgore", &s.FormatterAntiLinkGore)
	mergeBool(stored, "boldtags", &s.BoldTags)
	mergeBool(stored, "allowRefresh", &s.AllowRefresh)

	if oldVersion != -1 && oldVersion < SchemaVersion {
		migrate(s, oldVersion)
		s.SchemaVersion = SchemaVersion
		return true
	}
	s.SchemaVersion = SchemaVersion
	return false
}

// LoadBlob is Load for a raw JSON payload, tolerating both the object form
// and the legacy [[key, value], ...] pair form.
func (s *Settings) LoadBlob(blob []byte) (bool, error) {
	if len(blob) == 0 {
		return false, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(blob, &obj); err == nil {
		return s.Load(obj), nil
	}
	var pairs [][2]interface{}
	if err := json.Unmarshal(blob, &pairs); err != nil {
		return false, fmt.Errorf("parse settings payload: %w", err)
	}
	obj = make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		if key, ok := p[0].(string); ok {
			obj[key] = p[1]
		}
	}
	return s.Load(obj), nil
}

// migrate applies one-way transforms to bring a record loaded from version
// from up to the current schema.
func migrate(s *Settings, from int) {
	for v := from; v < SchemaVersion; v++ {
		switch v {
		case 1:
			// v1 tagged nicks carried no color. Anything that came through
			// the merge without a palette color gets the first palette entry.
			for nick, color := range s.TaggedNicks {
				if color == "" {
					s.TaggedNicks[nick] = "green"
				}
			}
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		var out int
		if _, err := fmt.Sscanf(n, "%d", &out); err == nil {
			return out, true
		}
	}
	return 0, false
}

func mergeBool(stored map[string]interface{}, key string, dst *bool) {
	if v, ok := stored[key].(bool); ok {
		*dst = v
	}
}

func mergeInt(stored map[string]interface{}, key string, dst *int) {
	if v, ok := asInt(stored[key]); ok && stored[key] != nil {
		*dst = v
	}
}

func mergeString(stored map[string]interface{}, key string, dst *string) {
	if v, ok := stored[key].(string); ok {
		*dst = v
	}
}

func mergeStrings(stored map[string]interface{}, key string, dst *[]string) {
	raw, ok := stored[key].([]interface{})
	if !ok {
		return
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	*dst = out
}

// mergeTagged accepts both the v2 [nick, color] pair form and the v1 bare
// nick list; bare nicks merge with an empty color for migrate to fill in.
func mergeTagged(stored map[string]interface{}, key string, dst *map[string]string) {
	raw, ok := stored[key].([]interface{})
	if !ok {
		return
	}
	out := make(map[string]string, len(raw))
	for _, item := range raw {
		switch entry := item.(type) {
		case string:
			out[entry] = ""
		case []interface{}:
			if len(entry) >= 2 {
				nick, okN := entry[0].(string)
				color, okC := entry[1].(string)
				if okN && okC {
					out[nick] = color
				}
			}
		}
	}
	*dst = out
}
