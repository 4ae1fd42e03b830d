package chat

import (
	"regexp"
	"sort"
	"strings"
)

var (
	nickPattern  = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	nsfwPattern  = regexp.MustCompile(`(?i)\b(?:NSFL|NSFW)\b`)
	regexSpecial = regexp.MustCompile(`[\-\[\]\/{}()*+?.\\^$|]`)
)

// ValidNick reports whether a user-supplied nick matches the nick grammar:
// 3-20 word characters.
func ValidNick(nick string) bool {
	return nickPattern.MatchString(nick)
}

// escapeForRegex makes a literal string safe for embedding in a pattern.
func escapeForRegex(s string) string {
	return regexSpecial.ReplaceAllString(strings.TrimSpace(s), `\${0}`)
}

// Matchers holds the regular expressions derived from settings and the
// viewer identity. It is a pure function of its inputs; Compile rebuilds
// everything and has no other side effects.
type Matchers struct {
	Ignore          *regexp.Regexp // ignore-list words against message bodies
	HighlightSelf   *regexp.Regexp // the viewer's own nick
	HighlightNicks  *regexp.Regexp // /highlight'ed author nicks
	HighlightCustom *regexp.Regexp // user-configured phrases
}

// CompileMatchers builds the derived matchers from the ignore list, the two
// highlight lists, and the viewer's nick. Empty inputs compile to nil
// matchers, which never match.
func CompileMatchers(selfNick string, ignoreNicks, highlightNicks, customHighlight []string) *Matchers {
	m := &Matchers{}
	if words := escapeAll(ignoreNicks); len(words) > 0 {
		m.Ignore = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	if selfNick != "" {
		m.HighlightSelf = regexp.MustCompile(`(?i)\b(?:` + escapeForRegex(selfNick) + `)\b`)
	}
	if words := escapeAll(highlightNicks); len(words) > 0 {
		m.HighlightNicks = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	if words := escapeAll(customHighlight); len(words) > 0 {
		m.HighlightCustom = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return m
}

func escapeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		out = append(out, escapeForRegex(item))
	}
	return out
}

// MatchesNSFW reports whether text trips the fixed NSFW/NSFL keyword check.
func MatchesNSFW(text string) bool {
	return nsfwPattern.MatchString(text)
}

// ExtractNicks pulls candidate nick tokens out of message text: runs of 3-20
// word characters, optionally @-prefixed, bounded by whitespace or trailing
// sentence punctuation. Order of first appearance, deduplicated.
func ExtractNicks(text string) []string {
	seen := make(map[string]struct{})
	var nicks []string
	for _, field := range strings.Fields(text) {
		token := strings.TrimPrefix(field, "@")
		token = strings.TrimRight(token, ".?!,")
		if !ValidNick(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		nicks = append(nicks, token)
	}
	return nicks
}

// EmoteSet answers "is this text a single emote token", including an emote
// carrying colon-joined generify suffixes (e.g. "OhKrappa:spin").
type EmoteSet struct {
	emotes   map[string]struct{}
	suffixed *regexp.Regexp
}

// NewEmoteSet compiles the emote list plus the suffix grammar.
func NewEmoteSet(emotes []string, suffixes []string) *EmoteSet {
	set := &EmoteSet{emotes: make(map[string]struct{}, len(emotes))}
	for _, e := range emotes {
		set.emotes[e] = struct{}{}
	}
	if len(emotes) > 0 && len(suffixes) > 0 {
		names := escapeAll(emotes)
		sufs := escapeAll(suffixes)
		// Longest-first keeps alternation greedy for overlapping names.
		sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
		set.suffixed = regexp.MustCompile(
			`^(?:` + strings.Join(names, "|") + `)(?::(?:` + strings.Join(sufs, "|") + `))+$`)
	}
	return set
}

// Names returns the emote tokens in sorted order.
func (s *EmoteSet) Names() []string {
	names := make([]string, 0, len(s.emotes))
	for name := range s.emotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether text is exactly a known emote token.
func (s *EmoteSet) Contains(text string) bool {
	_, ok := s.emotes[text]
	return ok
}

// Matches reports whether text is an emote token, with or without suffixes.
func (s *EmoteSet) Matches(text string) bool {
	if s.Contains(text) {
		return true
	}
	return s.suffixed != nil && s.suffixed.MatchString(text)
}
