package chat

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	voteStartPattern = regexp.MustCompile(`(?i)^/vote\s+(.+)$`)
	voteStopPattern  = regexp.MustCompile(`(?i)^/votestop\b`)
	voteCastPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// Vote is a single concurrent poll. A nil *Vote is the Idle state; a
// non-nil one is Open. One recorded choice per normalized username; later
// casts overwrite earlier ones.
type Vote struct {
	Initiator string
	Question  string
	Options   []string
	StartedAt time.Time

	casts map[string]int // normalized nick -> 1-based option
}

// IsVoteStartFmt reports whether raw message text looks like a vote start.
func IsVoteStartFmt(text string) bool {
	m := voteStartPattern.FindStringSubmatch(text)
	return m != nil && strings.Contains(m[1], "?")
}

// IsVoteStopFmt reports whether raw message text is a vote stop.
func IsVoteStopFmt(text string) bool {
	return voteStopPattern.MatchString(text)
}

// IsVoteCastFmt reports whether slash-stripped text is a bare cast token.
func IsVoteCastFmt(text string) bool {
	return voteCastPattern.MatchString(strings.TrimSpace(text))
}

// ParseVoteStart splits vote-start text into question and options. Options
// follow the question mark joined by " or "; absent options default to
// yes/no. Returns ok=false when the text is not a vote start.
func ParseVoteStart(text string) (question string, options []string, ok bool) {
	m := voteStartPattern.FindStringSubmatch(text)
	if m == nil {
		return "", nil, false
	}
	body := strings.TrimSpace(m[1])
	q := strings.Index(body, "?")
	if q < 0 {
		return "", nil, false
	}
	question = strings.TrimSpace(body[:q+1])
	rest := strings.TrimSpace(body[q+1:])
	if rest != "" {
		for _, opt := range strings.Split(rest, " or ") {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
	}
	if len(options) < 2 {
		options = []string{"yes", "no"}
	}
	return question, options, true
}

// NewVote opens a poll.
func NewVote(initiator, question string, options []string, startedAt time.Time) *Vote {
	return &Vote{
		Initiator: initiator,
		Question:  question,
		Options:   options,
		StartedAt: startedAt,
		casts:     make(map[string]int),
	}
}

// Cast records option for the named voter, overwriting any earlier cast.
// Option is 1-based; out-of-range casts are rejected.
func (v *Vote) Cast(nick string, option int) bool {
	if option < 1 || option > len(v.Options) {
		return false
	}
	v.casts[Normalize(nick)] = option
	return true
}

// CastText records a cast given the raw token text.
func (v *Vote) CastText(nick, text string) bool {
	option, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	return v.Cast(nick, option)
}

// HasVoted reports whether the named voter has a recorded choice.
func (v *Vote) HasVoted(nick string) bool {
	_, ok := v.casts[Normalize(nick)]
	return ok
}

// Choice returns the voter's recorded 1-based option, or 0.
func (v *Vote) Choice(nick string) int {
	return v.casts[Normalize(nick)]
}

// Totals returns the tally per option, index-aligned with Options.
func (v *Vote) Totals() []int {
	totals := make([]int, len(v.Options))
	for _, option := range v.casts {
		totals[option-1]++
	}
	return totals
}
