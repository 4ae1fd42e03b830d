package chat

import (
	"regexp"
	"strconv"
	"time"
)

var intervalPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d*)?)([a-z]+)?`)

var intervalUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,

	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,

	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,

	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseInterval parses a unit-suffixed interval ("10m", "1h30m", "90") into
// a duration. Units are case-insensitive; a missing or unknown unit means
// seconds. Multiple number/unit groups sum. Unparseable input yields zero,
// which moderation commands treat as "no duration".
func ParseInterval(s string) time.Duration {
	var total time.Duration
	for _, match := range intervalPattern.FindAllStringSubmatch(s, -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		unit := time.Second
		if match[2] != "" {
			if u, ok := intervalUnits[normalizeUnit(match[2])]; ok {
				unit = u
			}
		}
		total += time.Duration(value * float64(unit))
	}
	return total
}

func normalizeUnit(u string) string {
	b := make([]byte, len(u))
	for i := 0; i < len(u); i++ {
		c := u[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

var permanentPattern = regexp.MustCompile(`(?i)^perm`)

// IsPermanent reports whether a duration argument asks for a permanent ban.
func IsPermanent(arg string) bool {
	return permanentPattern.MatchString(arg)
}

var timestampFormatPattern = regexp.MustCompile(`(?i)^[a-z0-9 :.,\-\\*]+$`)

// ValidTimestampFormat reports whether a /timestampformat argument is within
// the allowed grammar.
func ValidTimestampFormat(format string) bool {
	return format != "" && timestampFormatPattern.MatchString(format)
}
