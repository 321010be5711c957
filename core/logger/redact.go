package logger

import (
	"regexp"
	"strings"
	"time"
)

// botTokenRe matches Telegram bot tokens as they appear in API URLs
// and error strings returned by the transport.
var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// RedactToken masks any bot token embedded in s.
func RedactToken(s string) string {
	if s == "" {
		return s
	}
	return botTokenRe.ReplaceAllString(s, "bot<redacted>")
}

// defaultSanitizeLimit caps free-form values copied into log lines.
const defaultSanitizeLimit = 512

// Sanitize flattens a free-form string for logging with the default cap.
func Sanitize(s string) string {
	return SanitizeLimit(s, defaultSanitizeLimit)
}

// SanitizeLimit flattens a free-form string for logging: tokens are
// redacted, control characters become spaces and the result is
// trimmed to at most limit bytes.
func SanitizeLimit(s string, limit int) string {
	s = RedactToken(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if limit > 0 && len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// Took reports the elapsed time since start, rounded for log output.
func Took(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}

// RoundMS converts a duration to whole milliseconds for *_ms keys.
func RoundMS(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
