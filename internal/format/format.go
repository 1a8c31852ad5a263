// Package format turns raw domain values into display strings.
// Every function is pure and total.
package format

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// DefaultURLLength is the display budget used when callers have no opinion.
const DefaultURLLength = 50

const ellipsis = "..."

// DateLayout is the absolute date form used for timestamps older than a week.
const DateLayout = "1/2/2006"

// Interval renders a check interval given in seconds.
func Interval(seconds int) string {
	switch {
	case seconds < 3600:
		return fmt.Sprintf("%d min", roundDiv(seconds, 60))
	case seconds < 86400:
		return plural(roundDiv(seconds, 3600), "hour")
	default:
		return plural(roundDiv(seconds, 86400), "day")
	}
}

// RelativeTime renders t relative to now. Future instants read as "just now".
func RelativeTime(t, now time.Time) string {
	secs := int64(math.Floor(now.Sub(t).Seconds()))
	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	switch {
	case secs < 60:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return plural(int(hours), "hour") + " ago"
	case days < 7:
		return plural(int(days), "day") + " ago"
	}
	return t.In(now.Location()).Format(DateLayout)
}

// TruncateURL shortens raw to at most maxLen characters, keeping the hostname
// and eliding the path. Unparsable input is cut bluntly.
func TruncateURL(raw string, maxLen int) string {
	r := []rune(raw)
	if len(r) <= maxLen {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return cut(r, maxLen-len(ellipsis)) + ellipsis
	}

	host := []rune(u.Hostname())
	// room for the ellipsis plus a couple of path characters
	remaining := maxLen - len(host) - 5
	if remaining <= 0 {
		return cut(host, maxLen-len(ellipsis)) + ellipsis
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	path := []rune(p)
	if len(path) <= remaining {
		return string(host) + string(path)
	}
	return string(host) + string(path[:remaining]) + ellipsis
}

func cut(r []rune, n int) string {
	if n <= 0 {
		return ""
	}
	if n > len(r) {
		n = len(r)
	}
	return string(r[:n])
}

func roundDiv(n, d int) int {
	return int(math.Round(float64(n) / float64(d)))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
