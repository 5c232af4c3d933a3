package chat

import (
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// timeLayout mirrors the reference implementation's
// dt.strftime("%Y-%m-%d %H:%M:%S") call directly, rather than translating it
// into a Go reference-time layout string by hand.
const timeLayout = "%Y-%m-%d %H:%M:%S"

// stamp renders t the way every timestamped chat line is prefixed.
func stamp(t time.Time) string {
	return strftime.Format(timeLayout, t)
}

// withTimestamp prefixes line with a bracketed local timestamp, used for
// every outgoing line except history replay, system blocks, and the handful
// of error replies the spec calls out as untimestamped.
func withTimestamp(now time.Time, line string) string {
	var b strings.Builder
	b.Grow(len(line) + 22)
	b.WriteByte('[')
	b.WriteString(stamp(now))
	b.WriteString("] ")
	b.WriteString(line)
	return b.String()
}

// bracket renders t the way an embedded absolute timestamp (a ban expiry, a
// spam window end) is shown inside a message body, as opposed to the
// timestamp prefixing the line itself.
func bracket(t time.Time) string {
	return "[" + stamp(t) + "]"
}

// systemBlock renders the USERS/HISTORY multi-line block. An empty items
// slice renders as the single line EMPTY, matching the original format.
func systemBlock(name string, items []string) string {
	var b strings.Builder
	b.WriteString("*** ")
	b.WriteString(name)
	b.WriteString(" ***\n")
	if len(items) == 0 {
		b.WriteString("EMPTY")
		return b.String()
	}
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(item)
	}
	return b.String()
}
