// Package render builds the MarkdownV2 texts delivered to chats: the
// per-meeting and per-mail alerts, the daily agenda with free windows,
// and the overlap report. Everything here is pure text assembly; escaping
// is applied exactly once, at render time, never to already-escaped text.
package render

import (
	"fmt"
	"strings"
	"time"
)

// mdV2Reserved is Telegram's MarkdownV2 reserved set. Every occurrence is
// escaped with a single backslash.
const mdV2Reserved = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes every reserved MarkdownV2 character once.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if r < 128 && strings.ContainsRune(mdV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// QuoteBlock renders text as a MarkdownV2 block quote, escaping each line.
// Empty input renders as the empty string.
func QuoteBlock(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	quoted := make([]string, 0, len(lines))
	for _, line := range lines {
		quoted = append(quoted, "> "+EscapeMarkdownV2(line))
	}
	return strings.Join(quoted, "\n")
}

// FormatDuration renders the span between start and end as H:MM,
// clamping negative spans to 0:00.
func FormatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	total := int(d.Minutes())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatLocalTime renders a UTC instant as local HH:MM.
func FormatLocalTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// FormatLocalDateTime renders a UTC instant as a local date + time.
func FormatLocalDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}
