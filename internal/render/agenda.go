package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"meetbot/internal/model"
)

// workdayStartHour is the local hour the first free window of the day is
// measured from.
const workdayStartHour = 9

// Agenda builds the "today" listing: meetings sorted by start with a
// synthetic free-window line before the first meeting (when it starts
// after the workday start) and between non-abutting meetings.
// Back-to-back meetings (end == next start) produce no window.
func (r *Renderer) Agenda(meetings []model.Meeting, now time.Time) string {
	nowLocal := now.In(r.Location)
	lines := []string{fmt.Sprintf("*Today %s*", EscapeMarkdownV2(nowLocal.Format("02.01.2006")))}

	sorted := sortedByStart(meetings)
	if len(sorted) == 0 {
		lines = append(lines, EscapeMarkdownV2("No meetings today."))
		return strings.Join(lines, "\n")
	}

	firstLocal := sorted[0].Start.In(r.Location)
	workdayStart := time.Date(firstLocal.Year(), firstLocal.Month(), firstLocal.Day(),
		workdayStartHour, 0, 0, 0, r.Location)
	if workdayStart.Before(firstLocal) {
		lines = append(lines, r.windowLine(workdayStart, sorted[0].Start))
	}

	for i, m := range sorted {
		subject := strings.TrimSpace(strings.ReplaceAll(m.Subject, "\n", " "))
		if subject == "" {
			subject = noSubject
		}
		entry := fmt.Sprintf("‣%s, %s, %s",
			subject,
			FormatLocalTime(m.Start, r.Location),
			FormatDuration(m.Start, m.End),
		)
		lines = append(lines, EscapeMarkdownV2(entry))

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if m.End.Before(next.Start) {
				lines = append(lines, r.windowLine(m.End, next.Start))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) windowLine(from, to time.Time) string {
	rest := fmt.Sprintf(": starts %s, lasts %s", FormatLocalTime(from, r.Location), FormatDuration(from, to))
	return "> *Window*" + EscapeMarkdownV2(rest)
}

func sortedByStart(meetings []model.Meeting) []model.Meeting {
	out := append([]model.Meeting(nil), meetings...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
