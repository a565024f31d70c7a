package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"meetbot/internal/model"
)

// OverlapClusters groups meetings into maximal overlapping clusters via a
// sweep over starts: a running cluster accumulates meetings while a new
// meeting starts strictly before the cluster's max end. A meeting
// starting exactly at the max end (back-to-back) closes the cluster.
// Only clusters with at least two members are returned.
func OverlapClusters(meetings []model.Meeting) [][]model.Meeting {
	sorted := sortedByStart(meetings)

	var (
		clusters [][]model.Meeting
		current  []model.Meeting
		maxEnd   time.Time
	)
	for _, m := range sorted {
		if len(current) == 0 {
			current = []model.Meeting{m}
			maxEnd = m.End
			continue
		}
		if m.Start.Before(maxEnd) {
			current = append(current, m)
			if m.End.After(maxEnd) {
				maxEnd = m.End
			}
			continue
		}
		if len(current) > 1 {
			clusters = append(clusters, current)
		}
		current = []model.Meeting{m}
		maxEnd = m.End
	}
	if len(current) > 1 {
		clusters = append(clusters, current)
	}
	return clusters
}

// OverlapDuration returns the total time during which at least two
// meetings of the group run concurrently. Zero-or-negative-length
// meetings contribute nothing. Events are swept in (time, delta)
// ascending order, so at equal instants an end (-1) is processed before
// a start (+1) and back-to-back meetings never count as concurrent.
func OverlapDuration(group []model.Meeting) time.Duration {
	type event struct {
		at    time.Time
		delta int
	}
	var events []event
	for _, m := range group {
		if !m.End.After(m.Start) {
			continue
		}
		events = append(events, event{at: m.Start, delta: +1}, event{at: m.End, delta: -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		return events[i].delta < events[j].delta
	})

	var (
		active  int
		last    time.Time
		haveLst bool
		overlap time.Duration
	)
	for _, ev := range events {
		if haveLst && active >= 2 {
			overlap += ev.at.Sub(last)
		}
		active += ev.delta
		last = ev.at
		haveLst = true
	}
	if overlap < 0 {
		return 0
	}
	return overlap
}

// OverlapReport renders the collision summary used by /check and the
// daily digest.
func (r *Renderer) OverlapReport(meetings []model.Meeting) string {
	clusters := OverlapClusters(meetings)

	lines := []string{EscapeMarkdownV2(fmt.Sprintf("Total overlaps: %d", len(clusters)))}
	for i, group := range clusters {
		minutes := int(OverlapDuration(group).Minutes())
		lines = append(lines, fmt.Sprintf("*%s* %s",
			EscapeMarkdownV2(fmt.Sprintf("Overlap %d:", i+1)),
			EscapeMarkdownV2(fmt.Sprintf("%d min", minutes)),
		))
		for _, m := range group {
			subject := strings.TrimSpace(strings.ReplaceAll(m.Subject, "\n", " "))
			if subject == "" {
				subject = noSubject
			}
			lines = append(lines, EscapeMarkdownV2(fmt.Sprintf("%s, %s, %s",
				subject,
				FormatLocalTime(m.Start, r.Location),
				FormatDuration(m.Start, m.End),
			)))
		}
		if i < len(clusters)-1 {
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}
