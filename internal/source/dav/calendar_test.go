package dav

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"meetbot/pkg/logx"
)

func buildEvent(t *testing.T, uid, summary, location string, start, end time.Time) *ical.Event {
	t.Helper()
	ev := ical.NewEvent()
	if uid != "" {
		ev.Props.SetText(ical.PropUID, uid)
	}
	ev.Props.SetText(ical.PropSummary, summary)
	if location != "" {
		ev.Props.SetText(ical.PropLocation, location)
	}
	ev.Props.SetDateTime(ical.PropDateTimeStamp, start)
	ev.Props.SetDateTime(ical.PropDateTimeStart, start)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, end)
	return ev
}

func TestMeetingFromEvent(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	ev := buildEvent(t, "uid-1", "Planning", "Room 4; https://meet.example.com/j/42", start, end)
	m, ok := meetingFromEvent(*ev, logx.Nop())
	if !ok {
		t.Fatal("event rejected")
	}
	if m.ID != "uid-1" || m.Subject != "Planning" {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if !m.Start.Equal(start) || !m.End.Equal(end) {
		t.Fatalf("instants not preserved: %+v", m)
	}
	if m.JoinURL != "https://meet.example.com/j/42" {
		t.Fatalf("join url = %q", m.JoinURL)
	}
}

func TestMeetingFromEventFallbackID(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	m1, ok := meetingFromEvent(*buildEvent(t, "", "Standup", "", start, end), logx.Nop())
	if !ok {
		t.Fatal("event rejected")
	}
	m2, _ := meetingFromEvent(*buildEvent(t, "", "Standup", "", start, end), logx.Nop())
	if m1.ID == "" || m1.ID != m2.ID {
		t.Fatalf("fallback id not deterministic: %q vs %q", m1.ID, m2.ID)
	}
}

func TestMeetingFromEventRejectsMissingInstants(t *testing.T) {
	t.Parallel()
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, "uid-2")
	ev.Props.SetText(ical.PropSummary, "broken")
	if _, ok := meetingFromEvent(*ev, logx.Nop()); ok {
		t.Fatal("event without DTSTART/DTEND accepted")
	}
}
