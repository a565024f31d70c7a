package cache

import (
	"testing"
	"time"

	"meetbot/internal/model"
)

func TestDueMeetingsSelectsWindowAtMostOnce(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lead := 15 * time.Minute

	c := New()
	c.Reconcile(model.Snapshot{Meetings: []model.Meeting{
		meeting("past", now.Add(-5*time.Minute), now.Add(25*time.Minute)),
		meeting("soon", now.Add(10*time.Minute), now.Add(40*time.Minute)),
		meeting("edge", now.Add(lead), now.Add(lead).Add(time.Hour)),
		meeting("far", now.Add(2*time.Hour), now.Add(3*time.Hour)),
	}})

	due := c.DueMeetings(now, lead)
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2 (soon + edge)", len(due))
	}
	for _, m := range due {
		if m.ID != "soon" && m.ID != "edge" {
			t.Fatalf("unexpected due meeting %q", m.ID)
		}
	}

	// Repeated scans return nothing even though no delivery ran in between.
	for i := 0; i < 3; i++ {
		if again := c.DueMeetings(now, lead); len(again) != 0 {
			t.Fatalf("scan %d re-selected %d meetings", i, len(again))
		}
	}
}

func TestUnseenMailMarkedOnSelection(t *testing.T) {
	t.Parallel()
	sent := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	c := New()
	c.Reconcile(model.Snapshot{Mails: []model.MailItem{
		{ID: "m1", Subject: "one", SentAt: sent},
		{ID: "m2", Subject: "two", SentAt: sent},
	}})

	first := c.UnseenMail()
	if len(first) != 2 {
		t.Fatalf("len(first) = %d, want 2", len(first))
	}
	if again := c.UnseenMail(); len(again) != 0 {
		t.Fatalf("second scan re-selected %d mails", len(again))
	}
	if !c.IsNotified(KindMail, "m1") || !c.IsNotified(KindMail, "m2") {
		t.Fatal("selected mail not marked notified")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c := New()
	c.Reconcile(model.Snapshot{Meetings: []model.Meeting{meeting("a", base, base.Add(time.Hour))}})

	snap := c.Snapshot()
	snap.Meetings[0].Subject = "mutated"

	if got := c.Meetings(); got[0].Subject == "mutated" {
		t.Fatal("snapshot aliases cache state")
	}
}
