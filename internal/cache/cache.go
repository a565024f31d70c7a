// Package cache is the process-wide store of the latest fetched calendar
// and mailbox state plus the per-item notification flags.
//
// One mutex guards all four collections. Every read-modify-write sequence
// (reconcile, due-scan + mark) runs as a single critical section so two
// loops can never double-select the same item or lose a mark. Nothing in
// this package blocks on I/O while holding the lock.
package cache

import (
	"sync"
	"time"

	"meetbot/internal/model"
)

// Kind selects one of the two notified-sets.
type Kind string

const (
	KindMeeting Kind = "meeting"
	KindMail    Kind = "mail"
)

type Cache struct {
	mu sync.Mutex

	meetings map[string]model.Meeting
	mail     map[string]model.MailItem

	notifiedMeetings map[string]struct{}
	notifiedMail     map[string]struct{}
}

func New() *Cache {
	return &Cache{
		meetings:         map[string]model.Meeting{},
		mail:             map[string]model.MailItem{},
		notifiedMeetings: map[string]struct{}{},
		notifiedMail:     map[string]struct{}{},
	}
}

// Snapshot returns a consistent point-in-time copy of the meetings and
// mail collections. The returned slices are owned by the caller.
func (c *Cache) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := model.Snapshot{
		Meetings: make([]model.Meeting, 0, len(c.meetings)),
		Mails:    make([]model.MailItem, 0, len(c.mail)),
	}
	for _, m := range c.meetings {
		snap.Meetings = append(snap.Meetings, m)
	}
	for _, m := range c.mail {
		snap.Mails = append(snap.Mails, m)
	}
	return snap
}

// Meetings returns a copy of the current meetings collection.
func (c *Cache) Meetings() []model.Meeting {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Meeting, 0, len(c.meetings))
	for _, m := range c.meetings {
		out = append(out, m)
	}
	return out
}

// IsNotified reports whether an alert was already issued for the item.
func (c *Cache) IsNotified(kind Kind, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set(kind)[id]
	return ok
}

// MarkNotified records that an alert was issued for the item.
func (c *Cache) MarkNotified(kind Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(kind)[id] = struct{}{}
}

func (c *Cache) set(kind Kind) map[string]struct{} {
	if kind == KindMail {
		return c.notifiedMail
	}
	return c.notifiedMeetings
}

// DueMeetings selects every meeting with now <= start <= now+lead that has
// not been notified yet, and marks all of them notified in the same
// critical section. Delivery outcome never re-queues a meeting: a failed
// send stays consumed (mark-before-send).
func (c *Cache) DueMeetings(now time.Time, lead time.Duration) []model.Meeting {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []model.Meeting
	horizon := now.Add(lead)
	for id, m := range c.meetings {
		if _, ok := c.notifiedMeetings[id]; ok {
			continue
		}
		if m.Start.Before(now) || m.Start.After(horizon) {
			continue
		}
		due = append(due, m)
		c.notifiedMeetings[id] = struct{}{}
	}
	return due
}

// UnseenMail selects every mail item not yet notified and marks all of
// them notified atomically (same mark-before-send policy as meetings).
func (c *Cache) UnseenMail() []model.MailItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	var unseen []model.MailItem
	for id, m := range c.mail {
		if _, ok := c.notifiedMail[id]; ok {
			continue
		}
		unseen = append(unseen, m)
		c.notifiedMail[id] = struct{}{}
	}
	return unseen
}
