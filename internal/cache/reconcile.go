package cache

import "meetbot/internal/model"

// ReconcileStats summarizes one merge for the update loop's log line.
type ReconcileStats struct {
	Meetings int
	Mails    int
	NewMail  int // mail ids not present before this merge
	Rearmed  int // notified meetings re-armed by a later reschedule
	Pruned   int // notified ids dropped because the meeting disappeared
}

// Reconcile merges a freshly fetched snapshot into the cache.
//
// Rules, in order:
//  1. A notified meeting whose start moved strictly later is re-armed
//     (the alert it got referenced a now-wrong time). A move to an
//     earlier time keeps the flag: the early warning stays valid.
//  2. Notified ids for meetings absent from the snapshot are dropped, so
//     the notified-set never outgrows the fetched window and a meeting
//     that reappears later is eligible again.
//  3. Both maps are replaced wholesale.
//
// The whole merge is one critical section; the fetch producing snap must
// happen before the call, outside the lock.
func (c *Cache) Reconcile(snap model.Snapshot) ReconcileStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st ReconcileStats

	for _, m := range snap.Meetings {
		prev, existed := c.meetings[m.ID]
		if !existed {
			continue
		}
		if _, notified := c.notifiedMeetings[m.ID]; !notified {
			continue
		}
		if m.Start.After(prev.Start) {
			delete(c.notifiedMeetings, m.ID)
			st.Rearmed++
		}
	}

	current := make(map[string]struct{}, len(snap.Meetings))
	for _, m := range snap.Meetings {
		current[m.ID] = struct{}{}
	}
	for id := range c.notifiedMeetings {
		if _, ok := current[id]; !ok {
			delete(c.notifiedMeetings, id)
			st.Pruned++
		}
	}

	meetings := make(map[string]model.Meeting, len(snap.Meetings))
	for _, m := range snap.Meetings {
		meetings[m.ID] = m
	}
	mail := make(map[string]model.MailItem, len(snap.Mails))
	for _, m := range snap.Mails {
		if _, existed := c.mail[m.ID]; !existed {
			st.NewMail++
		}
		mail[m.ID] = m
	}
	c.meetings = meetings
	c.mail = mail

	st.Meetings = len(meetings)
	st.Mails = len(mail)
	return st
}
