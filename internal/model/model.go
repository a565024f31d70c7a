// Package model holds the immutable snapshot value types shared by the
// cache, the notification loops and the renderers.
package model

import "time"

// Meeting is one calendar entry from the directory source.
//
// ID is stable across fetches for the same entry. Start/End are UTC.
// End >= Start is not enforced here; duration math downstream clamps
// negative durations to zero.
type Meeting struct {
	ID        string
	Subject   string
	Start     time.Time
	End       time.Time
	Organizer string
	Location  string
	JoinURL   string
}

// Duration returns the meeting length, clamped to zero.
func (m Meeting) Duration() time.Duration {
	d := m.End.Sub(m.Start)
	if d < 0 {
		return 0
	}
	return d
}

// MailItem is one unread mailbox message from the directory source.
//
// Preview is plain text, already cleaned and bounded (see source/dav).
type MailItem struct {
	ID      string
	Subject string
	Sender  string
	SentAt  time.Time
	Preview string
}

// Snapshot is the full set of meetings and mail fetched in one update cycle.
type Snapshot struct {
	Meetings []Meeting
	Mails    []MailItem
}
