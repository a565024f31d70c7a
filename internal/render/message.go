package render

import (
	"fmt"
	"strings"
	"time"

	"meetbot/internal/model"
)

// Renderer carries the settings message building depends on. It is an
// immutable value; config reloads swap in a fresh one.
type Renderer struct {
	Location *time.Location
	Keywords []string
	Mention  string
}

func New(loc *time.Location, keywords []string, mention string) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{Location: loc, Keywords: keywords, Mention: strings.TrimSpace(mention)}
}

const noSubject = "(no subject)"

// MeetingMessage builds the upcoming-meeting alert.
func (r *Renderer) MeetingMessage(m model.Meeting, now time.Time) string {
	minutesTo := int(m.Start.Sub(now).Minutes())
	if minutesTo < 0 {
		minutesTo = 0
	}

	subject := m.Subject
	if strings.TrimSpace(subject) == "" {
		subject = noSubject
	}
	organizer := m.Organizer
	if organizer == "" {
		organizer = "-"
	}
	start := m.Start.In(r.Location).Format("02.01.2006 15:04")
	durationMin := int(m.Duration().Minutes())

	lines := []string{
		fmt.Sprintf("*%s*", EscapeMarkdownV2(fmt.Sprintf("🔔 In %d min: %s", minutesTo, subject))),
		fmt.Sprintf("Organizer: *%s*", EscapeMarkdownV2(organizer)),
		"Starts: " + EscapeMarkdownV2(start),
		"Duration: " + EscapeMarkdownV2(fmt.Sprintf("%d min", durationMin)),
	}
	if m.JoinURL != "" {
		lines = append(lines, "Link: "+EscapeMarkdownV2(m.JoinURL))
	} else if loc := strings.TrimSpace(m.Location); loc != "" {
		lines = append(lines, "Place: "+EscapeMarkdownV2(loc))
	}
	return strings.Join(lines, "\n")
}

// MailMessage builds the new-mail alert. When subject, sender or preview
// contain one of the configured keywords, the message is flagged and the
// mention text appended.
func (r *Renderer) MailMessage(m model.MailItem) string {
	subject := m.Subject
	if subject == "" {
		subject = noSubject
	}
	sender := m.Sender
	if sender == "" {
		sender = "-"
	}
	sent := FormatLocalDateTime(m.SentAt, r.Location)

	flagged := ContainsKeyword(subject+"\n"+sender+"\n"+m.Preview, r.Keywords)

	var b strings.Builder
	b.WriteString("*" + EscapeMarkdownV2(subject) + "*\n")
	b.WriteString("From: " + EscapeMarkdownV2(sender) + "\n")
	b.WriteString("Sent: " + EscapeMarkdownV2(sent))
	if q := QuoteBlock(m.Preview); q != "" {
		b.WriteString("\n\n" + q)
	}

	msg := b.String()
	if flagged {
		msg = "‼️" + msg
		if r.Mention != "" {
			msg += "\n" + EscapeMarkdownV2(r.Mention)
		}
	}
	return msg
}

// ContainsKeyword reports whether text contains any keyword,
// case-insensitively. An empty keyword list matches nothing.
func ContainsKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
