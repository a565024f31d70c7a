package dav

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"meetbot/internal/model"
	"meetbot/pkg/logx"
)

// fallbackIDSpace namespaces deterministic ids for events without a UID,
// so the same event maps to the same id on every fetch.
var fallbackIDSpace = uuid.MustParse("9fbc2f8e-8181-4b0b-9c0c-5f8a4f2cbe11")

func (c *Client) fetchMeetings(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Meeting, error) {
	client, path, err := c.caldavSession(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: windowStart,
				End:   windowEnd,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, path, query)
	if err != nil {
		// Drop the cached session so the next cycle re-discovers it.
		c.cal = nil
		c.calendarPath = ""
		return nil, err
	}

	var meetings []model.Meeting
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			m, ok := meetingFromEvent(ev, c.log)
			if !ok {
				continue
			}
			meetings = append(meetings, m)
		}
	}
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].Start.Before(meetings[j].Start) })
	return meetings, nil
}

// meetingFromEvent maps one VEVENT to the snapshot model. Events without
// both instants are skipped; events without a UID get a deterministic
// fallback id derived from start + summary.
func meetingFromEvent(ev ical.Event, log logx.Logger) (model.Meeting, bool) {
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil || start.IsZero() {
		return model.Meeting{}, false
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil || end.IsZero() {
		return model.Meeting{}, false
	}

	subject, _ := ev.Props.Text(ical.PropSummary)
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	location, _ := ev.Props.Text(ical.PropLocation)

	id, _ := ev.Props.Text(ical.PropUID)
	if id == "" {
		id = uuid.NewSHA1(fallbackIDSpace, []byte(start.Format(time.RFC3339)+"|"+subject)).String()
		log.Debug("event without UID, derived id", logx.String("id", id), logx.String("subject", subject))
	}

	var organizer string
	if prop := ev.Props.Get(ical.PropOrganizer); prop != nil {
		organizer = prop.Params.Get("CN")
		if organizer == "" {
			organizer = strings.TrimPrefix(prop.Value, "mailto:")
		}
	}

	joinURL, _ := ev.Props.Text(ical.PropURL)
	if joinURL == "" {
		joinURL = extractURL(location)
	}
	if joinURL == "" {
		if desc, _ := ev.Props.Text(ical.PropDescription); desc != "" {
			joinURL = extractURL(desc)
		}
	}

	return model.Meeting{
		ID:        id,
		Subject:   subject,
		Start:     start.UTC(),
		End:       end.UTC(),
		Organizer: organizer,
		Location:  location,
		JoinURL:   joinURL,
	}, true
}
