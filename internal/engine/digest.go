package engine

import (
	"context"
	"time"

	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

// The digest trigger is checked often so a configured time is hit within
// half a minute regardless of the other intervals.
const digestPollInterval = 30 * time.Second

const dateLayout = "2006-01-02"

func (s *Service) digestLoop(ctx context.Context) error {
	ticker := time.NewTicker(digestPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.digestTick(ctx)
		}
	}
}

// digestTick sends the daily agenda once the local trigger time passes
// on a workday. The day is consumed before sending, so however many
// ticks follow the trigger, the build-and-send sequence runs once.
func (s *Service) digestTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("digest skipped", logx.Any("panic", r))
		}
	}()

	now := s.now().In(s.cfg.Location)
	if !digestDue(now, s.lastDigest, s.cfg.DigestHour, s.cfg.DigestMinute) {
		return
	}
	s.lastDigest = now.Format(dateLayout)

	meetings := s.cache.Meetings()
	r := s.renderer()

	// Agenda and overlap report go out as separate messages so one
	// report's failure (or the message size cap) never forfeits the other.
	s.log.Info("sending daily digest", logx.Int("meetings", len(meetings)))
	opt := &transport.SendOptions{MarkdownV2: true, DisablePreview: true}
	s.deliver.SendToChatsUntilSuccess(ctx, s.cfg.Chats, r.Agenda(meetings, now), opt)
	s.deliver.SendToChatsUntilSuccess(ctx, s.cfg.Chats, r.OverlapReport(meetings), opt)
}

// digestDue reports whether the digest should fire at now: a workday,
// at or past the trigger time, and not already sent that day. now must
// already be in the digest's time zone.
func digestDue(now time.Time, lastSent string, hour, minute int) bool {
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if now.Format(dateLayout) == lastSent {
		return false
	}
	trigger := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(trigger)
}
