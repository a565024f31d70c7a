package engine

import (
	"context"
	"time"

	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

func (s *Service) meetingLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.MeetingScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.notifyDueMeetings(ctx)
		}
	}
}

// notifyDueMeetings selects and consumes every meeting inside the alert
// horizon and sends one alert per meeting. Selection marks the meeting
// notified before any send happens, so a delivery failure never produces
// a duplicate alert later.
func (s *Service) notifyDueMeetings(ctx context.Context) {
	now := s.now()
	due := s.cache.DueMeetings(now, s.cfg.NotifyLead)
	if len(due) == 0 {
		return
	}
	r := s.renderer()
	for _, m := range due {
		s.notifyOne(ctx, "meeting", m.ID, func(ctx context.Context) {
			opt := &transport.SendOptions{MarkdownV2: true, DisablePreview: true}
			if m.JoinURL != "" {
				opt.Button = &transport.Button{Text: "Join", URL: m.JoinURL}
			}
			s.deliver.SendToChats(ctx, s.cfg.Chats, r.MeetingMessage(m, now), opt)
		})
	}
}

// notifyOne guards one build-and-send. A bug while rendering a single
// item skips that item instead of taking the loop down; the item stays
// consumed (mark-before-send), so it is not retried either.
func (s *Service) notifyOne(ctx context.Context, kind, id string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notification skipped",
				logx.String("kind", kind), logx.String("id", id), logx.Any("panic", r))
		}
	}()
	fn(ctx)
}

func (s *Service) mailLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.MailScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.notifyUnseenMail(ctx)
		}
	}
}

func (s *Service) notifyUnseenMail(ctx context.Context) {
	unseen := s.cache.UnseenMail()
	if len(unseen) == 0 {
		return
	}
	r := s.renderer()
	for _, m := range unseen {
		s.notifyOne(ctx, "mail", m.ID, func(ctx context.Context) {
			opt := &transport.SendOptions{MarkdownV2: true, DisablePreview: true}
			s.deliver.SendToChats(ctx, s.cfg.Chats, r.MailMessage(m), opt)
		})
	}
}
