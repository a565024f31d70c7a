package engine

import (
	"context"
	"fmt"
	"time"

	"meetbot/internal/source"
	"meetbot/pkg/logx"
)

func (s *Service) updateLoop(ctx context.Context) error {
	if err := s.updateCycle(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.updateCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// updateCycle fetches one snapshot and reconciles it into the cache. A
// transient fetch failure keeps the previous state and waits for the
// next tick; rejected credentials terminate the loop.
func (s *Service) updateCycle(ctx context.Context) error {
	windowStart, windowEnd := s.fetchWindow(s.now())
	snap, err := s.src.FetchSnapshot(ctx, windowStart, windowEnd)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if source.KindFor(err) == source.KindAuth {
			return fmt.Errorf("directory credentials rejected: %w", err)
		}
		s.log.Warn("snapshot fetch failed, keeping previous state", logx.Err(err))
		return nil
	}

	stats := s.cache.Reconcile(snap)
	s.log.Debug("snapshot reconciled",
		logx.Int("meetings", stats.Meetings),
		logx.Int("mails", stats.Mails),
		logx.Int("new_mail", stats.NewMail),
		logx.Int("rearmed", stats.Rearmed),
		logx.Int("pruned", stats.Pruned),
	)
	return nil
}

// fetchWindow spans the current local day, midnight to midnight, as UTC
// instants for the source.
func (s *Service) fetchWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	return dayStart.UTC(), dayStart.Add(24 * time.Hour).UTC()
}
