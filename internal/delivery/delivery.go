// Package delivery fans rendered messages out to the configured chats.
//
// Two policies share one engine and one rate limiter:
//
//   - SendToChats: best-effort, a few exponentially backed-off attempts
//     per chat. Used for near-real-time alerts where a stale retry is
//     worth less than moving on.
//   - SendToChatsUntilSuccess: a large attempt cap with a fixed delay.
//     Used for the daily digest, where delivery matters more than
//     timeliness.
//
// Both iterate destinations sequentially and independently: exhausting
// one chat never blocks or skips the rest.
package delivery

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

type Config struct {
	// Best-effort policy.
	RetryMax  int           // attempts per chat (default 3)
	RetryBase time.Duration // first backoff delay, doubled each retry (default 1s)

	// Guaranteed policy.
	AttemptCap    int           // attempts per chat (default 10)
	RetryInterval time.Duration // fixed delay between attempts (default 60s)

	RatePerSec int // shared send rate limit (default 3)
}

type Engine struct {
	cfg     Config
	adapter transport.Adapter
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Engine {
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.AttemptCap <= 0 {
		cfg.AttemptCap = 10
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	return &Engine{cfg: cfg, adapter: adapter, log: log, limiter: limiter}
}

// SendToChats delivers text to every target with the best-effort policy:
// up to RetryMax attempts with exponential backoff, retrying only
// transient transport errors.
func (e *Engine) SendToChats(ctx context.Context, targets []transport.ChatTarget, text string, opt *transport.SendOptions) {
	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		e.sendBestEffort(ctx, target, text, opt)
	}
}

func (e *Engine) sendBestEffort(ctx context.Context, target transport.ChatTarget, text string, opt *transport.SendOptions) {
	delay := e.cfg.RetryBase
	for attempt := 1; attempt <= e.cfg.RetryMax; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		err := e.adapter.SendText(ctx, target, text, opt)
		if err == nil {
			return
		}
		if !e.adapter.Retryable(err) {
			e.log.Error("send failed", logx.Int64("chat", target.ChatID), logx.Err(err))
			return
		}
		if attempt == e.cfg.RetryMax {
			e.log.Warn("send timed out, giving up",
				logx.Int64("chat", target.ChatID), logx.Int("attempts", attempt), logx.Err(err))
			return
		}
		if !sleepCtx(ctx, delay) {
			return
		}
		delay *= 2
	}
}

// SendToChatsUntilSuccess delivers text to every target with the
// guaranteed policy: up to AttemptCap attempts with a fixed delay,
// retrying on any error.
func (e *Engine) SendToChatsUntilSuccess(ctx context.Context, targets []transport.ChatTarget, text string, opt *transport.SendOptions) {
	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		e.sendUntilSuccess(ctx, target, text, opt)
	}
}

func (e *Engine) sendUntilSuccess(ctx context.Context, target transport.ChatTarget, text string, opt *transport.SendOptions) {
	for attempt := 1; attempt <= e.cfg.AttemptCap; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		err := e.adapter.SendText(ctx, target, text, opt)
		if err == nil {
			return
		}
		if attempt == e.cfg.AttemptCap {
			e.log.Warn("delivery attempt cap reached",
				logx.Int64("chat", target.ChatID), logx.Int("attempts", attempt), logx.Err(err))
			return
		}
		e.log.Warn("delivery failed, will retry",
			logx.Int64("chat", target.ChatID), logx.Int("attempt", attempt),
			logx.Duration("retry_in", e.cfg.RetryInterval), logx.Err(err))
		if !sleepCtx(ctx, e.cfg.RetryInterval) {
			return
		}
	}
}

// sleepCtx waits d, returning false if ctx finished first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
