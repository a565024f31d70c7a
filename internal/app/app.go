// Package app wires configuration, logging, the directory source, the
// polling engine and the command dispatcher into one lifecycle.
package app

import (
	"context"
	"time"

	"meetbot/internal/bot"
	"meetbot/internal/cache"
	"meetbot/internal/config"
	"meetbot/internal/delivery"
	"meetbot/internal/engine"
	"meetbot/internal/render"
	"meetbot/internal/runtime/supervisor"
	"meetbot/internal/source/dav"
	"meetbot/internal/transport"
	"meetbot/internal/transport/telegram"
	"meetbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter
	src     *dav.Client
	cache   *cache.Cache
	deliver *delivery.Engine
	engine  *engine.Service
	cmds    *bot.Handler

	updates chan transport.Message
	fatal   chan error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	src := dav.New(dav.Config{
		CalDAV: dav.CalDAVConfig{
			Endpoint: cfg.Source.CalDAV.Endpoint,
			Username: cfg.Source.CalDAV.Username,
			Password: cfg.Source.CalDAV.Password,
			Calendar: cfg.Source.CalDAV.Calendar,
		},
		IMAP: dav.IMAPConfig{
			Addr:     cfg.Source.IMAP.Addr,
			Username: cfg.Source.IMAP.Username,
			Password: cfg.Source.IMAP.Password,
			Mailbox:  cfg.Source.IMAP.Mailbox,
		},
		InsecureSkipVerify: cfg.Source.InsecureSkipVerify,
	}, logSvc.Logger().With(logx.String("comp", "source")))

	loc, err := cfg.Location()
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	rend := render.New(loc, cfg.Mail.Keywords, cfg.Mail.Mention)

	c := cache.New()
	retryBase, _ := config.ParseDurationField("delivery.retry_base", cfg.Delivery.RetryBase)
	retryInterval, _ := config.ParseDurationField("delivery.retry_interval", cfg.Delivery.RetryInterval)
	deliver := delivery.New(delivery.Config{
		RetryMax:      cfg.Delivery.RetryMax,
		RetryBase:     retryBase,
		AttemptCap:    cfg.Delivery.AttemptCap,
		RetryInterval: retryInterval,
		RatePerSec:    cfg.Delivery.RatePerSec,
	}, adapter, logSvc.Logger().With(logx.String("comp", "delivery")))

	engCfg, err := mapEngineConfig(cfg, loc)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	eng := engine.New(engCfg, src, c, deliver, rend, logSvc.Logger().With(logx.String("comp", "engine")))

	updates := make(chan transport.Message, 64)
	cmds := bot.New(adapter, c, updates, rend, logSvc.Logger().With(logx.String("comp", "bot")))
	cmds.SetAccess(cfg.Telegram.ChatIDs, cfg.Telegram.AllowedUserIDs)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: adapter,
		src:     src,
		cache:   c,
		deliver: deliver,
		engine:  eng,
		cmds:    cmds,
		updates: updates,
		fatal:   make(chan error, 1),
	}, nil
}

func mapEngineConfig(cfg *config.Config, loc *time.Location) (engine.Config, error) {
	updateInterval, err := config.ParseDurationOrDefault("source.poll_interval", cfg.Source.PollInterval, time.Minute)
	if err != nil {
		return engine.Config{}, err
	}
	lead, err := config.ParseDurationOrDefault("notify.lead", cfg.Notify.Lead, 15*time.Minute)
	if err != nil {
		return engine.Config{}, err
	}
	meetingScan, err := config.ParseDurationOrDefault("notify.meeting_scan_interval", cfg.Notify.MeetingScanInterval, 30*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	mailScan, err := config.ParseDurationOrDefault("notify.mail_scan_interval", cfg.Notify.MailScanInterval, 30*time.Second)
	if err != nil {
		return engine.Config{}, err
	}

	hour, minute := cfg.DigestAt()
	chats := make([]transport.ChatTarget, 0, len(cfg.Telegram.ChatIDs))
	for _, id := range cfg.Telegram.ChatIDs {
		chats = append(chats, transport.ChatTarget{ChatID: id})
	}
	return engine.Config{
		UpdateInterval:      updateInterval,
		MeetingScanInterval: meetingScan,
		MailScanInterval:    mailScan,
		NotifyLead:          lead,
		DigestEnabled:       cfg.Digest.Enabled,
		DigestHour:          hour,
		DigestMinute:        minute,
		Chats:               chats,
		Location:            loc,
	}, nil
}

// Start launches the adapter and every loop under one cancel-on-error
// supervisor. An auth failure from the directory source surfaces on
// Fatal().
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return err
	}

	a.engine.Run(a.sup)
	a.sup.Go("commands", a.cmds.Run)
	a.sup.Go("config-watch", a.cfgm.Watch)

	reloads := a.cfgm.Subscribe(1)
	a.sup.Go("config-apply", func(ctx context.Context) error {
		defer a.cfgm.Unsubscribe(reloads)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cfg := <-reloads:
				if cfg != nil {
					a.applyConfig(cfg)
				}
			}
		}
	})

	go func() {
		_ = a.sup.Wait(context.Background())
		if err := a.sup.Err(); err != nil {
			a.fatal <- err
		}
	}()

	a.log.Info("started")
	return nil
}

// Fatal delivers the first unrecoverable error (rejected directory
// credentials, a panicked loop).
func (a *App) Fatal() <-chan error { return a.fatal }

// applyConfig handles a live reload. Rendering settings, the command
// allow-lists and the log level apply immediately; endpoint or token
// changes need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	loc, err := cfg.Location()
	if err != nil {
		a.log.Warn("reload: bad timezone, keeping previous", logx.Err(err))
		loc = nil
	}
	if loc != nil {
		rend := render.New(loc, cfg.Mail.Keywords, cfg.Mail.Mention)
		a.engine.SetRenderer(rend)
		a.cmds.SetRenderer(rend)
	}
	a.cmds.SetAccess(cfg.Telegram.ChatIDs, cfg.Telegram.AllowedUserIDs)

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("config applied; endpoint and token changes take effect on restart")
}

// Stop cancels the supervisor and waits for the loops and the adapter
// to drain, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}
	err := a.adapter.Stop(ctx)
	if cerr := a.src.Close(); err == nil {
		err = cerr
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
