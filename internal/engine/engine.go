// Package engine runs the polling loops: snapshot updates from the
// directory source, due-meeting and unseen-mail alerts, and the daily
// agenda digest. All loops share one cache and one delivery engine; the
// cache's atomic select-and-mark is the only coordination they need.
package engine

import (
	"sync/atomic"
	"time"

	"meetbot/internal/cache"
	"meetbot/internal/delivery"
	"meetbot/internal/render"
	"meetbot/internal/runtime/supervisor"
	"meetbot/internal/source"
	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

type Config struct {
	UpdateInterval      time.Duration // snapshot fetch period (default 1m)
	MeetingScanInterval time.Duration // due-meeting scan period (default 30s)
	MailScanInterval    time.Duration // unseen-mail scan period (default 30s)
	NotifyLead          time.Duration // alert horizon before meeting start (default 15m)

	DigestEnabled bool
	DigestHour    int // local trigger time, workdays only
	DigestMinute  int

	Chats    []transport.ChatTarget
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = time.Minute
	}
	if c.MeetingScanInterval <= 0 {
		c.MeetingScanInterval = 30 * time.Second
	}
	if c.MailScanInterval <= 0 {
		c.MailScanInterval = 30 * time.Second
	}
	if c.NotifyLead <= 0 {
		c.NotifyLead = 15 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

type Service struct {
	cfg     Config
	src     source.Source
	cache   *cache.Cache
	deliver *delivery.Engine
	log     logx.Logger

	rend  atomic.Pointer[render.Renderer]
	clock func() time.Time

	// lastDigest is the local date of the last sent digest. Only the
	// digest loop touches it.
	lastDigest string
}

func New(cfg Config, src source.Source, c *cache.Cache, deliver *delivery.Engine, rend *render.Renderer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:     cfg.withDefaults(),
		src:     src,
		cache:   c,
		deliver: deliver,
		log:     log,
		clock:   time.Now,
	}
	s.rend.Store(rend)
	return s
}

// SetRenderer swaps the renderer in-flight. Config reloads use this to
// apply new keywords or mention text without restarting the loops.
func (s *Service) SetRenderer(r *render.Renderer) {
	if r != nil {
		s.rend.Store(r)
	}
}

func (s *Service) renderer() *render.Renderer { return s.rend.Load() }

func (s *Service) now() time.Time { return s.clock() }

// Run registers the loops on the supervisor. The update loop returns an
// error on rejected credentials, which with cancel-on-error tears the
// whole process down; every other loop runs until ctx is done.
func (s *Service) Run(sup *supervisor.Supervisor) {
	sup.Go("update", s.updateLoop)
	sup.Go("meeting-notify", s.meetingLoop)
	sup.Go("mail-notify", s.mailLoop)
	if s.cfg.DigestEnabled {
		sup.Go("digest", s.digestLoop)
	}
}
