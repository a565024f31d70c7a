// Package bot dispatches inbound chat commands. Only two commands
// exist: /today renders the agenda, /check the overlap report. Messages
// from chats or senders outside the allow-list are dropped silently.
package bot

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meetbot/internal/cache"
	"meetbot/internal/render"
	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

type Handler struct {
	adapter transport.Adapter
	cache   *cache.Cache
	in      <-chan transport.Message
	log     logx.Logger

	rend  atomic.Pointer[render.Renderer]
	clock func() time.Time

	mu    sync.RWMutex
	chats map[int64]struct{}
	users map[int64]struct{}
}

func New(adapter transport.Adapter, c *cache.Cache, in <-chan transport.Message, rend *render.Renderer, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{
		adapter: adapter,
		cache:   c,
		in:      in,
		log:     log,
		clock:   time.Now,
	}
	h.rend.Store(rend)
	return h
}

// SetRenderer swaps the renderer on config reload.
func (h *Handler) SetRenderer(r *render.Renderer) {
	if r != nil {
		h.rend.Store(r)
	}
}

// SetAccess replaces the allow-lists. An empty user list admits any
// sender in an allowed chat.
func (h *Handler) SetAccess(chatIDs, userIDs []int64) {
	chats := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		chats[id] = struct{}{}
	}
	var users map[int64]struct{}
	if len(userIDs) > 0 {
		users = make(map[int64]struct{}, len(userIDs))
		for _, id := range userIDs {
			users[id] = struct{}{}
		}
	}
	h.mu.Lock()
	h.chats = chats
	h.users = users
	h.mu.Unlock()
}

func (h *Handler) allowed(msg transport.Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.chats[msg.ChatID]; !ok {
		return false
	}
	if h.users == nil {
		return true
	}
	_, ok := h.users[msg.FromID]
	return ok
}

// Run drains the inbound channel until ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-h.in:
			if !ok {
				return nil
			}
			h.handle(ctx, msg)
		}
	}
}

func (h *Handler) handle(ctx context.Context, msg transport.Message) {
	cmd := command(msg.Text)
	if cmd == "" {
		return
	}
	if !h.allowed(msg) {
		h.log.Debug("command from unauthorized chat ignored",
			logx.Int64("chat", msg.ChatID), logx.Int64("from", msg.FromID))
		return
	}

	var text string
	switch cmd {
	case "/today":
		r := h.rend.Load()
		text = r.Agenda(h.cache.Meetings(), h.clock().In(r.Location))
	case "/check":
		text = h.rend.Load().OverlapReport(h.cache.Meetings())
	default:
		return
	}

	opt := &transport.SendOptions{MarkdownV2: true, DisablePreview: true}
	if err := h.adapter.SendText(ctx, transport.ChatTarget{ChatID: msg.ChatID}, text, opt); err != nil {
		h.log.Warn("command reply failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
	}
}

// command extracts the leading slash-command, lowercased, with any
// @botname suffix stripped. Non-commands return "".
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
