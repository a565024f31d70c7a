package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"meetbot/internal/cache"
	"meetbot/internal/model"
	"meetbot/internal/render"
	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

type replyAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (a *replyAdapter) Start(ctx context.Context, out chan<- transport.Message) error { return nil }
func (a *replyAdapter) Stop(ctx context.Context) error                                { return nil }
func (a *replyAdapter) Retryable(err error) bool                                      { return false }

func (a *replyAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return nil
}

func (a *replyAdapter) replies() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

func newTestHandler(t *testing.T) (*Handler, *replyAdapter, *cache.Cache) {
	t.Helper()
	ad := &replyAdapter{}
	c := cache.New()
	h := New(ad, c, nil, render.New(time.UTC, nil, ""), logx.Nop())
	h.SetAccess([]int64{100}, nil)
	h.clock = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return h, ad, c
}

func TestCommandParsing(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"/today", "/today"},
		{"/Today", "/today"},
		{"/today@meetbot extra words", "/today"},
		{"  /check  ", "/check"},
		{"hello", ""},
		{"", ""},
		{"today", ""},
	}
	for _, tc := range cases {
		if got := command(tc.in); got != tc.want {
			t.Errorf("command(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTodayRepliesWithAgenda(t *testing.T) {
	t.Parallel()
	h, ad, c := newTestHandler(t)
	start := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	c.Reconcile(model.Snapshot{Meetings: []model.Meeting{
		{ID: "m1", Subject: "planning", Start: start, End: start.Add(time.Hour)},
	}})

	h.handle(context.Background(), transport.Message{ChatID: 100, FromID: 7, Text: "/today@meetbot"})

	replies := ad.replies()
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if !strings.Contains(replies[0], "planning") {
		t.Fatalf("agenda reply missing meeting: %q", replies[0])
	}
}

func TestCheckRepliesWithOverlapReport(t *testing.T) {
	t.Parallel()
	h, ad, _ := newTestHandler(t)

	h.handle(context.Background(), transport.Message{ChatID: 100, FromID: 7, Text: "/check"})

	replies := ad.replies()
	if len(replies) != 1 || !strings.Contains(replies[0], "Total overlaps") {
		t.Fatalf("unexpected /check reply: %v", replies)
	}
}

func TestUnauthorizedChatIgnoredSilently(t *testing.T) {
	t.Parallel()
	h, ad, _ := newTestHandler(t)

	h.handle(context.Background(), transport.Message{ChatID: 999, FromID: 7, Text: "/today"})

	if len(ad.replies()) != 0 {
		t.Fatal("reply sent to unauthorized chat")
	}
}

func TestUserAllowListNarrowsSenders(t *testing.T) {
	t.Parallel()
	h, ad, _ := newTestHandler(t)
	h.SetAccess([]int64{100}, []int64{7})

	h.handle(context.Background(), transport.Message{ChatID: 100, FromID: 8, Text: "/check"})
	if len(ad.replies()) != 0 {
		t.Fatal("reply sent for sender outside the allow-list")
	}

	h.handle(context.Background(), transport.Message{ChatID: 100, FromID: 7, Text: "/check"})
	if len(ad.replies()) != 1 {
		t.Fatal("allowed sender got no reply")
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	t.Parallel()
	h, ad, _ := newTestHandler(t)

	h.handle(context.Background(), transport.Message{ChatID: 100, FromID: 7, Text: "/weather"})

	if len(ad.replies()) != 0 {
		t.Fatal("unknown command produced a reply")
	}
}

func TestRunDrainsChannelUntilCancel(t *testing.T) {
	t.Parallel()
	ad := &replyAdapter{}
	c := cache.New()
	in := make(chan transport.Message, 1)
	h := New(ad, c, in, render.New(time.UTC, nil, ""), logx.Nop())
	h.SetAccess([]int64{100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	in <- transport.Message{ChatID: 100, FromID: 7, Text: "/check"}
	deadline := time.After(2 * time.Second)
	for len(ad.replies()) == 0 {
		select {
		case <-deadline:
			t.Fatal("message not handled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
