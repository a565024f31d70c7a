package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meetbot/internal/cache"
	"meetbot/internal/delivery"
	"meetbot/internal/model"
	"meetbot/internal/render"
	"meetbot/internal/source"
	"meetbot/internal/transport"
	"meetbot/pkg/logx"
)

type sentMsg struct {
	chat int64
	text string
	opt  *transport.SendOptions
}

type recordAdapter struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (a *recordAdapter) Start(ctx context.Context, out chan<- transport.Message) error { return nil }
func (a *recordAdapter) Stop(ctx context.Context) error                                { return nil }
func (a *recordAdapter) Retryable(err error) bool                                      { return false }

func (a *recordAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, sentMsg{chat: to.ChatID, text: text, opt: opt})
	return nil
}

func (a *recordAdapter) messages() []sentMsg {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentMsg(nil), a.sent...)
}

type fakeSource struct {
	snap model.Snapshot
	err  error

	gotStart time.Time
	gotEnd   time.Time
}

func (f *fakeSource) FetchSnapshot(ctx context.Context, windowStart, windowEnd time.Time) (model.Snapshot, error) {
	f.gotStart, f.gotEnd = windowStart, windowEnd
	return f.snap, f.err
}

func (f *fakeSource) Close() error { return nil }

func newTestService(src source.Source, adapter transport.Adapter, at time.Time) (*Service, *cache.Cache) {
	c := cache.New()
	deliver := delivery.New(delivery.Config{
		RetryMax:      1,
		RetryBase:     time.Millisecond,
		AttemptCap:    1,
		RetryInterval: time.Millisecond,
		RatePerSec:    1000,
	}, adapter, logx.Nop())
	cfg := Config{
		Chats:        []transport.ChatTarget{{ChatID: 1}},
		Location:     time.UTC,
		NotifyLead:   15 * time.Minute,
		DigestHour:   9,
		DigestMinute: 0,
	}
	s := New(cfg, src, c, deliver, render.New(time.UTC, nil, ""), logx.Nop())
	s.clock = func() time.Time { return at }
	return s, c
}

func TestDigestDue(t *testing.T) {
	t.Parallel()
	// 2026-08-25 is a Tuesday, 2026-08-29 a Saturday.
	tue := func(h, m int) time.Time { return time.Date(2026, 8, 25, h, m, 0, 0, time.UTC) }

	cases := []struct {
		name     string
		now      time.Time
		lastSent string
		want     bool
	}{
		{"before trigger", tue(8, 59), "", false},
		{"at trigger", tue(9, 0), "", true},
		{"after trigger", tue(15, 30), "", true},
		{"already sent today", tue(15, 30), "2026-08-25", false},
		{"sent yesterday", tue(9, 0), "2026-08-24", true},
		{"saturday", time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), "", false},
		{"sunday", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), "", false},
	}
	for _, tc := range cases {
		if got := digestDue(tc.now, tc.lastSent, 9, 0); got != tc.want {
			t.Errorf("%s: digestDue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDigestTickSendsAtMostOncePerDay(t *testing.T) {
	t.Parallel()
	ad := &recordAdapter{}
	at := time.Date(2026, 8, 25, 9, 1, 0, 0, time.UTC)
	s, _ := newTestService(&fakeSource{}, ad, at)

	// One digest = two messages (agenda, then overlap report).
	for i := 0; i < 5; i++ {
		s.digestTick(context.Background())
	}
	msgs := ad.messages()
	if len(msgs) != 2 {
		t.Fatalf("digest produced %d sends on one day, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].text, "Today") || !strings.Contains(msgs[1].text, "Total overlaps") {
		t.Fatalf("unexpected digest messages: %q / %q", msgs[0].text, msgs[1].text)
	}

	s.clock = func() time.Time { return at.Add(24 * time.Hour) } // Wednesday
	s.digestTick(context.Background())
	if got := len(ad.messages()); got != 4 {
		t.Fatalf("digest not re-armed on the next day: %d sends", got)
	}
}

func TestUpdateCycleAuthErrorTerminates(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: source.AsAuthError(errors.New("imap: LOGIN rejected"))}
	s, _ := newTestService(src, &recordAdapter{}, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))

	if err := s.updateCycle(context.Background()); err == nil {
		t.Fatal("auth failure did not terminate the update cycle")
	}
}

func TestUpdateCycleTransientErrorKeepsState(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	src := &fakeSource{snap: model.Snapshot{Meetings: []model.Meeting{
		{ID: "m1", Subject: "standup", Start: at.Add(time.Hour), End: at.Add(2 * time.Hour)},
	}}}
	s, c := newTestService(src, &recordAdapter{}, at)

	if err := s.updateCycle(context.Background()); err != nil {
		t.Fatalf("updateCycle: %v", err)
	}
	if len(c.Meetings()) != 1 {
		t.Fatal("snapshot not reconciled into cache")
	}

	src.err = errors.New("dial tcp: connection refused")
	if err := s.updateCycle(context.Background()); err != nil {
		t.Fatalf("transient error escalated: %v", err)
	}
	if len(c.Meetings()) != 1 {
		t.Fatal("transient fetch failure discarded previous state")
	}
}

func TestFetchWindowSpansLocalDay(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+3", 3*3600)
	s, _ := newTestService(&fakeSource{}, &recordAdapter{}, time.Time{})
	s.cfg.Location = loc

	now := time.Date(2026, 8, 25, 13, 45, 0, 0, loc)
	start, end := s.fetchWindow(now)

	wantStart := time.Date(2026, 8, 24, 21, 0, 0, 0, time.UTC) // local midnight
	if !start.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", start, wantStart)
	}
	if got := end.Sub(start); got != 24*time.Hour {
		t.Fatalf("window length = %v, want 24h", got)
	}
}

func TestNotifyDueMeetingsConsumesAndAttachesButton(t *testing.T) {
	t.Parallel()
	ad := &recordAdapter{}
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	s, c := newTestService(&fakeSource{}, ad, at)

	c.Reconcile(model.Snapshot{Meetings: []model.Meeting{
		{ID: "m1", Subject: "sync", Start: at.Add(10 * time.Minute), End: at.Add(40 * time.Minute), JoinURL: "https://meet.example.com/abc"},
	}})

	s.notifyDueMeetings(context.Background())
	msgs := ad.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d sends, want 1", len(msgs))
	}
	opt := msgs[0].opt
	if opt == nil || !opt.MarkdownV2 || opt.Button == nil || opt.Button.URL != "https://meet.example.com/abc" {
		t.Fatalf("unexpected send options: %+v", opt)
	}

	// The meeting was consumed on selection; later scans stay quiet.
	s.notifyDueMeetings(context.Background())
	if got := len(ad.messages()); got != 1 {
		t.Fatalf("meeting alerted twice: %d sends", got)
	}
}

func TestNotifyOneContainsPanics(t *testing.T) {
	t.Parallel()
	s, _ := newTestService(&fakeSource{}, &recordAdapter{}, time.Now())

	ran := false
	s.notifyOne(context.Background(), "meeting", "bad", func(context.Context) { panic("render bug") })
	s.notifyOne(context.Background(), "meeting", "ok", func(context.Context) { ran = true })
	if !ran {
		t.Fatal("panic in one item stopped the next")
	}
}

func TestNotifyUnseenMailSendsOncePerItem(t *testing.T) {
	t.Parallel()
	ad := &recordAdapter{}
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	s, c := newTestService(&fakeSource{}, ad, at)

	c.Reconcile(model.Snapshot{Mails: []model.MailItem{
		{ID: "a", Subject: "report", Sender: "Alice", SentAt: at},
		{ID: "b", Subject: "invoice", Sender: "Bob", SentAt: at},
	}})

	s.notifyUnseenMail(context.Background())
	if got := len(ad.messages()); got != 2 {
		t.Fatalf("got %d sends, want 2", got)
	}
	s.notifyUnseenMail(context.Background())
	if got := len(ad.messages()); got != 2 {
		t.Fatalf("mail alerted twice: %d sends", got)
	}
}
