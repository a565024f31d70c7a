// Package dav implements the directory source against a groupware
// account: meetings from a CalDAV calendar, unread mail from an IMAP
// inbox. Only the update loop calls it, so sessions are lazily built and
// reused without internal locking.
package dav

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"meetbot/internal/model"
	"meetbot/pkg/logx"
)

type CalDAVConfig struct {
	Endpoint string
	Username string
	Password string
	// Calendar selects a calendar by display name. Empty means the first
	// calendar of the principal's home set.
	Calendar string
}

type IMAPConfig struct {
	Addr     string // host:port, implicit TLS
	Username string
	Password string
	Mailbox  string // defaults to INBOX
}

type Config struct {
	CalDAV CalDAVConfig
	IMAP   IMAPConfig

	// InsecureSkipVerify disables TLS certificate verification for both
	// backends (self-signed corporate servers).
	InsecureSkipVerify bool
}

type Client struct {
	cfg Config
	log logx.Logger

	// Lazily established sessions, reused across polling cycles.
	cal          *caldav.Client
	calendarPath string
	imap         *imapclient.Client
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.IMAP.Mailbox == "" {
		cfg.IMAP.Mailbox = "INBOX"
	}
	return &Client{cfg: cfg, log: log}
}

// FetchSnapshot pulls the meeting window and the unread mail in one
// cycle. A calendar failure aborts the whole fetch (the reconciler must
// never see a half-empty snapshot).
func (c *Client) FetchSnapshot(ctx context.Context, windowStart, windowEnd time.Time) (model.Snapshot, error) {
	meetings, err := c.fetchMeetings(ctx, windowStart, windowEnd)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("calendar: %w", err)
	}
	mails, err := c.fetchUnreadMail(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("mailbox: %w", err)
	}
	return model.Snapshot{Meetings: meetings, Mails: mails}, nil
}

func (c *Client) Close() error {
	c.closeIMAP()
	return nil
}

func (c *Client) httpClient() *http.Client {
	hc := &http.Client{Timeout: 30 * time.Second}
	if c.cfg.InsecureSkipVerify {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return hc
}

// caldavSession returns the cached CalDAV client + calendar path,
// discovering them on first use.
func (c *Client) caldavSession(ctx context.Context) (*caldav.Client, string, error) {
	if c.cal != nil && c.calendarPath != "" {
		return c.cal, c.calendarPath, nil
	}

	httpc := webdav.HTTPClientWithBasicAuth(c.httpClient(), c.cfg.CalDAV.Username, c.cfg.CalDAV.Password)
	client, err := caldav.NewClient(httpc, c.cfg.CalDAV.Endpoint)
	if err != nil {
		return nil, "", err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, "", fmt.Errorf("find home set: %w", err)
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, "", fmt.Errorf("list calendars: %w", err)
	}
	if len(calendars) == 0 {
		return nil, "", fmt.Errorf("no calendars under %s", homeSet)
	}

	path := calendars[0].Path
	if want := c.cfg.CalDAV.Calendar; want != "" {
		path = ""
		for _, cal := range calendars {
			if cal.Name == want {
				path = cal.Path
				break
			}
		}
		if path == "" {
			return nil, "", fmt.Errorf("calendar %q not found", want)
		}
	}

	c.cal = client
	c.calendarPath = path
	c.log.Info("caldav session ready", logx.String("calendar", path))
	return client, path, nil
}

func (c *Client) closeIMAP() {
	if c.imap == nil {
		return
	}
	_ = c.imap.Logout().Wait()
	_ = c.imap.Close()
	c.imap = nil
}
