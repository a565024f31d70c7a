// Package config loads, validates and watches the bot configuration.
// Config files are YAML or JSON; either way the strict JSON decoder
// (DisallowUnknownFields) catches typos and removed keys early. Secrets
// can be left out of the file and supplied via the environment.
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Source   SourceConfig   `json:"source"`
	Delivery DeliveryConfig `json:"delivery,omitempty"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
	Mail     MailConfig     `json:"mail,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`

	// Timezone is an IANA name (e.g. "Europe/Berlin"). Meeting times,
	// the fetch window and the digest trigger are all interpreted in it.
	// Empty means the system's local zone.
	Timezone string `json:"timezone,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"` // or MEETBOT_TELEGRAM_TOKEN

	// ChatIDs are the destinations for alerts and the digest. Commands
	// are honored only when they arrive from one of these chats.
	ChatIDs []int64 `json:"chat_ids"`

	// AllowedUserIDs optionally narrows commands to specific senders.
	// Empty means any sender in a configured chat.
	AllowedUserIDs []int64 `json:"allowed_user_ids,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type SourceConfig struct {
	CalDAV CalDAVConfig `json:"caldav"`
	IMAP   IMAPConfig   `json:"imap"`

	// PollInterval is a Go duration string; how often the snapshot is
	// refreshed. Default "1m".
	PollInterval string `json:"poll_interval,omitempty"`

	// InsecureSkipVerify disables TLS certificate checks for both
	// backends. For self-signed internal servers only.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`
}

type CalDAVConfig struct {
	Endpoint string `json:"endpoint"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"` // or MEETBOT_CALDAV_PASSWORD
	// Calendar selects a calendar by display name; empty picks the
	// first one found under the home set.
	Calendar string `json:"calendar,omitempty"`
}

type IMAPConfig struct {
	Addr     string `json:"addr"` // host:port, implicit TLS
	Username string `json:"username"`
	Password string `json:"password,omitempty"` // or MEETBOT_IMAP_PASSWORD
	Mailbox  string `json:"mailbox,omitempty"`  // default "INBOX"
}

// DeliveryConfig tunes the send policies. All durations are Go duration
// strings. Zero values fall back to the engine defaults (3 attempts /
// 1s base for alerts, 10 attempts / 60s interval for the digest, 3
// messages per second).
type DeliveryConfig struct {
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	AttemptCap    int    `json:"attempt_cap,omitempty"`
	RetryInterval string `json:"retry_interval,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
}

type NotifyConfig struct {
	// Lead is how long before a meeting's start the alert fires.
	// Default "15m".
	Lead string `json:"lead,omitempty"`

	MeetingScanInterval string `json:"meeting_scan_interval,omitempty"` // default "30s"
	MailScanInterval    string `json:"mail_scan_interval,omitempty"`    // default "30s"
}

type DigestConfig struct {
	Enabled bool `json:"enabled"`
	// At is the local trigger time as "HH:MM" (workdays only).
	// Default "09:00".
	At string `json:"at,omitempty"`
}

type MailConfig struct {
	// Keywords flag a mail alert as urgent when the subject, sender or
	// preview contains one of them (case-insensitive).
	Keywords []string `json:"keywords,omitempty"`
	// Mention is appended to flagged mail alerts (e.g. "@oncall").
	Mention string `json:"mention,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"` // default "info"
	Console bool        `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Validate checks everything that would otherwise fail deep inside a
// loop: required fields, duration syntax, the digest time and the
// timezone. It is also the gate for live reloads.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or MEETBOT_TELEGRAM_TOKEN)")
	}
	if len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram.chat_ids must list at least one chat")
	}
	if strings.TrimSpace(c.Source.CalDAV.Endpoint) == "" {
		return fmt.Errorf("source.caldav.endpoint is required")
	}
	if strings.TrimSpace(c.Source.IMAP.Addr) == "" {
		return fmt.Errorf("source.imap.addr is required")
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"source.poll_interval", c.Source.PollInterval},
		{"delivery.retry_base", c.Delivery.RetryBase},
		{"delivery.retry_interval", c.Delivery.RetryInterval},
		{"notify.lead", c.Notify.Lead},
		{"notify.meeting_scan_interval", c.Notify.MeetingScanInterval},
		{"notify.mail_scan_interval", c.Notify.MailScanInterval},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	if c.Digest.Enabled && c.Digest.At != "" {
		if _, _, err := ParseHHMM(c.Digest.At); err != nil {
			return fmt.Errorf("digest.at: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Location resolves the configured timezone; empty means the system's
// local zone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DigestAt returns the digest trigger as hour and minute, defaulting to
// 09:00 when unset.
func (c *Config) DigestAt() (hour, minute int) {
	if c.Digest.At == "" {
		return 9, 0
	}
	h, m, err := ParseHHMM(c.Digest.At)
	if err != nil {
		return 9, 0
	}
	return h, m
}

// ParseHHMM parses a wall-clock time like "09:00" or "17:30".
func ParseHHMM(s string) (hour, minute int, err error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return h, m, nil
}
