package dav

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"meetbot/internal/model"
	"meetbot/pkg/logx"
)

// imapSession returns the cached IMAP client, dialing and authenticating
// on first use. On a failed fetch the caller drops the session so the
// next cycle reconnects.
func (c *Client) imapSession(ctx context.Context) (*imapclient.Client, error) {
	if c.imap != nil {
		return c.imap, nil
	}

	opts := &imapclient.Options{}
	if c.cfg.InsecureSkipVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client, err := imapclient.DialTLS(c.cfg.IMAP.Addr, opts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.IMAP.Addr, err)
	}
	if err := client.Login(c.cfg.IMAP.Username, c.cfg.IMAP.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := client.Select(c.cfg.IMAP.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, fmt.Errorf("select %s: %w", c.cfg.IMAP.Mailbox, err)
	}

	c.imap = client
	c.log.Info("imap session ready", logx.String("mailbox", c.cfg.IMAP.Mailbox))
	return client, nil
}

func (c *Client) fetchUnreadMail(ctx context.Context) ([]model.MailItem, error) {
	client, err := c.imapSession(ctx)
	if err != nil {
		return nil, err
	}

	mails, err := fetchUnseen(client)
	if err != nil {
		// Stale connections surface here; reconnect next cycle.
		c.closeIMAP()
		return nil, err
	}
	return mails, nil
}

func fetchUnseen(client *imapclient.Client) ([]model.MailItem, error) {
	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	textSection := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierText,
		Peek:      true, // never flip \Seen: announcing is not reading
	}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{textSection},
	})
	messages, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}

	var mails []model.MailItem
	for _, msg := range messages {
		if msg.Envelope == nil || msg.Envelope.Date.IsZero() {
			continue
		}

		id := msg.Envelope.MessageID
		if id == "" {
			id = fmt.Sprintf("uid:%d", msg.UID)
		}

		var sender string
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			sender = from.Name
			if sender == "" {
				sender = from.Addr()
			}
		}

		mails = append(mails, model.MailItem{
			ID:      id,
			Subject: msg.Envelope.Subject,
			Sender:  sender,
			SentAt:  msg.Envelope.Date.UTC(),
			Preview: buildPreview(string(msg.FindBodySection(textSection))),
		})
	}
	sort.Slice(mails, func(i, j int) bool { return mails[i].SentAt.After(mails[j].SentAt) })
	return mails, nil
}
