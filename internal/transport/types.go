// Package transport defines the messenger boundary the delivery engine
// and the command dispatcher talk to.
package transport

import "context"

// ChatTarget identifies one destination chat.
type ChatTarget struct {
	ChatID int64
}

// Button is an optional single inline URL button attached to a message
// (the "join meeting" link).
type Button struct {
	Text string
	URL  string
}

// SendOptions control message formatting.
type SendOptions struct {
	MarkdownV2     bool
	DisablePreview bool
	Button         *Button
}

// Message is one inbound chat message (commands only; everything else is
// ignored upstream).
type Message struct {
	ChatID int64
	FromID int64
	Text   string
}

// Adapter is the outbound/inbound messenger implementation.
type Adapter interface {
	// Start begins long-polling for inbound messages, delivering them to
	// out until ctx is done. Non-blocking.
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// Retryable reports whether err is a transient transport failure
	// (timeout, network, flood-wait, server-side 5xx) worth retrying.
	// Any other error is terminal for that destination.
	Retryable(err error) bool
}
