// Package mail renders and delivers the account emails: verification links
// and password reset links.
package mail

import (
	"context"
	"errors"
	"log/slog"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	// Kind tags the message for logs and metrics ("verification", "reset").
	Kind string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Log writes messages to a structured logger instead of delivering them.
// Useful in development, where the link in the log is the only way to
// complete verification or reset.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log mailer. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Send logs msg at info level.
func (l *Log) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	l.logger.InfoContext(ctx, "mail not delivered (log mailer)",
		slog.String("to", msg.To),
		slog.String("kind", msg.Kind),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}

// Discard drops every message.
type Discard struct{}

// Send implements Mailer.
func (Discard) Send(context.Context, Message) error { return nil }
