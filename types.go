package authcore

import (
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/identity"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
)

// RegisterInput is a password sign-up request.
type RegisterInput = flows.RegisterInput

// OAuthProfile is the identity an external provider vouched for.
type OAuthProfile = flows.OAuthProfile

// Session is the credential handed to a client after a successful login.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
	Identity  *identity.Identity
}

// SessionClaims is what Validate reports about a session credential.
type SessionClaims struct {
	IdentityID string
	Email      string
	Provider   identity.Provider
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// AuditEvent is one authentication event delivered to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per audit event.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs audit events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing newline-delimited JSON to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging each event through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
