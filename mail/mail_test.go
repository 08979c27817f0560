package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposerLinks(t *testing.T) {
	c := Composer{BaseURL: "https://portal.example.com/"}

	assert.Equal(t, "https://portal.example.com/verify/abc_-1", c.VerificationLink("abc_-1"))
	assert.Equal(t, "https://portal.example.com/reset-password?token=abc_-1", c.ResetLink("abc_-1"))
}

func TestComposerVerification(t *testing.T) {
	c := Composer{BaseURL: "https://portal.example.com", Product: "Genos"}

	msg, err := c.Verification("ada@example.com", "Ada", "tok", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Verify your email for Genos", msg.Subject)
	assert.Equal(t, KindVerification, msg.Kind)
	assert.Contains(t, msg.HTML, `href="https://portal.example.com/verify/tok"`)
	assert.Contains(t, msg.HTML, "Hi Ada, please click")
	assert.Contains(t, msg.Text, "24 hours")
}

func TestComposerResetEscapesName(t *testing.T) {
	c := Composer{BaseURL: "https://portal.example.com"}

	msg, err := c.Reset("ada@example.com", "tok", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Equal(t, KindReset, msg.Kind)
	assert.Contains(t, msg.HTML, "1 hour")

	v, err := c.Verification("x@example.com", "<script>", "tok", time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, v.HTML, "<script>")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Kind: KindReset, Text: "link"}))
	assert.True(t, strings.Contains(buf.String(), `"to":"a@example.com"`))
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestSMTPRender(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 465, From: "noreply@example.com"})
	require.NoError(t, err)

	raw := string(s.render(Message{To: "a@example.com", Subject: "Password Reset Request", HTML: "<p>x</p>", Text: "x"}))
	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "To: a@example.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=utf-8")

	_, err = NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 465})
	assert.Error(t, err)
}
