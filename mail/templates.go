package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// Kinds of account email.
const (
	KindVerification = "verification"
	KindReset        = "reset"
)

var (
	verificationHTML = template.Must(template.New("verification").Parse(`<h1>Welcome to {{.Product}}!</h1>
<p>{{if .Name}}Hi {{.Name}}, p{{else}}P{{end}}lease click the link below to verify your email address:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link will expire in {{.Expiry}}.</p>
`))

	resetHTML = template.Must(template.New("reset").Parse(`<h1>Reset Your Password</h1>
<p>Click the link below to reset your password:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link will expire in {{.Expiry}}.</p>
<p>If you did not request a password reset, you can ignore this email.</p>
`))
)

// Composer builds account emails with links rooted at BaseURL.
type Composer struct {
	BaseURL string
	Product string
}

type templateData struct {
	Product string
	Name    string
	Link    string
	Expiry  string
}

// VerificationLink returns BaseURL/verify/<token>.
func (c Composer) VerificationLink(token string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/verify/" + url.PathEscape(token)
}

// ResetLink returns BaseURL/reset-password?token=<token>.
func (c Composer) ResetLink(token string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// Verification renders the email-verification message.
func (c Composer) Verification(to, name, token string, ttl time.Duration) (Message, error) {
	data := templateData{Product: c.product(), Name: name, Link: c.VerificationLink(token), Expiry: humanize(ttl)}
	var buf bytes.Buffer
	if err := verificationHTML.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Verify your email for %s", data.Product),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("Verify your email address: %s (expires in %s)", data.Link, data.Expiry),
		Kind:    KindVerification,
	}, nil
}

// Reset renders the password-reset message.
func (c Composer) Reset(to, token string, ttl time.Duration) (Message, error) {
	data := templateData{Product: c.product(), Link: c.ResetLink(token), Expiry: humanize(ttl)}
	var buf bytes.Buffer
	if err := resetHTML.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		HTML:    buf.String(),
		Text:    fmt.Sprintf("Reset your password: %s (expires in %s)", data.Link, data.Expiry),
		Kind:    KindReset,
	}, nil
}

func (c Composer) product() string {
	if c.Product == "" {
		return "Genos"
	}
	return c.Product
}

func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0 && d >= time.Hour:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
