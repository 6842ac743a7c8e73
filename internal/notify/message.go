package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/tm65023/Story/internal/otp/domain"
)

// Message is a rendered code email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

var codeHTML = template.Must(template.New("code").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">{{.Subject}}</h2>
  <p style="font-size: 16px; color: #666;">Your verification code is:</p>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 5px; text-align: center; margin: 20px 0;">
    <span style="font-size: 32px; font-weight: bold; letter-spacing: 5px; color: #333;">{{.Code}}</span>
  </div>
  <p style="font-size: 14px; color: #999;">This code will expire in {{.Expiry}}.</p>
  <p style="font-size: 12px; color: #999; margin-top: 20px;">If you didn't request this code, you can safely ignore this email.</p>
</div>
`))

// Subject returns the email subject for purpose.
func Subject(purpose domain.Purpose) string {
	if purpose == domain.PurposeEnrollment {
		return "Complete your registration"
	}
	return "Login verification code"
}

// BuildCodeMessage renders the subject, plain text and HTML bodies for a code.
func BuildCodeMessage(code string, purpose domain.Purpose, ttl time.Duration) (Message, error) {
	subject := Subject(purpose)
	expiry := humanizeTTL(ttl)

	var html bytes.Buffer
	err := codeHTML.Execute(&html, struct {
		Subject, Code, Expiry string
	}{subject, code, expiry})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Subject: subject,
		Text:    fmt.Sprintf("Your verification code is: %s\nThis code will expire in %s.", code, expiry),
		HTML:    html.String(),
	}, nil
}

func humanizeTTL(ttl time.Duration) string {
	if ttl < time.Minute {
		return "1 minute"
	}
	m := int(math.Round(ttl.Minutes()))
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

// ValidRecipient reports whether addr can be placed in a To header as a single bare address.
// Empty addresses, whitespace and header or list syntax (CR, LF, angle brackets, commas) are rejected.
func ValidRecipient(addr string) bool {
	return addr != "" &&
		strings.Contains(addr, "@") &&
		!strings.ContainsAny(addr, "\r\n<>,") &&
		strings.IndexFunc(addr, unicode.IsSpace) < 0
}
