package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"refsync/pkg/requestcontext"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mail sends the summary as a plain-text message through an SMTP relay.
type Mail struct {
	addr string
	from string
	to   []string
	auth smtp.Auth
	send SendFunc
}

type MailOption func(*Mail)

func WithAuth(a smtp.Auth) MailOption {
	return func(m *Mail) {
		m.auth = a
	}
}

func WithSendFunc(fn SendFunc) MailOption {
	return func(m *Mail) {
		m.send = fn
	}
}

func NewMail(addr, from string, to []string, opts ...MailOption) (*Mail, error) {
	if addr == "" {
		return nil, fmt.Errorf("smtp address is required")
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	m := &Mail{addr: addr, from: from, to: to, send: smtp.SendMail}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Mail) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := m.message(requestcontext.Now(ctx), subject, body)
	if err := m.send(m.addr, m.auth, m.from, m.to, msg); err != nil {
		return fmt.Errorf("send summary mail: %w", err)
	}
	return nil
}

func (m *Mail) message(now time.Time, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
