package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"
)

// Kinds of clinic notification, sent as the X-Clinic-Notification header so
// mailbox rules and bounce handling can tell them apart.
const (
	KindCredential = "credential"
	KindInvite     = "invite"
)

var (
	ErrDisabled       = errors.New("email is disabled")
	ErrInvalidMessage = errors.New("invalid email message")
)

// ErrSend wraps a transport failure.
type ErrSend struct{ Err error }

func (e ErrSend) Error() string { return fmt.Sprintf("email send failed (smtp): %v", e.Err) }
func (e ErrSend) Unwrap() error { return e.Err }

// Message is one notification to one or more patients. Clinic mail is never
// copied to third parties, so there is no CC or BCC.
type Message struct {
	To       []string
	ReplyTo  string
	Kind     string
	Subject  string
	TextBody string
	HTMLBody string
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}

// BuildMessage validates m and renders it as a multipart message from from.
func BuildMessage(from string, m Message) (*gomail.Message, error) {
	sender, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return nil, invalid("from: " + err.Error())
	}
	to, err := recipients(m.To)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, invalid("subject is required")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", sender.Address, sender.Name)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	if r := strings.TrimSpace(m.ReplyTo); r != "" {
		msg.SetHeader("Reply-To", r)
	}
	if m.Kind != "" {
		msg.SetHeader("X-Clinic-Notification", m.Kind)
	}

	text, htm := strings.TrimSpace(m.TextBody) != "", strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case text && htm:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case htm:
		msg.SetBody("text/html", m.HTMLBody)
	case text:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, invalid("a text or html body is required")
	}
	return msg, nil
}

// recipients drops blanks and rejects anything that does not parse as an
// address. At least one recipient must remain.
func recipients(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		a, err := mail.ParseAddress(s)
		if err != nil {
			return nil, invalid(fmt.Sprintf("recipient %q: %v", s, err))
		}
		out = append(out, a.Address)
	}
	if len(out) == 0 {
		return nil, invalid("no recipients")
	}
	return out, nil
}
