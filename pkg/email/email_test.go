package email

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/clinic_backend/config"
)

func TestBuildCredentialEmail(t *testing.T) {
	m := BuildCredentialEmail(CredentialEmailData{
		Name:     "Sara <script>",
		Email:    "sara@example.com",
		Login:    "sara@example.com",
		Password: "3210123",
		AppName:  "Sunrise Clinic",
		BaseURL:  "https://clinic.example.com",
	})

	assert.Equal(t, []string{"sara@example.com"}, m.To)
	assert.Contains(t, m.Subject, "Sunrise Clinic")
	assert.Contains(t, m.TextBody, "3210123")
	assert.Contains(t, m.HTMLBody, "3210123")
	assert.NotContains(t, m.HTMLBody, "<script>")

	msg, err := BuildMessage("noreply@clinic.example.com", m)
	require.NoError(t, err)
	assert.Equal(t, []string{m.Subject}, msg.GetHeader("Subject"))
}

func TestBuildInviteEmailDefaults(t *testing.T) {
	m := BuildInviteEmail(InviteEmailData{Email: "p@example.com", InviteURL: "https://x/accept?token=abc"})

	assert.Contains(t, m.Subject, "Clinic")
	assert.True(t, strings.Contains(m.TextBody, "https://x/accept?token=abc"))
	assert.Contains(t, m.TextBody, "72 hours")
}

func TestBuildMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		from string
		msg  Message
	}{
		{"no from", "", Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "b"}},
		{"no subject", "from@b.c", Message{To: []string{"a@b.c"}, TextBody: "b"}},
		{"no body", "from@b.c", Message{To: []string{"a@b.c"}, Subject: "s"}},
		{"no recipients", "from@b.c", Message{To: []string{" "}, Subject: "s", TextBody: "b"}},
		{"bad recipient", "from@b.c", Message{To: []string{"not an address"}, Subject: "s", TextBody: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildMessage(tt.from, tt.msg)
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	m := BuildInviteEmail(InviteEmailData{Email: "p@example.com", InviteURL: "https://x/accept?token=abc"})
	m.ReplyTo = "desk@clinic.example.com"

	msg, err := BuildMessage("Sunrise Clinic <noreply@clinic.example.com>", m)
	require.NoError(t, err)
	assert.Equal(t, []string{KindInvite}, msg.GetHeader("X-Clinic-Notification"))
	assert.Equal(t, []string{"p@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"desk@clinic.example.com"}, msg.GetHeader("Reply-To"))
	require.Len(t, msg.GetHeader("From"), 1)
	assert.Contains(t, msg.GetHeader("From")[0], "noreply@clinic.example.com")
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSend(t *testing.T) {
	c, err := New(config.EmailConfig{})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	err = c.Send(t.Context(), Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "b"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(config.EmailConfig{Enabled: true})
	assert.Error(t, err, "enabled without a host")

	c, err = New(config.EmailConfig{Enabled: true, From: "noreply@clinic.test", SMTP: config.SMTPConfig{Host: "smtp.test", Port: 587}})
	require.NoError(t, err)
	d := &fakeDialer{}
	c.dial = d

	require.NoError(t, c.Send(t.Context(), Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "b"}))
	assert.Len(t, d.sent, 1)

	d.err = errors.New("connection refused")
	err = c.Send(t.Context(), Message{To: []string{"a@b.c"}, Subject: "s", TextBody: "b"})
	var sendErr ErrSend
	assert.ErrorAs(t, err, &sendErr)

	name, _ := c.Branding()
	assert.Equal(t, "Clinic", name)
}
