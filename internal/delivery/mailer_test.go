package delivery

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/common"
)

type sentMail struct {
	addr string
	from string
	to   []string
	body string
}

func newTestMailer(t *testing.T, sendErr error) (*Mailer, *[]sentMail) {
	t.Helper()
	m, err := New(Config{
		Host:     "smtp.example.com",
		Password: "secret",
		From:     "reports@example.com",
	}, nil)
	require.NoError(t, err)

	var sent []sentMail
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, body: string(msg)})
		return sendErr
	}
	m.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return m, &sent
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "missing host", cfg: Config{Password: "p", From: "a@example.com"}, wantErr: common.ErrInvalidConfig},
		{name: "bad sender", cfg: Config{Host: "smtp.example.com", Password: "p", From: "nobody"}, wantErr: common.ErrInvalidConfig},
		{name: "missing password", cfg: Config{Host: "smtp.example.com", From: "a@example.com"}, wantErr: common.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSend(t *testing.T) {
	m, sent := newTestMailer(t, nil)

	err := m.Send(context.Background(), Message{
		To:      "parent@example.com",
		Subject: "Maria's report – 01/03/2024",
		HTML:    []byte("<p>Maria built a tower.</p>"),
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "reports@example.com", got.from)
	assert.Equal(t, []string{"parent@example.com"}, got.to)
	assert.Contains(t, got.body, "To: parent@example.com\r\n")
	assert.Contains(t, got.body, "Subject: =?utf-8?q?")
	assert.Contains(t, got.body, "Content-Type: text/html; charset=\"utf-8\"\r\n")
	assert.Contains(t, got.body, "Date: Fri, 01 Mar 2024 09:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(got.body, "<p>Maria built a tower.</p>"))
}

func TestSendRejectsBadRecipient(t *testing.T) {
	m, sent := newTestMailer(t, nil)

	err := m.Send(context.Background(), Message{To: "not-an-address", Subject: "s", HTML: []byte("x")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Empty(t, *sent)
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("535 authentication failed")
	m, _ := newTestMailer(t, boom)

	err := m.Send(context.Background(), Message{To: "parent@example.com", Subject: "s", HTML: []byte("x")})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "parent@example.com")
}

func TestSendHonorsCanceledContext(t *testing.T) {
	m, sent := newTestMailer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: "parent@example.com", Subject: "s", HTML: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *sent)
}
