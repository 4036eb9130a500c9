// Package delivery sends finished daily reports to parents by email.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Veraticus/the-observer/internal/common"
)

// DefaultPort is the SMTP submission port; smtp.SendMail upgrades it with STARTTLS.
const DefaultPort = 587

// Config holds the SMTP account used to send reports.
type Config struct {
	Host     string `validate:"required,hostname"`
	Port     int    `validate:"min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"required,email"`
}

// Message is one report email.
type Message struct {
	To      string `validate:"required,email"`
	Subject string `validate:"required"`
	HTML    []byte `validate:"required"`
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends HTML messages through one SMTP account.
type Mailer struct {
	cfg      Config
	validate *validator.Validate
	send     sendFunc
	logger   *slog.Logger
	now      func() time.Time
}

// New checks cfg and returns a Mailer.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: smtp password is not set", common.ErrMissingConfig)
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}
	return &Mailer{
		cfg:      cfg,
		validate: v,
		send:     smtp.SendMail,
		logger:   common.LoggerOrDefault(logger),
		now:      time.Now,
	}, nil
}

// Send delivers msg. smtp.SendMail cannot be interrupted, so ctx is only
// checked before the connection is made.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := m.validate.Struct(msg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	body, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	m.logger.Info("Sent report email", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (m *Mailer) compose(msg Message) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write(msg.HTML); err != nil {
		return nil, fmt.Errorf("failed to encode email body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode email body: %w", err)
	}
	return b.Bytes(), nil
}
