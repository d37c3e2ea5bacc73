package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/mail"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
)

// SMTPConfig locates the relay and its credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTP delivers envelopes to an SMTP relay as multipart MIME messages.
type SMTP struct {
	addr     string
	username string
	password string
}

// NewSMTP creates an SMTP transport.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host not configured")
	}
	port := cfg.Port
	if port == 0 {
		port = 25
	}
	return &SMTP{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

func (s *SMTP) Send(ctx context.Context, env *domain.Envelope) (*domain.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	messageID := fmt.Sprintf("<%s@impression>", uuid.New().String())
	raw, err := BuildMIME(env, messageID)
	if err != nil {
		return failed(BackendSMTP, err), nil
	}

	var auth sasl.Client
	if s.username != "" {
		auth = sasl.NewPlainClient("", s.username, s.password)
	}
	if err := smtp.SendMail(s.addr, auth, env.From, env.Recipients(), bytes.NewReader(raw)); err != nil {
		logger.Warn("smtp delivery failed", "addr", s.addr, "to", env.Recipients(), "error", err)
		return failed(BackendSMTP, err), nil
	}
	return succeeded(BackendSMTP, messageID), nil
}

// BuildMIME encodes env as an RFC 5322 message with a text part and, when
// present, an HTML alternative. Bcc recipients are not written to headers.
func BuildMIME(env *domain.Envelope, messageID string) ([]byte, error) {
	subject := env.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	b := enmime.Builder().
		From("", env.From).
		Subject(subject).
		Header("Message-ID", messageID).
		Text([]byte(env.BodyPlaintext))
	if env.BodyHTML != "" {
		b = b.HTML([]byte(env.BodyHTML))
	}
	if len(env.To) > 0 {
		b = b.ToAddrs(addrs(env.To))
	}
	if len(env.CC) > 0 {
		b = b.CCAddrs(addrs(env.CC))
	}
	if len(env.BCC) > 0 {
		b = b.BCCAddrs(addrs(env.BCC))
	}
	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build mime: %w", err)
	}
	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mime: %w", err)
	}
	return buf.Bytes(), nil
}

func addrs(list []string) []mail.Address {
	out := make([]mail.Address, len(list))
	for i, a := range list {
		out[i] = mail.Address{Address: a}
	}
	return out
}
