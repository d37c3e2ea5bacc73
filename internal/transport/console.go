package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
)

// Console writes envelopes to a writer instead of delivering them.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console transport writing to w (stdout when nil).
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

func (c *Console) Send(_ context.Context, env *domain.Envelope) (*domain.SendResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", env.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(env.To, ", "))
	if len(env.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(env.CC, ", "))
	}
	if len(env.BCC) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", strings.Join(env.BCC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n\n%s\n", env.Subject, env.BodyPlaintext)
	if env.BodyHTML != "" {
		fmt.Fprintf(&b, "\n-- text/html --\n%s\n", env.BodyHTML)
	}
	b.WriteString(strings.Repeat("-", 79) + "\n")

	c.mu.Lock()
	_, err := io.WriteString(c.out, b.String())
	c.mu.Unlock()
	if err != nil {
		return failed(BackendConsole, err), nil
	}
	logger.Debug("console transport wrote message", "message_id", env.MessageID)
	return succeeded(BackendConsole, env.MessageID), nil
}
