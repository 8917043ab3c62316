// Package notify delivers operator alerts and registration mail.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/config"
)

// ErrNoRecipients is returned when a message has no recipients and no default
// recipients are configured.
var ErrNoRecipients = errors.New("no recipients")

const subjectPrefix = "[ECM] "

// Message is a plain-text notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// New returns an SMTP notifier when a host is configured and a log notifier
// otherwise.
func New(cfg config.SMTPConfig, logger *zap.Logger) Notifier {
	if cfg.Host == "" {
		return NewLogNotifier(logger)
	}
	return NewSMTPNotifier(cfg, logger)
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs msg at warn level.
func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Warn("notification",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// SMTPNotifier sends messages through an SMTP relay using STARTTLS when the
// server offers it.
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	now    func() time.Time
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg config.SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger, now: time.Now, send: smtp.SendMail}
}

// Notify sends msg. Messages without recipients go to the configured defaults.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	to := msg.To
	if len(to) == 0 {
		to = n.cfg.To
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	if err := n.send(addr, auth, n.from(), to, n.compose(to, msg)); err != nil {
		n.logger.Error("failed to send notification", zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("sending mail: %w", err)
	}
	n.logger.Info("notification sent", zap.String("subject", msg.Subject), zap.Int("recipients", len(to)))
	return nil
}

func (n *SMTPNotifier) from() string {
	if n.cfg.From != "" {
		return n.cfg.From
	}
	return n.cfg.Username
}

func (n *SMTPNotifier) compose(to []string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subjectPrefix+msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	fmt.Fprintf(&b, "\r\n\r\n---\r\nsent at %s\r\n", n.now().Format("2006-01-02 15:04:05"))
	return []byte(b.String())
}
