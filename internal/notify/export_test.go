package notify

import (
	"net/smtp"
	"time"
)

// SetTransport replaces the SMTP send function and clock in tests.
func (n *SMTPNotifier) SetTransport(send func(string, smtp.Auth, string, []string, []byte) error, now func() time.Time) {
	n.send = send
	n.now = now
}
