// =============================================================================
// Stop & Go Invoice Batch - Notifications
// =============================================================================
//
// This module reports run outcomes by mail.
//
// NOTIFIERS:
//   - SMTPMailer:  authenticated relay with STARTTLS (smtp.office365.com:587)
//   - LogNotifier: writes the message to the log, used without credentials
//
// MESSAGES:
//   - Failure: subject "BATCH FACTURAS STOP & GO", full error detail
//   - Success: subject "PROCESO FACTURAS STOP & GO", run summary
//
// A failed send is returned to the caller, which logs it. Sends are never
// retried.
//
// =============================================================================

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/stopgo-invoices/internal/config"
)

// Subjects of the two notification kinds.
const (
	ErrorSubject   = "BATCH FACTURAS STOP & GO"
	SuccessSubject = "PROCESO FACTURAS STOP & GO"
)

// Footer is appended to every message body.
const Footer = "Por favor, no conteste a este mail. Si ha recibido este correo por error háganoslo saber. \nMuchas gracias."

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("no recipients")

// Notifier delivers a plain-text message.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Logger is the logging interface used by LogNotifier.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// New returns an SMTPMailer when settings carry credentials and a
// LogNotifier otherwise.
func New(settings config.MailSettings, log Logger) Notifier {
	if settings.HasCredentials() {
		return NewSMTPMailer(settings)
	}
	return &LogNotifier{Logger: log}
}

// =============================================================================
// MESSAGE BODIES
// =============================================================================

// ErrorBody builds the failure message body.
func ErrorBody(runID string, err error, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Stop&Go] Error batch (run %s):\n%v\n", runID, err)
	if detail != "" {
		fmt.Fprintf(&b, "\n%s\n", detail)
	}
	b.WriteString("\n")
	b.WriteString(Footer)
	return b.String()
}

// SuccessBody builds the completion message body.
func SuccessBody(summary string) string {
	return "Las facturas de Stop & Go han sido procesadas.\n\n" +
		summary + "\n" + Footer
}

// =============================================================================
// SMTP MAILER
// =============================================================================

// SMTPMailer sends mail through an authenticated relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPMailer creates a mailer from the mail settings.
func NewSMTPMailer(settings config.MailSettings) *SMTPMailer {
	from := settings.From
	if from == "" {
		from = settings.Username
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPMailer{
		host:     settings.Host,
		port:     settings.Port,
		username: settings.Username,
		password: settings.Password,
		from:     from,
		timeout:  timeout,
	}
}

// Send delivers one message to all recipients.
func (m *SMTPMailer) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(buildMessage(m.from, recipients, subject, body, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	return client.Quit()
}

// buildMessage renders headers and body with CRLF line endings.
func buildMessage(from string, to []string, subject, body string, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	Logger Logger
}

// Send logs the message.
func (n *LogNotifier) Send(_ context.Context, recipients []string, subject, body string) error {
	if n.Logger == nil {
		return nil
	}
	if len(recipients) == 0 {
		n.Logger.Warn("Notification %q not sent: no recipients configured", subject)
		return nil
	}
	n.Logger.Info("Mail not configured, notification for %s: %s\n%s",
		strings.Join(recipients, ", "), subject, body)
	return nil
}
