// internal/mailer/mailer.go
// Package mailer delivers composed contact messages. A Transport is built once
// at startup from configuration and shared read-only by every request.
//
// Three transports are provided:
//   - SMTPTransport, wrapping github.com/wneessen/go-mail
//   - ResendTransport, wrapping the Resend HTTP API
//   - LogTransport, which only logs the message (local development)
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoRecipients is returned when a message has no To addresses.
	ErrNoRecipients = errors.New("mailer: no recipients specified")

	// ErrEmptyBody is returned when both TextBody and HTMLBody are empty.
	ErrEmptyBody = errors.New("mailer: message body is empty")

	// ErrNoSender is returned when FromAddress is empty.
	ErrNoSender = errors.New("mailer: no sender address")
)

// Message is a fully composed email ready for a Transport.
type Message struct {
	FromName    string   // Sender display name (optional)
	FromAddress string   // Sender address (the service account)
	To          []string // Recipient addresses
	ReplyTo     string   // Reply-To address (optional)
	Subject     string
	TextBody    string // Plain text body (optional if HTMLBody is set)
	HTMLBody    string // HTML body (optional if TextBody is set)
}

// From formats the sender as an RFC 5322 address, quoting the display name
// when one is set.
func (m Message) From() string {
	if m.FromName == "" {
		return m.FromAddress
	}
	return (&mail.Address{Name: m.FromName, Address: m.FromAddress}).String()
}

// Validate reports the first structural problem with the message.
func (m Message) Validate() error {
	if strings.TrimSpace(m.FromAddress) == "" {
		return ErrNoSender
	}
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return ErrEmptyBody
	}
	return nil
}

// Receipt describes an accepted message.
type Receipt struct {
	// MessageID is the identifier assigned to the message: the Message-ID
	// header for SMTP, the provider id for API transports.
	MessageID string

	// Transport is the Name() of the transport that accepted the message.
	Transport string
}

// Transport sends a single message. Implementations must be safe for
// concurrent use; Send is called once per contact request and is never
// retried by the caller.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
	Name() string
}

// Verifier is implemented by transports that can check connectivity and
// credentials without sending anything.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Kind names a transport implementation in configuration.
type Kind string

const (
	KindSMTP   Kind = "smtp"
	KindResend Kind = "resend"
	KindLog    Kind = "log"
)

// ParseKind normalizes a configured transport name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSMTP, KindResend, KindLog:
		return k, nil
	case "":
		return KindSMTP, nil
	default:
		return "", fmt.Errorf("mailer: unknown transport %q (want smtp, resend or log)", s)
	}
}

// Config selects and configures a transport.
type Config struct {
	Kind   Kind
	SMTP   SMTPConfig
	Resend ResendConfig
}

// New builds the transport named by cfg.Kind.
func New(cfg Config, logger *zap.Logger) (Transport, error) {
	switch cfg.Kind {
	case KindSMTP, "":
		t, err := NewSMTPTransport(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindResend:
		t, err := NewResendTransport(cfg.Resend)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindLog:
		return NewLogTransport(logger), nil
	default:
		return nil, fmt.Errorf("mailer: unknown transport %q", cfg.Kind)
	}
}
