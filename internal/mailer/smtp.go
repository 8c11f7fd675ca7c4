// internal/mailer/smtp.go
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	// Service selects a well-known provider preset ("gmail", "outlook",
	// "yahoo", "zoho", "icloud"). Host and Port override the preset.
	Service string

	// Host is the SMTP server hostname (e.g., "smtp.gmail.com").
	Host string

	// Port is the SMTP server port (typically 587 for STARTTLS, 465 for SSL).
	Port int

	// Username and Password for SMTP authentication. Authentication is
	// skipped when Username is empty.
	Username string
	Password string

	// UseSSL enables implicit TLS (port 465). Otherwise STARTTLS is mandatory.
	UseSSL bool

	// Timeout for SMTP operations (default: 30 seconds).
	Timeout time.Duration
}

type smtpPreset struct {
	host   string
	port   int
	useSSL bool
}

var smtpPresets = map[string]smtpPreset{
	"gmail":   {host: "smtp.gmail.com", port: 587},
	"outlook": {host: "smtp.office365.com", port: 587},
	"yahoo":   {host: "smtp.mail.yahoo.com", port: 465, useSSL: true},
	"zoho":    {host: "smtp.zoho.com", port: 465, useSSL: true},
	"icloud":  {host: "smtp.mail.me.com", port: 587},
}

// resolve fills Host/Port/UseSSL from the service preset and applies defaults.
func (c SMTPConfig) resolve() (SMTPConfig, error) {
	if svc := strings.ToLower(strings.TrimSpace(c.Service)); svc != "" {
		p, ok := smtpPresets[svc]
		if !ok {
			return c, fmt.Errorf("mailer: unknown smtp service %q", c.Service)
		}
		if c.Host == "" {
			c.Host = p.host
			c.UseSSL = c.UseSSL || p.useSSL
		}
		if c.Port == 0 {
			c.Port = p.port
		}
	}
	if strings.TrimSpace(c.Host) == "" {
		return c, fmt.Errorf("mailer: smtp host is required (set smtp_host or smtp_service)")
	}
	if c.Port == 0 {
		c.Port = 587
	}
	if c.Port == 465 {
		c.UseSSL = true
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c, nil
}

// SMTPTransport sends messages through an SMTP server. A new connection is
// dialed per Send; the transport itself holds only immutable configuration.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport validates cfg and returns a transport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	resolved, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return &SMTPTransport{cfg: resolved}, nil
}

// Name implements Transport.
func (t *SMTPTransport) Name() string { return string(KindSMTP) }

// Addr returns host:port of the configured server.
func (t *SMTPTransport) Addr() string {
	return fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	m, err := buildMsg(msg)
	if err != nil {
		return Receipt{}, err
	}

	c, err := t.client()
	if err != nil {
		return Receipt{}, err
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return Receipt{}, fmt.Errorf("mailer: smtp send via %s: %w", t.Addr(), err)
	}

	return Receipt{MessageID: m.GetMessageID(), Transport: t.Name()}, nil
}

// Verify dials the server, authenticates, and disconnects.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("mailer: smtp dial %s: %w", t.Addr(), err)
	}
	return c.Close()
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTimeout(t.cfg.Timeout),
	}

	if t.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	// Port last so the TLS policy cannot reset it.
	opts = append(opts, mail.WithPort(t.cfg.Port))

	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}

	c, err := mail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: failed to create smtp client: %w", err)
	}
	return c, nil
}

// buildMsg converts a Message into a go-mail message.
func buildMsg(msg Message) (*mail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	m := mail.NewMsg()

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.FromAddress); err != nil {
			return nil, fmt.Errorf("mailer: invalid from address: %w", err)
		}
	} else if err := m.From(msg.FromAddress); err != nil {
		return nil, fmt.Errorf("mailer: invalid from address: %w", err)
	}

	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mailer: invalid to address: %w", err)
	}

	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("mailer: invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}
