// internal/mailer/resend.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
)

// ResendConfig holds Resend API configuration.
type ResendConfig struct {
	APIKey string

	// Timeout bounds each API call (default: 30 seconds).
	Timeout time.Duration
}

// resendEmails is the subset of the Resend client used here.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport sends messages through the Resend HTTP API.
type ResendTransport struct {
	emails  resendEmails
	timeout time.Duration
}

// NewResendTransport creates a transport using cfg.APIKey.
func NewResendTransport(cfg ResendConfig) (*ResendTransport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mailer: resend api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resend.NewClient(cfg.APIKey)
	return &ResendTransport{emails: client.Emails, timeout: cfg.Timeout}, nil
}

// Name implements Transport.
func (t *ResendTransport) Name() string { return string(KindResend) }

// Send implements Transport.
func (t *ResendTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}

	req := &resend.SendEmailRequest{
		From:    msg.From(),
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
		ReplyTo: msg.ReplyTo,
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.emails.SendWithContext(ctx, req)
	if err != nil {
		return Receipt{}, fmt.Errorf("mailer: resend send: %w", err)
	}

	var id string
	if resp != nil {
		id = resp.Id
	}
	return Receipt{MessageID: id, Transport: t.Name()}, nil
}
