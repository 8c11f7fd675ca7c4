// internal/mailer/log.go
package mailer

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"go.uber.org/zap"
)

// LogTransport writes messages to the logger instead of delivering them.
// Use it in dev when no SMTP account is at hand.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport returns a LogTransport. A nil logger discards everything.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Name implements Transport.
func (t *LogTransport) Name() string { return string(KindLog) }

// Send implements Transport.
func (t *LogTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	id := newLogMessageID()
	t.logger.Info("mail not delivered (log transport)",
		zap.String("message_id", id),
		zap.String("from", msg.From()),
		zap.Strings("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.String("text_body", msg.TextBody),
		zap.Int("html_bytes", len(msg.HTMLBody)),
	)
	return Receipt{MessageID: id, Transport: t.Name()}, nil
}

func newLogMessageID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "<" + hex.EncodeToString(b) + "@contactrelay.local>"
}
