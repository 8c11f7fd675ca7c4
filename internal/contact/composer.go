package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dalemusser/contactrelay/internal/mailer"
)

const (
	// DefaultRecipient receives submissions when neither an override nor a
	// configured recipient is set.
	DefaultRecipient = "info@finetunai.com"

	// DefaultProductName brands subjects, the sender name and the HTML layout.
	DefaultProductName = "FineTuneAI"

	htmlTitle      = "Contact Form Submission"
	minimalSubject = "New Contact Form Submission"
)

// RecipientSource says which link of the fallback chain produced the address.
type RecipientSource string

const (
	SourceOverride   RecipientSource = "receiver_email"
	SourceConfigured RecipientSource = "contact_form_recipient"
	SourceFallback   RecipientSource = "default"
)

// Recipients is the fallback chain: Override, then Configured, then Fallback.
type Recipients struct {
	Override   string
	Configured string
	Fallback   string
}

// Resolve returns the first non-empty address in the chain.
func (r Recipients) Resolve() (string, RecipientSource) {
	if v := strings.TrimSpace(r.Override); v != "" {
		return v, SourceOverride
	}
	if v := strings.TrimSpace(r.Configured); v != "" {
		return v, SourceConfigured
	}
	if v := strings.TrimSpace(r.Fallback); v != "" {
		return v, SourceFallback
	}
	return DefaultRecipient, SourceFallback
}

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	ProductName string // default DefaultProductName
	FromName    string // default ProductName
	FromAddress string // required: the service account that sends
	Layout      Layout // default LayoutBranded
	Recipients  Recipients

	// Now is used for the footer year. Defaults to time.Now.
	Now func() time.Time
}

// Composer turns a validated Submission into a mailer.Message.
type Composer struct {
	cfg    ComposerConfig
	to     string
	source RecipientSource
}

// NewComposer applies defaults and resolves the recipient once.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, errors.New("contact: sender address is required (set from_address or smtp_username)")
	}
	if cfg.ProductName == "" {
		cfg.ProductName = DefaultProductName
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.ProductName
	}
	if cfg.Layout == "" {
		cfg.Layout = LayoutBranded
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	to, source := cfg.Recipients.Resolve()
	return &Composer{cfg: cfg, to: to, source: source}, nil
}

// Recipient returns the resolved "to" address and where it came from.
func (c *Composer) Recipient() (string, RecipientSource) {
	return c.to, c.source
}

// Subject returns the subject line for s. A submitted subject wins; otherwise
// the layout decides.
func (c *Composer) Subject(s Submission) string {
	if s.Subject != "" {
		return headerSafe(s.Subject)
	}
	if c.cfg.Layout == LayoutMinimal {
		return minimalSubject
	}
	return headerSafe(fmt.Sprintf("New Inquiry from %s - %s Contact Form", s.Name, c.cfg.ProductName))
}

// Compose builds the message for s. s must already have passed Validate.
func (c *Composer) Compose(s Submission) (mailer.Message, error) {
	s = s.Normalized()

	data := EmailData{
		Layout:      c.cfg.Layout,
		ProductName: c.cfg.ProductName,
		Title:       htmlTitle,
		Name:        s.Name,
		Email:       s.Email,
		Message:     s.Message,
		Year:        c.cfg.Now().Year(),
	}

	html, err := RenderHTML(data)
	if err != nil {
		return mailer.Message{}, err
	}
	text, err := RenderText(data)
	if err != nil {
		return mailer.Message{}, err
	}

	return mailer.Message{
		FromName:    c.cfg.FromName,
		FromAddress: c.cfg.FromAddress,
		To:          []string{c.to},
		ReplyTo:     replyTo(s.Email),
		Subject:     c.Subject(s),
		TextBody:    text,
		HTMLBody:    html,
	}, nil
}

// replyTo returns email when it parses as an RFC 5322 address. The validator
// accepts shapes such as "a,b@c.d" that no mail library will put in a header;
// those messages go out without Reply-To.
func replyTo(email string) string {
	if _, err := mail.ParseAddress(email); err != nil {
		return ""
	}
	return email
}

// headerSafe collapses line breaks so user input cannot add header lines.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
