package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/internal/contact"
	"github.com/dalemusser/contactrelay/internal/mailer"
)

// appKeys are the contact relay settings. Legacy environment names from
// earlier deployments are listed in Env.
var appKeys = []config.AppKey{
	{Name: "mail_transport", Default: "smtp", Desc: `Mail transport: "smtp", "resend" or "log"`},
	{Name: "smtp_service", Default: "gmail", Desc: "SMTP provider preset (gmail, outlook, yahoo, zoho, icloud); empty to use smtp_host"},
	{Name: "smtp_host", Default: "", Desc: "SMTP host; overrides the preset"},
	{Name: "smtp_port", Default: 0, Desc: "SMTP port; overrides the preset (587 when unset)"},
	{Name: "smtp_username", Default: "", Desc: "SMTP username, also the default sender", Env: []string{"SMTP_USER"}},
	{Name: "smtp_password", Default: "", Desc: "SMTP password or app password", Env: []string{"SMTP_PASS"}, Secret: true},
	{Name: "smtp_use_ssl", Default: false, Desc: "Use implicit TLS instead of STARTTLS"},
	{Name: "smtp_timeout", Default: "30s", Desc: "Mail send timeout (SMTP dial/send, Resend API call)"},
	{Name: "resend_api_key", Default: "", Desc: "Resend API key (mail_transport=resend)", Secret: true},
	{Name: "from_address", Default: "", Desc: "Sender address; defaults to smtp_username"},
	{Name: "from_name", Default: "", Desc: "Sender display name; defaults to product_name"},
	{Name: "product_name", Default: contact.DefaultProductName, Desc: "Product name used in subjects and the HTML layout"},
	{Name: "email_template", Default: string(contact.LayoutBranded), Desc: `Notification layout: "branded" or "minimal"`},
	{Name: "contact_form_recipient", Default: "", Desc: "Address that receives submissions", Env: []string{"CONTACT_FORM_RECIPIENT"}},
	{Name: "receiver_email", Default: "", Desc: "Recipient override, wins over contact_form_recipient", Env: []string{"RECEIVER_EMAIL"}},
	{Name: "verify_transport_on_start", Default: false, Desc: "Check SMTP connectivity and credentials at startup"},
	{Name: "contact_rate_limit", Default: 0, Desc: "Contact submissions per minute per client IP (0 disables)"},
	{Name: "contact_rate_burst", Default: 0, Desc: "Rate limit burst (defaults to contact_rate_limit; memory store only)"},
	{Name: "contact_rate_store", Default: RateStoreMemory, Desc: `Rate limit state: "memory" (per process) or "redis" (shared)`},
	{Name: "redis_url", Default: "", Desc: "Redis URL for contact_rate_store=redis (redis://[:password@]host:port/db)", Secret: true},
}

// Rate limit stores.
const (
	RateStoreMemory = "memory"
	RateStoreRedis  = "redis"
)

// AppConfig is the resolved contact relay configuration.
type AppConfig struct {
	Mail mailer.Config

	FromAddress string
	FromName    string
	ProductName string
	Layout      contact.Layout
	Recipients  contact.Recipients

	VerifyTransportOnStart bool

	RateLimitPerMinute int
	RateLimitBurst     int
	RateLimitStore     string
	RedisURL           string
}

// appConfigFromValues maps loaded values onto AppConfig and checks them.
func appConfigFromValues(vals config.AppConfigValues) (AppConfig, error) {
	var errs []error

	kind, err := mailer.ParseKind(vals.String("mail_transport"))
	if err != nil {
		errs = append(errs, err)
	}
	layout, err := contact.ParseLayout(vals.String("email_template"))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := AppConfig{
		Mail: mailer.Config{
			Kind: kind,
			SMTP: mailer.SMTPConfig{
				Service:  strings.TrimSpace(vals.String("smtp_service")),
				Host:     strings.TrimSpace(vals.String("smtp_host")),
				Port:     vals.Int("smtp_port"),
				Username: strings.TrimSpace(vals.String("smtp_username")),
				Password: vals.String("smtp_password"),
				UseSSL:   vals.Bool("smtp_use_ssl"),
				Timeout:  vals.Duration("smtp_timeout", 30*time.Second),
			},
			Resend: mailer.ResendConfig{
				APIKey:  strings.TrimSpace(vals.String("resend_api_key")),
				Timeout: vals.Duration("smtp_timeout", 30*time.Second),
			},
		},
		FromAddress: strings.TrimSpace(vals.String("from_address")),
		FromName:    strings.TrimSpace(vals.String("from_name")),
		ProductName: strings.TrimSpace(vals.String("product_name")),
		Layout:      layout,
		Recipients: contact.Recipients{
			Override:   strings.TrimSpace(vals.String("receiver_email")),
			Configured: strings.TrimSpace(vals.String("contact_form_recipient")),
			Fallback:   contact.DefaultRecipient,
		},
		VerifyTransportOnStart: vals.Bool("verify_transport_on_start"),
		RateLimitPerMinute:     vals.Int("contact_rate_limit"),
		RateLimitBurst:         vals.Int("contact_rate_burst"),
		RateLimitStore:         strings.ToLower(strings.TrimSpace(vals.String("contact_rate_store"))),
		RedisURL:               strings.TrimSpace(vals.String("redis_url")),
	}
	if cfg.RateLimitStore == "" {
		cfg.RateLimitStore = RateStoreMemory
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = cfg.Mail.SMTP.Username
	}

	if cfg.FromAddress == "" {
		errs = append(errs, errors.New("from_address (or smtp_username / SMTP_USER) is required"))
	}
	switch kind {
	case mailer.KindSMTP:
		if cfg.Mail.SMTP.Username != "" && cfg.Mail.SMTP.Password == "" {
			errs = append(errs, errors.New("smtp_password (or SMTP_PASS) is required when smtp_username is set"))
		}
	case mailer.KindResend:
		if cfg.Mail.Resend.APIKey == "" {
			errs = append(errs, errors.New("resend_api_key is required when mail_transport=resend"))
		}
	}
	if cfg.RateLimitPerMinute < 0 || cfg.RateLimitBurst < 0 {
		errs = append(errs, errors.New("contact_rate_limit and contact_rate_burst must be >= 0"))
	}
	switch cfg.RateLimitStore {
	case RateStoreMemory:
	case RateStoreRedis:
		if cfg.RateLimitPerMinute > 0 && cfg.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required when contact_rate_store=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("contact_rate_store %q is not memory or redis", cfg.RateLimitStore))
	}

	if len(errs) > 0 {
		return AppConfig{}, fmt.Errorf("app configuration errors: %w", errors.Join(errs...))
	}
	return cfg, nil
}
