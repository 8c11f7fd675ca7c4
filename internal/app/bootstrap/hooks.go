package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/contactrelay/app"
	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/httputil"
	"github.com/dalemusser/contactrelay/internal/contact"
	"github.com/dalemusser/contactrelay/internal/mailer"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/pantry/health"
	"github.com/dalemusser/contactrelay/pantry/ratelimit"
	"github.com/dalemusser/contactrelay/router"
	"go.uber.org/zap"
)

const (
	// limiterTTL is how long an idle client IP keeps its bucket.
	limiterTTL = 10 * time.Minute

	redisConnectTimeout = 5 * time.Second

	// readyCacheTTL spaces out SMTP logins triggered by /ready.
	readyCacheTTL = 30 * time.Second
)

// OutcomeLimited labels submissions rejected by the rate limiter.
const OutcomeLimited = "limited"

// LoadConfig loads the core config and the contact relay settings.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, vals, err := config.LoadWithAppConfig(logger, config.EnvPrefix, appKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := appConfigFromValues(vals)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

// Connect builds the mail transport, the composer and the optional limiter.
func Connect(ctx context.Context, _ *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (Deps, error) {
	transport, err := mailer.New(appCfg.Mail, logger)
	if err != nil {
		return Deps{}, fmt.Errorf("mail transport: %w", err)
	}

	composer, err := contact.NewComposer(contact.ComposerConfig{
		ProductName: appCfg.ProductName,
		FromName:    appCfg.FromName,
		FromAddress: appCfg.FromAddress,
		Layout:      appCfg.Layout,
		Recipients:  appCfg.Recipients,
	})
	if err != nil {
		return Deps{}, err
	}

	to, source := composer.Recipient()
	if strings.TrimSpace(appCfg.Recipients.Configured) == "" {
		logger.Warn("contact_form_recipient is not set; submissions go to the fallback chain",
			zap.String("resolved_to", to),
			zap.String("source", string(source)))
	}
	logger.Info("contact relay ready",
		zap.String("transport", transport.Name()),
		zap.String("recipient", to),
		zap.String("recipient_source", string(source)),
		zap.String("layout", string(appCfg.Layout)))
	if appCfg.Mail.Kind == mailer.KindLog {
		logger.Warn("mail_transport=log: submissions are logged, not delivered")
	}

	deps := Deps{Transport: transport, Composer: composer}
	if appCfg.RateLimitPerMinute <= 0 {
		return deps, nil
	}

	if appCfg.RateLimitStore == RateStoreRedis {
		client, err := ratelimit.ConnectRedis(ctx, appCfg.RedisURL, redisConnectTimeout)
		if err != nil {
			return Deps{}, err
		}
		store, err := ratelimit.NewRedisStore(client, appCfg.RateLimitPerMinute, time.Minute, "")
		if err != nil {
			_ = client.Close()
			return Deps{}, err
		}
		deps.Redis = client
		deps.Limiter = store
		logger.Info("contact rate limit enabled",
			zap.String("store", RateStoreRedis),
			zap.Int("per_minute", appCfg.RateLimitPerMinute))
		return deps, nil
	}

	burst := appCfg.RateLimitBurst
	if burst <= 0 {
		burst = appCfg.RateLimitPerMinute
	}
	deps.Limiter = ratelimit.NewKeyLimiter(float64(appCfg.RateLimitPerMinute)/60, burst, limiterTTL)
	logger.Info("contact rate limit enabled",
		zap.String("store", RateStoreMemory),
		zap.Int("per_minute", appCfg.RateLimitPerMinute),
		zap.Int("burst", burst))
	return deps, nil
}

// Verify checks transport connectivity when verify_transport_on_start is set
// and the transport supports it.
func Verify(ctx context.Context, _ *config.CoreConfig, appCfg AppConfig, deps Deps, logger *zap.Logger) error {
	if !appCfg.VerifyTransportOnStart {
		return nil
	}
	v, ok := deps.Transport.(mailer.Verifier)
	if !ok {
		logger.Info("transport has no connectivity check; skipping", zap.String("transport", deps.Transport.Name()))
		return nil
	}
	if err := v.Verify(ctx); err != nil {
		return fmt.Errorf("mail transport %s: %w", deps.Transport.Name(), err)
	}
	logger.Info("mail transport verified", zap.String("transport", deps.Transport.Name()))
	return nil
}

// BuildHandler mounts /health, /ready, /metrics and POST /api/contact.
func BuildHandler(coreCfg *config.CoreConfig, _ AppConfig, deps Deps, logger *zap.Logger) (http.Handler, error) {
	if deps.Transport == nil || deps.Composer == nil {
		return nil, errors.New("bootstrap: transport and composer are required")
	}
	httputil.SetLogger(logger)

	r := router.New(coreCfg, logger)

	health.Mount(r, logger)
	checks := map[string]health.Check{}
	if v, ok := deps.Transport.(mailer.Verifier); ok {
		checks["mail"] = health.Cached(v.Verify, readyCacheTTL)
	}
	if rs, ok := deps.Limiter.(*ratelimit.RedisStore); ok {
		checks["redis"] = health.Cached(rs.Ping, readyCacheTTL)
	}
	if len(checks) > 0 {
		health.MountAt(r, "/ready", checks, logger)
	}
	if coreCfg.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	var mw []func(http.Handler) http.Handler
	if deps.Limiter != nil {
		mw = append(mw, ratelimit.MiddlewareWithLimiter(deps.Limiter, ratelimit.Config{
			OnLimited: func(r *http.Request, key string) {
				metrics.ContactOutcome(OutcomeLimited)
				logger.Warn("contact submission rate limited", zap.String("client", key))
			},
			OnError: func(_ *http.Request, err error) {
				logger.Error("rate limit store failed; allowing request", zap.Error(err))
			},
		}))
	}

	h := contact.NewHandler(deps.Composer, deps.Transport, logger,
		contact.WithObserver(func(o contact.Outcome) { metrics.ContactOutcome(string(o)) }))
	h.Mount(r, mw...)

	return r, nil
}

// Close stops the rate limiter sweep and closes Redis.
func Close(deps Deps) {
	if kl, ok := deps.Limiter.(*ratelimit.KeyLimiter); ok {
		kl.Close()
	}
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
}

// Hooks wires the contact relay into the app lifecycle.
var Hooks = app.Hooks[AppConfig, Deps]{
	Name:         "contactrelay",
	LoadConfig:   LoadConfig,
	Connect:      Connect,
	Verify:       Verify,
	BuildHandler: BuildHandler,
	Close:        Close,
}
