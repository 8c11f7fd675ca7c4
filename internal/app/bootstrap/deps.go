package bootstrap

import (
	"github.com/dalemusser/contactrelay/internal/contact"
	"github.com/dalemusser/contactrelay/internal/mailer"
	"github.com/dalemusser/contactrelay/pantry/ratelimit"
	"github.com/redis/go-redis/v9"
)

// Deps holds the backends built once at startup and shared by all requests.
type Deps struct {
	Transport mailer.Transport
	Composer  *contact.Composer

	// Limiter is nil when contact rate limiting is disabled. It is a
	// *ratelimit.KeyLimiter or a *ratelimit.RedisStore.
	Limiter ratelimit.Store

	// Redis backs Limiter when contact_rate_store=redis.
	Redis *redis.Client
}
