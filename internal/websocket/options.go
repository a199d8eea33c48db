package websocket

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsconn"
)

// StateChangeFn is called on every lifecycle transition.
//
// It runs synchronously while the connection's state lock is held, so transitions
// are reported in the order they happen. It must not call back into the connection.
type StateChangeFn = func(from, to wsconn.State)

// Options configures a connection.
type Options struct {
	// Logger receives connection events. Nil disables logging.
	Logger *zerolog.Logger

	// RateLimit throttles outbound Send calls. Nil disables throttling.
	RateLimit *RateLimitConfig

	// CloseTimeout bounds Close when the caller's context has no deadline. Zero means no bound.
	CloseTimeout time.Duration

	// OnStateChange is optional.
	OnStateChange StateChangeFn
}

// RateLimitConfig defines rate limiting configuration for outbound messages
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames may be sent per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

func (c *RateLimitConfig) limiter() *rate.Limiter {
	if c == nil || !c.Enabled {
		return nil
	}
	return rate.NewLimiter(c.MessagesPerSecond, c.Burst)
}
