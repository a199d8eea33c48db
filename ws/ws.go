// Package ws is the public entry point for creating wsconn connections.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsconn"
	"github.com/luciancaetano/wsconn/internal/config"
	"github.com/luciancaetano/wsconn/internal/transport"
	iws "github.com/luciancaetano/wsconn/internal/websocket"
)

type Options = iws.Options
type RateLimitConfig = iws.RateLimitConfig
type StateChangeFn = iws.StateChangeFn
type Config = config.Config
type PipeEnd = transport.PipeEnd

// DialOptions configures Dial.
type DialOptions struct {
	Options

	// HandshakeTimeout bounds the opening handshake. Zero means no bound beyond ctx.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame write when the caller's context has no deadline.
	WriteTimeout time.Duration
	// ReadBufferSize and WriteBufferSize size gorilla's I/O buffers. Zero keeps gorilla's defaults.
	ReadBufferSize  int
	WriteBufferSize int
	// ReadLimit caps inbound message size in bytes. Zero keeps gorilla's default.
	ReadLimit int64
	// Header is sent with the handshake request.
	Header http.Header
}

// New wraps an already open frame transport.
//
// Example:
//
//	local, peer := ws.Pipe(16)
//	conn := ws.New(local, ws.Options{})
func New(t wsconn.FrameTransport, opts Options) wsconn.Conn {
	return iws.NewConn(t, opts)
}

// Wrap takes ownership of a connected gorilla connection.
func Wrap(conn *websocket.Conn, opts Options) wsconn.Conn {
	return iws.NewConn(transport.NewGorilla(conn, transport.GorillaConfig{}), opts)
}

// Dial opens a WebSocket connection to url and returns it in StateOpen.
//
// Example:
//
//	conn, err := ws.Dial(ctx, "ws://localhost:8080/ws", ws.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer conn.Dispose(context.Background())
func Dial(ctx context.Context, url string, opts DialOptions) (wsconn.Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		ReadBufferSize:   opts.ReadBufferSize,
		WriteBufferSize:  opts.WriteBufferSize,
	}

	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := transport.NewGorilla(conn, transport.GorillaConfig{
		WriteTimeout: opts.WriteTimeout,
		ReadLimit:    opts.ReadLimit,
	})
	return iws.NewConn(t, opts.Options), nil
}

// Pipe returns two connected in-memory transports. Wrap one end with New and
// drive the other end directly.
func Pipe(buffer int) (*PipeEnd, *PipeEnd) {
	return transport.Pipe(buffer)
}

// DefaultOptions returns dial options built from the default configuration, without logging.
func DefaultOptions() DialOptions {
	return OptionsFromConfig(config.Default(), nil)
}

// OptionsFromConfig maps a loaded configuration onto dial options. log may be nil.
func OptionsFromConfig(cfg *Config, log *zerolog.Logger) DialOptions {
	rl := NoRateLimit()
	if cfg.RateLimit.Enabled {
		rl = &RateLimitConfig{
			MessagesPerSecond: rate.Limit(cfg.RateLimit.MessagesPerSecond),
			Burst:             cfg.RateLimit.Burst,
			Enabled:           true,
		}
	}

	return DialOptions{
		Options: Options{
			Logger:       log,
			RateLimit:    rl,
			CloseTimeout: cfg.CloseTimeout,
		},
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		ReadLimit:        cfg.ReadLimit,
	}
}

// LoadConfig reads a YAML or TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return iws.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return iws.NoRateLimit()
}
