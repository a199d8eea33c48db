// Command wsclient sends one message over a WebSocket, prints the reply and
// performs the closing handshake.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/wsconn"
	"github.com/luciancaetano/wsconn/internal/config"
	"github.com/luciancaetano/wsconn/internal/logger"
	"github.com/luciancaetano/wsconn/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a .yaml, .yml or .toml config file")
		url        = flag.String("url", "", "server URL, overrides the config file")
		message    = flag.String("message", "hello", "text message to send")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall session timeout")
	)
	flag.Parse()

	if err := run(*configPath, *url, *message, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "wsclient:", err)
		os.Exit(1)
	}
}

func run(configPath, url, message string, timeout time.Duration) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if url != "" {
		cfg.URL = url
	}
	if cfg.URL == "" {
		return fmt.Errorf("no url given")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := ws.Dial(ctx, cfg.URL, ws.OptionsFromConfig(cfg, &log))
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Dispose(context.Background()); err != nil {
			log.Error().Err(err).Msg("dispose")
		}
	}()

	log.Info().Str("url", cfg.URL).Str("conn_id", conn.ID()).Msg("connected")

	if err := conn.Send(ctx, []byte(message), wsconn.TextMessage, true); err != nil {
		return err
	}

	reply, closed, err := receiveMessage(ctx, conn)
	if err != nil {
		return err
	}
	if !closed {
		fmt.Println(string(reply))
	}

	if err := conn.Close(ctx, wsconn.CloseNormalClosure, ""); err != nil {
		return err
	}

	status, _ := conn.CloseStatus()
	logClosed(log, conn, status)
	return nil
}

// receiveMessage reads one whole message. closed is true if the peer closed instead.
func receiveMessage(ctx context.Context, conn wsconn.Conn) (msg []byte, closed bool, err error) {
	buf := make([]byte, 4096)
	for {
		res, err := conn.Receive(ctx, buf)
		if err != nil {
			return nil, false, err
		}
		if res.MessageType == wsconn.CloseMessage {
			return nil, true, nil
		}
		msg = append(msg, buf[:res.Count]...)
		if res.EndOfMessage {
			return msg, false, nil
		}
	}
}

func logClosed(log zerolog.Logger, conn wsconn.Conn, status wsconn.CloseStatus) {
	stats := conn.Stats()
	log.Info().
		Uint16("status", uint16(status)).
		Str("description", conn.CloseDescription()).
		Int64("frames_sent", stats.FramesSent).
		Int64("frames_received", stats.FramesReceived).
		Msg("closed")
}
