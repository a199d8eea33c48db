package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/wsconn"
)

var _ wsconn.FrameTransport = (*Gorilla)(nil)

// GorillaConfig tunes the gorilla adapter.
type GorillaConfig struct {
	// WriteTimeout bounds a frame write when the context has no deadline. Zero means no bound.
	WriteTimeout time.Duration
	// ReadLimit is the maximum message size in bytes. Zero keeps gorilla's default.
	ReadLimit int64
}

// Gorilla adapts a *websocket.Conn to wsconn.FrameTransport.
//
// Gorilla reassembles fragmented messages, so every frame returned by ReadFrame
// is a complete message with Final set. Outbound fragments are streamed through
// a single message writer until the final one.
//
// Cancelling a WriteFrame closes the socket: gorilla applies write deadlines only
// when a write starts, so there is no other way to interrupt one in progress.
type Gorilla struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// Open message writer while a fragmented message is being sent. Write side only.
	writer io.WriteCloser

	// Gorilla keeps returning the peer's close error once one was read.
	// Read side only.
	closeRead bool

	interrupted atomic.Bool
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewGorilla wraps conn. It replaces gorilla's close handler so that close frames
// are surfaced to the caller instead of being echoed automatically.
func NewGorilla(conn *websocket.Conn, cfg GorillaConfig) *Gorilla {
	conn.SetCloseHandler(func(code int, text string) error {
		return nil
	})
	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}

	return &Gorilla{
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		closed:       make(chan struct{}),
	}
}

// WriteFrame sends one frame.
func (g *Gorilla) WriteFrame(ctx context.Context, frame wsconn.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := g.writeDeadline(ctx)
	stop := context.AfterFunc(ctx, func() {
		g.interrupted.Store(true)
		_ = g.conn.NetConn().Close()
	})
	defer stop()

	if frame.Type == wsconn.CloseMessage {
		message := websocket.FormatCloseMessage(int(frame.CloseStatus), frame.CloseDescription)
		return contextError(ctx, g.conn.WriteControl(websocket.CloseMessage, message, deadline))
	}

	if err := g.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	if g.writer == nil {
		w, err := g.conn.NextWriter(int(frame.Type))
		if err != nil {
			return contextError(ctx, err)
		}
		g.writer = w
	}

	if _, err := g.writer.Write(frame.Payload); err != nil {
		g.writer = nil
		return contextError(ctx, err)
	}

	if frame.Final {
		err := g.writer.Close()
		g.writer = nil
		return contextError(ctx, err)
	}
	return nil
}

// ReadFrame reads the next message. A close frame from the peer is returned as a
// CloseMessage frame, not as an error, and only once. Later calls wait until ctx
// is done or the transport is closed.
func (g *Gorilla) ReadFrame(ctx context.Context) (wsconn.Frame, error) {
	if err := ctx.Err(); err != nil {
		return wsconn.Frame{}, err
	}

	if g.closeRead {
		select {
		case <-ctx.Done():
			return wsconn.Frame{}, ctx.Err()
		case <-g.closed:
			return wsconn.Frame{}, net.ErrClosed
		}
	}

	deadline, _ := ctx.Deadline()
	if err := g.conn.SetReadDeadline(deadline); err != nil {
		return wsconn.Frame{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = g.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := g.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		// Gorilla also reports an unexpected EOF as CloseAbnormalClosure; that one is a transport failure.
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
			g.closeRead = true
			return wsconn.Frame{
				Type:             wsconn.CloseMessage,
				Final:            true,
				CloseStatus:      wsconn.CloseStatus(closeErr.Code),
				CloseDescription: closeErr.Text,
			}, nil
		}
		return wsconn.Frame{}, readError(ctx, err)
	}

	return wsconn.Frame{
		Type:    wsconn.MessageType(messageType),
		Payload: data,
		Final:   true,
	}, nil
}

// Close closes the underlying network connection without sending a close frame.
func (g *Gorilla) Close() error {
	g.closeOnce.Do(func() {
		close(g.closed)
	})

	err := g.conn.Close()
	if errors.Is(err, net.ErrClosed) && g.interrupted.Load() {
		// Already closed by a cancelled write.
		return nil
	}
	return err
}

func (g *Gorilla) writeDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if g.writeTimeout > 0 {
		return time.Now().Add(g.writeTimeout)
	}
	return time.Time{}
}

// readError keeps socket failures as they are and marks everything else gorilla
// rejects (bad close codes, invalid UTF-8, oversized or malformed frames) as a
// protocol violation.
func readError(ctx context.Context, err error) error {
	err = contextError(ctx, err)

	var (
		netErr   net.Error
		closeErr *websocket.CloseError
	)
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr),
		errors.As(err, &closeErr):
		return err
	}
	return fmt.Errorf("%w: %w", wsconn.ErrProtocol, err)
}

// contextError reports ctx's error in place of an I/O error caused by a deadline
// derived from ctx. The socket deadline can fire just before ctx.Err turns non-nil.
func contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}
