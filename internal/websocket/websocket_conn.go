package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsconn"
	"github.com/luciancaetano/wsconn/internal/arbiter"
)

var _ wsconn.Conn = (*Conn)(nil)

// transitions lists the states reachable from each non-terminal state.
var transitions = map[wsconn.State][]wsconn.State{
	wsconn.StateOpen:          {wsconn.StateCloseSent, wsconn.StateCloseReceived, wsconn.StateAborted},
	wsconn.StateCloseSent:     {wsconn.StateClosed, wsconn.StateAborted},
	wsconn.StateCloseReceived: {wsconn.StateClosed, wsconn.StateAborted},
}

func canTransition(from, to wsconn.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Conn implements wsconn.Conn on top of a wsconn.FrameTransport.
type Conn struct {
	id            string
	transport     wsconn.FrameTransport
	log           zerolog.Logger
	limiter       *rate.Limiter
	closeTimeout  time.Duration
	onStateChange StateChangeFn

	writeSlot *arbiter.Slot
	readSlot  *arbiter.Slot
	sending   atomic.Bool
	receiving atomic.Bool

	// Cancelled with the abort cause; every in-flight operation context follows it.
	abortCtx    context.Context
	abortCancel context.CancelCauseFunc

	mu               sync.Mutex
	state            wsconn.State
	abortErr         error
	closeStatus      wsconn.CloseStatus
	hasCloseStatus   bool
	closeDescription string

	// Unread tail of the last data frame. Owned by the read slot holder.
	leftover      []byte
	leftoverType  wsconn.MessageType
	leftoverFinal bool

	framesSent     atomic.Int64
	framesReceived atomic.Int64
	bytesSent      atomic.Int64
	bytesReceived  atomic.Int64

	teardown *supervisor
}

// NewConn wraps an open transport. The connection starts in StateOpen.
func NewConn(transport wsconn.FrameTransport, opts Options) *Conn {
	id := uuid.New().String()

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("conn_id", id).Logger()
	}

	abortCtx, abortCancel := context.WithCancelCause(context.Background())

	return &Conn{
		id:            id,
		transport:     transport,
		log:           log,
		limiter:       opts.RateLimit.limiter(),
		closeTimeout:  opts.CloseTimeout,
		onStateChange: opts.OnStateChange,
		writeSlot:     arbiter.NewSlot(),
		readSlot:      arbiter.NewSlot(),
		abortCtx:      abortCtx,
		abortCancel:   abortCancel,
		state:         wsconn.StateOpen,
		teardown:      newSupervisor(log),
	}
}

// ID returns a unique identifier for the connection
func (c *Conn) ID() string {
	return c.id
}

// State returns the current lifecycle state
func (c *Conn) State() wsconn.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CloseStatus returns the first close status sent or received
func (c *Conn) CloseStatus() (wsconn.CloseStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeStatus, c.hasCloseStatus
}

// CloseDescription returns the description captured with CloseStatus
func (c *Conn) CloseDescription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeDescription
}

// Stats returns a snapshot of the traffic counters
func (c *Conn) Stats() wsconn.Stats {
	return wsconn.Stats{
		FramesSent:     c.framesSent.Load(),
		FramesReceived: c.framesReceived.Load(),
		BytesSent:      c.bytesSent.Load(),
		BytesReceived:  c.bytesReceived.Load(),
	}
}

// Abort terminates the connection. Pending operations fail with wsconn.ErrAborted.
func (c *Conn) Abort() {
	c.abort(wsconn.ErrAborted)
}

// Dispose aborts the connection unless it already reached a terminal state, then
// waits for the transport teardown and returns its outcome.
func (c *Conn) Dispose(ctx context.Context) error {
	c.abort(wsconn.ErrAborted)
	return c.teardown.Wait(ctx)
}

// transitionLocked moves the state machine forward. c.mu must be held.
func (c *Conn) transitionLocked(to wsconn.State) bool {
	from := c.state
	if !canTransition(from, to) {
		return false
	}
	c.state = to

	c.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state transition")
	if c.onStateChange != nil {
		c.onStateChange(from, to)
	}

	if to.Terminal() {
		c.log.Debug().
			Int64("frames_sent", c.framesSent.Load()).
			Int64("frames_received", c.framesReceived.Load()).
			Str("sent", humanize.Bytes(uint64(c.bytesSent.Load()))).
			Str("received", humanize.Bytes(uint64(c.bytesReceived.Load()))).
			Msg("connection finished")
		c.teardown.Go(c.transport.Close)
	}
	return true
}

// captureLocked records the close status unless one was already recorded. c.mu must be held.
func (c *Conn) captureLocked(status wsconn.CloseStatus, description string) {
	if c.hasCloseStatus {
		return
	}
	c.closeStatus = status
	c.closeDescription = description
	c.hasCloseStatus = true
}

// abort moves a live connection to StateAborted and wakes every pending operation.
func (c *Conn) abort(cause error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.abortErr = cause
	c.transitionLocked(wsconn.StateAborted)
	c.mu.Unlock()

	c.log.Warn().Err(cause).Msg("connection aborted")
	c.abortCancel(cause)
}

func (c *Conn) abortCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortErr
}

// operationContext derives the context for one call: it is done when either the
// caller's ctx is done or the connection aborts.
func (c *Conn) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.abortCtx, func() {
		cancel(context.Cause(c.abortCtx))
	})
	return opCtx, func() {
		stop()
		cancel(nil)
	}
}

// fail turns an error raised inside an operation into the connection's abort cause.
//
// If the connection was already aborted by someone else, the caller gets that cause,
// so every operation pending at abort time reports the same error.
func (c *Conn) fail(ctx context.Context, op string, err error) error {
	c.mu.Lock()
	state, abortErr := c.state, c.abortErr
	c.mu.Unlock()

	switch {
	case abortErr != nil:
		return fmt.Errorf("%s: %w", op, abortErr)
	case state == wsconn.StateClosed:
		// Teardown after a clean close interrupted this call.
		return fmt.Errorf("%s: %w (state %s): %w", op, wsconn.ErrInvalidState, state, err)
	}

	var cause error
	switch {
	case ctx.Err() != nil:
		cause = fmt.Errorf("%w: %w", wsconn.ErrCanceled, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		cause = fmt.Errorf("%w: %w", wsconn.ErrCanceled, err)
	case errors.Is(err, wsconn.ErrProtocol), errors.Is(err, wsconn.ErrTransport):
		cause = err
	default:
		cause = fmt.Errorf("%w: %w", wsconn.ErrTransport, err)
	}

	c.abort(cause)
	if winner := c.abortCause(); winner != nil {
		cause = winner
	}
	return fmt.Errorf("%s: %w", op, cause)
}

// stateErrorLocked builds the error for an operation the current state forbids. c.mu must be held.
func (c *Conn) stateErrorLocked(op string) error {
	if c.state == wsconn.StateAborted {
		return fmt.Errorf("%s: %w: %w", op, wsconn.ErrInvalidState, wsconn.ErrAborted)
	}
	return fmt.Errorf("%s: %w (state %s)", op, wsconn.ErrInvalidState, c.state)
}
