package wsconn

import "context"

// Conn is a client-side WebSocket connection that owns the RFC6455 closing handshake.
//
// A Conn allows one outstanding Send and one outstanding Receive at the same time.
// Close and CloseOutput may be called concurrently with both; they wait for the
// side of the stream they need instead of failing.
//
// Example usage:
//
//	conn, err := ws.Dial(ctx, "ws://localhost:8080/ws", ws.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer conn.Dispose(context.Background())
//
//	conn.Send(ctx, []byte("hello"), wsconn.TextMessage, true)
//
//	buf := make([]byte, 4096)
//	res, err := conn.Receive(ctx, buf)
//	if res.MessageType == wsconn.CloseMessage {
//	    // peer closed its side; finish the handshake
//	    conn.Close(ctx, wsconn.CloseNormalClosure, "")
//	}
type Conn interface {
	// ID returns a unique identifier for the connection.
	ID() string

	// Send writes one data frame to the peer.
	//
	// endOfMessage marks the final fragment of a message. Send fails with
	// ErrInvalidState once the local side has sent its close frame, and with
	// ErrConcurrentUse when another Send is still in flight.
	//
	// Cancelling ctx before the frame is written aborts the whole connection.
	Send(ctx context.Context, payload []byte, messageType MessageType, endOfMessage bool) error

	// Receive reads the next frame into buf.
	//
	// When the peer's close frame is read, Receive returns a zero-length result
	// with MessageType == CloseMessage and no error. Callers detect closure by
	// inspecting the result.
	//
	// Example:
	//
	//	res, err := conn.Receive(ctx, buf)
	//	if err != nil {
	//	    return err
	//	}
	//	if res.MessageType == wsconn.CloseMessage {
	//	    log.Printf("peer closed: %d %q", res.CloseStatus, res.CloseDescription)
	//	}
	Receive(ctx context.Context, buf []byte) (ReceiveResult, error)

	// CloseOutput sends a close frame and returns without waiting for the peer's echo.
	//
	// Returns ErrClosedOutputAlready if a close frame was already sent.
	CloseOutput(ctx context.Context, status CloseStatus, description string) error

	// Close performs the full closing handshake: it sends a close frame if one
	// has not been sent and waits until the peer's close frame is read.
	//
	// Close is idempotent. Calling it on a closed connection is a no-op and
	// keeps the close status captured first.
	Close(ctx context.Context, status CloseStatus, description string) error

	// Abort terminates the connection immediately. Pending operations fail with ErrAborted.
	Abort()

	// Dispose aborts the connection if it is not closed yet and waits for the
	// transport teardown to finish, returning its error.
	Dispose(ctx context.Context) error

	// State returns the current lifecycle state.
	State() State

	// CloseStatus returns the close status captured from the first close frame
	// sent or received. ok is false until one exists.
	CloseStatus() (status CloseStatus, ok bool)

	// CloseDescription returns the description captured with CloseStatus.
	CloseDescription() string

	// Stats returns a snapshot of frame and byte counters.
	Stats() Stats
}

// FrameTransport is the decoded-frame view of an open WebSocket stream.
//
// Implementations must support one concurrent WriteFrame and one concurrent
// ReadFrame. Both must return promptly once ctx is done. Close releases the
// underlying resources and unblocks any pending call.
//
// A WriteFrame interrupted by ctx may leave a partial frame on the wire, and an
// implementation may close the stream to interrupt it. The connection is aborted
// whenever that happens, so the stream is never written to again.
//
// ReadFrame returns the peer's close frame once. Later calls wait until ctx is
// done or Close is called.
type FrameTransport interface {
	WriteFrame(ctx context.Context, frame Frame) error
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// Frame is one logical WebSocket frame.
type Frame struct {
	Type    MessageType
	Payload []byte
	Final   bool

	// Set only when Type == CloseMessage.
	CloseStatus      CloseStatus
	CloseDescription string
}

// ReceiveResult describes the outcome of a Receive call.
type ReceiveResult struct {
	MessageType  MessageType
	Count        int
	EndOfMessage bool

	// Set only when MessageType == CloseMessage.
	CloseStatus      CloseStatus
	CloseDescription string
}

// Stats is a snapshot of the traffic a connection has carried.
type Stats struct {
	FramesSent     int64
	FramesReceived int64
	BytesSent      int64
	BytesReceived  int64
}

// State is the lifecycle state of a connection.
type State int

const (
	StateOpen State = iota
	StateCloseSent
	StateCloseReceived
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseSent:
		return "close_sent"
	case StateCloseReceived:
		return "close_received"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateAborted
}

// MessageType identifies a frame's payload. Values match the RFC6455 opcodes.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	default:
		return "unknown"
	}
}

// IsData reports whether t carries application data.
func (t MessageType) IsData() bool {
	return t == TextMessage || t == BinaryMessage
}
