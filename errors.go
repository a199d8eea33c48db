package wsconn

import "errors"

// Validation errors. They are returned before anything touches the transport
// and leave the connection state unchanged.
var (
	ErrInvalidCloseDescription = errors.New("close description exceeds 123 bytes or is not valid UTF-8")
	ErrInvalidCloseStatus      = errors.New("close status may not be sent")
	ErrInvalidMessageType      = errors.New("message type must be text or binary")
)

// Local usage errors. The connection state is unchanged.
var (
	ErrInvalidState        = errors.New("operation not valid in current connection state")
	ErrClosedOutputAlready = errors.New("close frame already sent")
	ErrConcurrentUse       = errors.New("concurrent operation of the same kind already in progress")
)

// Terminal errors. The connection is aborted when one of these occurs.
var (
	ErrProtocol  = errors.New("websocket protocol violation")
	ErrTransport = errors.New("websocket transport failure")
	ErrCanceled  = errors.New("operation canceled")
	ErrAborted   = errors.New("connection aborted")
)
