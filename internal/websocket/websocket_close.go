package websocket

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/luciancaetano/wsconn"
	"github.com/luciancaetano/wsconn/internal/protocol"
)

// CloseOutput sends a close frame without waiting for the peer's.
func (c *Conn) CloseOutput(ctx context.Context, status wsconn.CloseStatus, description string) error {
	if err := validateClose(status, description); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	c.mu.Lock()
	switch c.state {
	case wsconn.StateAborted:
		err := c.stateErrorLocked("close output")
		c.mu.Unlock()
		return err
	case wsconn.StateCloseSent, wsconn.StateClosed:
		c.mu.Unlock()
		return fmt.Errorf("close output: %w", wsconn.ErrClosedOutputAlready)
	}
	c.mu.Unlock()

	opCtx, done := c.operationContext(ctx)
	defer done()

	sent, err := c.writeClose(ctx, opCtx, "close output", status, description)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("close output: %w", wsconn.ErrClosedOutputAlready)
	}
	return nil
}

// Close completes the closing handshake. It is a no-op once the connection is closed.
func (c *Conn) Close(ctx context.Context, status wsconn.CloseStatus, description string) error {
	if err := validateClose(status, description); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	c.mu.Lock()
	state := c.state
	if state == wsconn.StateAborted {
		err := c.stateErrorLocked("close")
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if state == wsconn.StateClosed {
		return nil
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.closeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.closeTimeout)
		defer cancel()
	}

	opCtx, done := c.operationContext(ctx)
	defer done()

	if state == wsconn.StateOpen || state == wsconn.StateCloseReceived {
		if _, err := c.writeClose(ctx, opCtx, "close", status, description); err != nil {
			return err
		}
	}

	for {
		c.mu.Lock()
		state, cause := c.state, c.abortErr
		c.mu.Unlock()

		switch state {
		case wsconn.StateClosed:
			return nil
		case wsconn.StateAborted:
			return fmt.Errorf("close: %w", cause)
		}

		if err := c.awaitPeerClose(ctx, opCtx); err != nil {
			return err
		}
	}
}

// writeClose writes a close frame unless one has been written already.
// It reports whether this call wrote it.
func (c *Conn) writeClose(ctx, opCtx context.Context, op string, status wsconn.CloseStatus, description string) (bool, error) {
	if err := c.writeSlot.Acquire(opCtx); err != nil {
		return false, c.fail(ctx, op, err)
	}
	defer c.writeSlot.Release()

	c.mu.Lock()
	state, cause := c.state, c.abortErr
	c.mu.Unlock()

	switch state {
	case wsconn.StateAborted:
		return false, fmt.Errorf("%s: %w", op, cause)
	case wsconn.StateCloseSent, wsconn.StateClosed:
		return false, nil
	}

	frame := wsconn.Frame{
		Type:             wsconn.CloseMessage,
		Final:            true,
		CloseStatus:      status,
		CloseDescription: description,
	}
	if err := c.transport.WriteFrame(opCtx, frame); err != nil {
		return false, c.fail(ctx, op, err)
	}
	c.framesSent.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case wsconn.StateOpen:
		c.captureLocked(status, description)
		c.transitionLocked(wsconn.StateCloseSent)
	case wsconn.StateCloseReceived:
		c.captureLocked(status, description)
		c.transitionLocked(wsconn.StateClosed)
	case wsconn.StateAborted:
		return false, fmt.Errorf("%s: %w", op, c.abortErr)
	}
	return true, nil
}

// awaitPeerClose performs one read on behalf of Close, discarding data frames.
// If another caller holds the read side, it waits and then re-checks the state
// instead of reading.
func (c *Conn) awaitPeerClose(ctx, opCtx context.Context) error {
	if err := c.readSlot.Acquire(opCtx); err != nil {
		return c.fail(ctx, "close", err)
	}
	defer c.readSlot.Release()

	if c.State().Terminal() {
		return nil
	}
	c.leftover = nil

	frame, err := c.transport.ReadFrame(opCtx)
	if err != nil {
		return c.fail(ctx, "close", err)
	}
	c.framesReceived.Add(1)

	if frame.Type == wsconn.CloseMessage {
		if err := c.handleCloseFrame(frame); err != nil {
			return c.fail(ctx, "close", err)
		}
		return nil
	}

	if err := c.checkDataFrame(frame); err != nil {
		return c.fail(ctx, "close", err)
	}
	c.bytesReceived.Add(int64(len(frame.Payload)))
	return nil
}

// handleCloseFrame applies a close frame read from the peer.
func (c *Conn) handleCloseFrame(frame wsconn.Frame) error {
	if !frame.CloseStatus.Reportable() {
		return fmt.Errorf("%w: invalid close status %d", wsconn.ErrProtocol, frame.CloseStatus)
	}
	if len(frame.CloseDescription) > wsconn.MaxCloseDescriptionLength || !utf8.ValidString(frame.CloseDescription) {
		return fmt.Errorf("%w: invalid close description", wsconn.ErrProtocol)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case wsconn.StateOpen:
		c.captureLocked(frame.CloseStatus, frame.CloseDescription)
		c.transitionLocked(wsconn.StateCloseReceived)
	case wsconn.StateCloseSent:
		c.captureLocked(frame.CloseStatus, frame.CloseDescription)
		c.transitionLocked(wsconn.StateClosed)
	default:
		return fmt.Errorf("%w: duplicate close frame in state %s", wsconn.ErrProtocol, c.state)
	}

	c.log.Debug().
		Uint16("status", uint16(frame.CloseStatus)).
		Str("description", frame.CloseDescription).
		Msg("close frame received")
	return nil
}

func validateClose(status wsconn.CloseStatus, description string) error {
	if err := protocol.ValidateCloseDescription(description); err != nil {
		return err
	}
	if !status.Sendable() {
		return fmt.Errorf("%w: %d", wsconn.ErrInvalidCloseStatus, status)
	}
	return nil
}
