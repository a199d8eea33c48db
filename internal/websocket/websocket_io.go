package websocket

import (
	"context"
	"fmt"

	"github.com/luciancaetano/wsconn"
)

// Send writes one data frame.
func (c *Conn) Send(ctx context.Context, payload []byte, messageType wsconn.MessageType, endOfMessage bool) error {
	if !messageType.IsData() {
		return fmt.Errorf("send: %w: %v", wsconn.ErrInvalidMessageType, messageType)
	}
	if err := c.requireOutputOpen("send"); err != nil {
		return err
	}

	if !c.sending.CompareAndSwap(false, true) {
		return fmt.Errorf("send: %w", wsconn.ErrConcurrentUse)
	}
	defer c.sending.Store(false)

	opCtx, done := c.operationContext(ctx)
	defer done()

	if err := c.writeSlot.Acquire(opCtx); err != nil {
		return c.fail(ctx, "send", err)
	}
	defer c.writeSlot.Release()

	// A close frame may have been written while we waited for the slot.
	if err := c.requireOutputOpen("send"); err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(opCtx); err != nil {
			return c.fail(ctx, "send", fmt.Errorf("rate limit: %w: %w", context.DeadlineExceeded, err))
		}
	}

	frame := wsconn.Frame{Type: messageType, Payload: payload, Final: endOfMessage}
	if err := c.transport.WriteFrame(opCtx, frame); err != nil {
		return c.fail(ctx, "send", err)
	}
	if cause := c.abortCause(); cause != nil {
		return fmt.Errorf("send: %w", cause)
	}

	c.framesSent.Add(1)
	c.bytesSent.Add(int64(len(payload)))
	return nil
}

// Receive reads the next frame into buf. A close frame from the peer is reported
// through the result, not as an error.
func (c *Conn) Receive(ctx context.Context, buf []byte) (wsconn.ReceiveResult, error) {
	c.mu.Lock()
	if c.state.Terminal() {
		err := c.stateErrorLocked("receive")
		c.mu.Unlock()
		return wsconn.ReceiveResult{}, err
	}
	c.mu.Unlock()

	if !c.receiving.CompareAndSwap(false, true) {
		return wsconn.ReceiveResult{}, fmt.Errorf("receive: %w", wsconn.ErrConcurrentUse)
	}
	defer c.receiving.Store(false)

	opCtx, done := c.operationContext(ctx)
	defer done()

	if err := c.readSlot.Acquire(opCtx); err != nil {
		return wsconn.ReceiveResult{}, c.fail(ctx, "receive", err)
	}
	defer c.readSlot.Release()

	// Close may have consumed the peer's close frame while we waited.
	c.mu.Lock()
	switch c.state {
	case wsconn.StateClosed:
		res := wsconn.ReceiveResult{
			MessageType:      wsconn.CloseMessage,
			EndOfMessage:     true,
			CloseStatus:      c.closeStatus,
			CloseDescription: c.closeDescription,
		}
		c.mu.Unlock()
		return res, nil
	case wsconn.StateAborted:
		err := fmt.Errorf("receive: %w", c.abortErr)
		c.mu.Unlock()
		return wsconn.ReceiveResult{}, err
	}
	c.mu.Unlock()

	if len(c.leftover) > 0 {
		return c.drainLeftover(buf), nil
	}

	frame, err := c.transport.ReadFrame(opCtx)
	if err != nil {
		return wsconn.ReceiveResult{}, c.fail(ctx, "receive", err)
	}
	if cause := c.abortCause(); cause != nil {
		return wsconn.ReceiveResult{}, fmt.Errorf("receive: %w", cause)
	}
	c.framesReceived.Add(1)

	if frame.Type == wsconn.CloseMessage {
		if err := c.handleCloseFrame(frame); err != nil {
			return wsconn.ReceiveResult{}, c.fail(ctx, "receive", err)
		}
		return wsconn.ReceiveResult{
			MessageType:      wsconn.CloseMessage,
			EndOfMessage:     true,
			CloseStatus:      frame.CloseStatus,
			CloseDescription: frame.CloseDescription,
		}, nil
	}

	if err := c.checkDataFrame(frame); err != nil {
		return wsconn.ReceiveResult{}, c.fail(ctx, "receive", err)
	}
	c.bytesReceived.Add(int64(len(frame.Payload)))

	c.leftover = frame.Payload
	c.leftoverType = frame.Type
	c.leftoverFinal = frame.Final
	return c.drainLeftover(buf), nil
}

// drainLeftover copies as much of the pending data frame as fits into buf.
// Must be called by the read slot holder.
func (c *Conn) drainLeftover(buf []byte) wsconn.ReceiveResult {
	n := copy(buf, c.leftover)
	rest := c.leftover[n:]

	res := wsconn.ReceiveResult{
		MessageType:  c.leftoverType,
		Count:        n,
		EndOfMessage: c.leftoverFinal && len(rest) == 0,
	}

	if len(rest) == 0 {
		c.leftover = nil
	} else {
		c.leftover = append([]byte(nil), rest...)
	}
	return res
}

// checkDataFrame rejects frames that may not follow the current state.
func (c *Conn) checkDataFrame(frame wsconn.Frame) error {
	if !frame.Type.IsData() {
		return fmt.Errorf("%w: unexpected frame type %v", wsconn.ErrProtocol, frame.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == wsconn.StateCloseReceived {
		return fmt.Errorf("%w: data frame after close frame", wsconn.ErrProtocol)
	}
	return nil
}

func (c *Conn) requireOutputOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case wsconn.StateOpen, wsconn.StateCloseReceived:
		return nil
	default:
		return c.stateErrorLocked(op)
	}
}
