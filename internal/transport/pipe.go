// Package transport provides wsconn.FrameTransport implementations.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/luciancaetano/wsconn"
	"github.com/luciancaetano/wsconn/internal/protocol"
)

// ErrPipeClosed is returned by operations on a closed pipe end.
var ErrPipeClosed = errors.New("transport: pipe closed")

var _ wsconn.FrameTransport = (*PipeEnd)(nil)

// PipeEnd is one side of an in-memory frame stream created by Pipe.
// Frames are serialized with the protocol codec on write and decoded on read.
type PipeEnd struct {
	in         <-chan []byte
	out        chan<- []byte
	closed     chan struct{}
	peerClosed <-chan struct{}
	closeOnce  sync.Once
}

// Pipe returns two connected ends. buffer is the number of frames that may be
// in flight in each direction before WriteFrame blocks.
func Pipe(buffer int) (*PipeEnd, *PipeEnd) {
	aToB := make(chan []byte, buffer)
	bToA := make(chan []byte, buffer)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &PipeEnd{in: bToA, out: aToB, closed: aClosed, peerClosed: bClosed}
	b := &PipeEnd{in: aToB, out: bToA, closed: bClosed, peerClosed: aClosed}
	return a, b
}

// WriteFrame encodes and queues one frame for the peer.
func (p *PipeEnd) WriteFrame(ctx context.Context, frame wsconn.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	select {
	case <-p.closed:
		return ErrPipeClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrPipeClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	}
}

// ReadFrame waits for the next frame from the peer. Frames the peer queued
// before closing are still delivered.
func (p *PipeEnd) ReadFrame(ctx context.Context) (wsconn.Frame, error) {
	select {
	case <-p.closed:
		return wsconn.Frame{}, ErrPipeClosed
	default:
	}

	select {
	case data := <-p.in:
		return protocol.Decode(data)
	case <-ctx.Done():
		return wsconn.Frame{}, ctx.Err()
	case <-p.closed:
		return wsconn.Frame{}, ErrPipeClosed
	case <-p.peerClosed:
		select {
		case data := <-p.in:
			return protocol.Decode(data)
		default:
			return wsconn.Frame{}, io.EOF
		}
	}
}

// Close closes this end. Pending and future calls on both ends return errors.
func (p *PipeEnd) Close() error {
	err := ErrPipeClosed
	p.closeOnce.Do(func() {
		close(p.closed)
		err = nil
	})
	return err
}
