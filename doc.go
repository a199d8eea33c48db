// Package wsconn provides a client-side WebSocket connection engine built around the RFC6455 closing handshake.
//
// A connection runs over an already-established transport that reads and writes decoded frames.
// The engine serializes writers and readers, tracks the close handshake, captures the close status
// exactly once, and turns any cancelled call into an abort of the whole connection.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/wsconn"
//	    "github.com/luciancaetano/wsconn/ws"
//	)
//
//	conn, err := ws.Dial(ctx, "ws://localhost:8080/ws", ws.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer conn.Dispose(context.Background())
//
//	conn.Send(ctx, []byte("ping"), wsconn.TextMessage, true)
//	conn.Close(ctx, wsconn.CloseNormalClosure, "bye")
//
// # Lifecycle
//
//	Open ──write close──▶ CloseSent ──read close──▶ Closed
//	Open ──read close───▶ CloseReceived ──write close──▶ Closed
//	any non-terminal state ──error or cancellation──▶ Aborted
//
// The close status and description are taken from the first close frame that is
// committed, whether it was sent or received. Later close frames never overwrite them.
//
// # Concurrency
//
//   - One Send and one Receive may be in flight at the same time
//   - A second overlapping Send (or Receive) fails with ErrConcurrentUse
//   - Close and CloseOutput wait for the write or read side instead of failing
//   - Nothing reads from the transport unless a caller is inside Receive or Close
//
// # Cancellation
//
// Every operation takes a context. If it is cancelled before the transport finishes,
// the connection is aborted and every other pending operation fails with ErrCanceled too.
// A timeout is a context with a deadline.
//
// # Teardown
//
// Once the connection is Closed or Aborted, the transport is released in the background.
// Its result is logged and returned by Dispose, so a failing teardown never goes unnoticed.
package wsconn
