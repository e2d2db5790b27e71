// Package transport provides the byte-oriented bus primitive the OCC
// protocol engine is built on: synchronous "send N bytes" / "receive N
// bytes" exchanges with a fixed peer address. No framing, no retries.
package transport

import "context"

// Transport is the raw bus boundary. Implementations report the number of
// bytes actually transferred; callers are responsible for treating a short
// transfer as a failure.
type Transport interface {
	// Send writes p to the peer and returns the number of bytes written.
	Send(ctx context.Context, p []byte) (int, error)

	// Recv reads exactly len(p) bytes from the peer into p, returning the
	// number of bytes actually read.
	Recv(ctx context.Context, p []byte) (int, error)

	// Close releases the underlying bus handle.
	Close() error
}
