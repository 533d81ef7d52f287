// Package transport abstracts the point-to-point message channel between
// worker and master nodes. The channel is assumed reliable and ordered;
// implementations exist for in-process mailboxes (tests, single-binary
// deployments) and framed byte streams (net.Conn, net.Pipe).
package transport

import "context"

// Transport moves opaque frames between named nodes. Send and Recv block the
// calling goroutine until the transport completes, fails, or ctx is done.
type Transport interface {
	// Send delivers one frame to dest.
	Send(ctx context.Context, dest string, frame []byte) error
	// Recv consumes the next frame addressed to this endpoint.
	Recv(ctx context.Context) ([]byte, error)
}

// Error wraps a transport failure with the operation and destination that
// produced it. The underlying cause is available via errors.Unwrap.
type Error struct {
	Op   string
	Dest string
	Err  error
}

func (e *Error) Error() string {
	if e.Dest == "" {
		return "transport: " + e.Op + ": " + e.Err.Error()
	}
	return "transport: " + e.Op + " " + e.Dest + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
