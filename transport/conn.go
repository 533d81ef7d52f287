package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxFrameSize bounds the length prefix accepted by Conn.Recv. A frame is at
// most the message soft limit plus one record, so anything near this bound
// indicates a corrupt or misframed stream.
const MaxFrameSize = 1 << 30

// ErrFrameTooLarge is returned when a received length prefix exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

// Conn adapts a reliable ordered byte stream (net.Conn, net.Pipe) into a
// frame transport using a little-endian uint32 length prefix. The stream is
// point-to-point, so the dest argument of Send is ignored.
//
// Send and Recv are each serialized internally; one goroutine may send while
// another receives. Context cancellation is honored between frames only:
// a blocking read or write on the stream runs to completion.
type Conn struct {
	rw   io.ReadWriter
	wmu  sync.Mutex
	rmu  sync.Mutex
	lbuf [4]byte
}

var _ Transport = (*Conn)(nil)

// NewConn wraps rw as a frame transport.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// Send implements Transport.
func (c *Conn) Send(ctx context.Context, dest string, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "send", Dest: dest, Err: err}
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if len(frame) > MaxFrameSize {
		return &Error{Op: "send", Dest: dest, Err: ErrFrameTooLarge}
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(frame))) //nolint:gosec // bounded by MaxFrameSize
	if _, err := c.rw.Write(prefix[:]); err != nil {
		return &Error{Op: "send", Dest: dest, Err: err}
	}
	if _, err := c.rw.Write(frame); err != nil {
		return &Error{Op: "send", Dest: dest, Err: err}
	}
	return nil
}

// Recv implements Transport.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "recv", Err: err}
	}

	c.rmu.Lock()
	defer c.rmu.Unlock()

	if _, err := io.ReadFull(c.rw, c.lbuf[:]); err != nil {
		return nil, &Error{Op: "recv", Err: err}
	}
	n := binary.LittleEndian.Uint32(c.lbuf[:])
	if n > MaxFrameSize {
		return nil, &Error{Op: "recv", Err: fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)}
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(c.rw, frame); err != nil {
		return nil, &Error{Op: "recv", Err: err}
	}
	return frame, nil
}
