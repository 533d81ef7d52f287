package transport

import (
	"context"
	"sync"
)

// Mailbox is an in-process transport hub. Each named endpoint owns a buffered
// frame channel; sending to a name delivers to that endpoint's channel in
// order. Endpoints are created on first use, so senders may start before
// receivers.
type Mailbox struct {
	mu     sync.Mutex
	boxes  map[string]chan []byte
	buffer int
}

// NewMailbox creates a hub whose per-endpoint channels buffer up to buffer
// frames before Send blocks.
func NewMailbox(buffer int) *Mailbox {
	if buffer <= 0 {
		buffer = 16
	}
	return &Mailbox{
		boxes:  make(map[string]chan []byte),
		buffer: buffer,
	}
}

func (m *Mailbox) box(name string) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.boxes[name]
	if !ok {
		ch = make(chan []byte, m.buffer)
		m.boxes[name] = ch
	}
	return ch
}

// Endpoint returns the transport endpoint named name.
func (m *Mailbox) Endpoint(name string) *Endpoint {
	return &Endpoint{hub: m, name: name}
}

// Endpoint is one named participant of a Mailbox.
type Endpoint struct {
	hub  *Mailbox
	name string
}

var _ Transport = (*Endpoint)(nil)

// Send implements Transport.
func (e *Endpoint) Send(ctx context.Context, dest string, frame []byte) error {
	select {
	case e.hub.box(dest) <- frame:
		return nil
	case <-ctx.Done():
		return &Error{Op: "send", Dest: dest, Err: ctx.Err()}
	}
}

// Recv implements Transport.
func (e *Endpoint) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-e.hub.box(e.name):
		return frame, nil
	case <-ctx.Done():
		return nil, &Error{Op: "recv", Dest: e.name, Err: ctx.Err()}
	}
}
