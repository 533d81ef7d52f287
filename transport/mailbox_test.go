package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMailbox_SendRecvOrder(t *testing.T) {
	hub := NewMailbox(4)
	worker := hub.Endpoint("worker-0")
	master := hub.Endpoint("master")

	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		if err := worker.Send(ctx, "master", []byte(msg)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for _, want := range []string{"one", "two", "three"} {
		frame, err := master.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if string(frame) != want {
			t.Errorf("Recv = %q, want %q", frame, want)
		}
	}
}

func TestMailbox_SendBeforeEndpointExists(t *testing.T) {
	hub := NewMailbox(1)
	ctx := context.Background()

	if err := hub.Endpoint("a").Send(ctx, "b", []byte("hello")); err != nil {
		t.Fatalf("Send to not-yet-created endpoint failed: %v", err)
	}
	frame, err := hub.Endpoint("b").Recv(ctx)
	if err != nil || string(frame) != "hello" {
		t.Fatalf("Recv = %q, %v", frame, err)
	}
}

func TestMailbox_RecvContextCancel(t *testing.T) {
	hub := NewMailbox(1)
	ep := hub.Endpoint("lonely")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ep.Recv(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Recv = %v, want deadline exceeded", err)
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Op != "recv" {
		t.Fatalf("error should be a transport *Error with op recv, got %v", err)
	}
}

func TestMailbox_SendBlocksWhenFull(t *testing.T) {
	hub := NewMailbox(1)
	ep := hub.Endpoint("src")

	ctx := context.Background()
	if err := ep.Send(ctx, "dst", []byte("fill")); err != nil {
		t.Fatal(err)
	}

	blocked, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := ep.Send(blocked, "dst", []byte("overflow"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send on a full box = %v, want deadline exceeded", err)
	}
}
