package mcp

import (
	"context"
	"errors"
	"sync"
)

const memoryQueueSize = 64

// MemoryTransport is one endpoint of an in-process linked channel pair.
// It is the low-latency, no-subprocess way to reach a provider: the server
// endpoint goes to the provider instance, the client endpoint is wrapped by
// a Client. Messages are ordered and duplex; closing either endpoint tears
// down the link for both sides.
type MemoryTransport struct {
	send chan<- Message
	recv <-chan Message

	done      chan struct{} // shared by both endpoints
	closeOnce *sync.Once    // shared: first Close wins, second is a no-op
}

// NewLinkedTransports creates a connected transport pair. The first return
// value is conventionally given to the provider (server side), the second
// wrapped as the client handle. Both endpoints are usable immediately; the
// link carries no handshake of its own — protocol initialization happens at
// the client/server layer.
func NewLinkedTransports() (*MemoryTransport, *MemoryTransport) {
	aToB := make(chan Message, memoryQueueSize)
	bToA := make(chan Message, memoryQueueSize)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &MemoryTransport{send: aToB, recv: bToA, done: done, closeOnce: once}
	b := &MemoryTransport{send: bToA, recv: aToB, done: done, closeOnce: once}
	return a, b
}

// Send delivers a message to the peer endpoint.
func (t *MemoryTransport) Send(ctx context.Context, message Message) error {
	select {
	case <-t.done:
		return errors.New("mcp: linked transport is closed")
	default:
	}

	select {
	case t.send <- message:
		return nil
	case <-t.done:
		return errors.New("mcp: linked transport is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message from the peer endpoint.
func (t *MemoryTransport) Receive(ctx context.Context) (Message, error) {
	// Drain already-queued messages even if the link closed after they
	// were sent; only report closure once the queue is empty.
	select {
	case message := <-t.recv:
		return message, nil
	default:
	}

	select {
	case message := <-t.recv:
		return message, nil
	case <-t.done:
		return Message{}, errors.New("mcp: linked transport is closed")
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close tears down the link for both endpoints. Idempotent from either side.
func (t *MemoryTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	return nil
}
