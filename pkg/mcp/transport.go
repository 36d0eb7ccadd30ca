package mcp

import "context"

// Transport is the message transport contract shared by the client and
// server cores. Implementations must deliver messages in order and unblock
// pending Receive calls when closed.
type Transport interface {
	Send(ctx context.Context, message Message) error
	Receive(ctx context.Context) (Message, error)
	Close(ctx context.Context) error
}
