package sink

import (
	"context"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// Func is called for each outbound message, in-process, without
// serialisation.
type Func func(ctx context.Context, msg protocol.Outbound) error

// Callback delivers messages via a Go function call. It is the path used
// when the controller is linked into the same binary.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. A nil fn drops every message.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, msg protocol.Outbound) error {
	if c.fn != nil {
		return c.fn(ctx, msg)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
