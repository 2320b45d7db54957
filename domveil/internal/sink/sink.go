// Package sink defines the delivery backends for outbound controller
// messages.
package sink

import (
	"context"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// Sink delivers outbound messages to one backend (stdout lines, webhook,
// in-process callback, SQLite journal).
type Sink interface {
	Send(ctx context.Context, msg protocol.Outbound) error
	Close() error
}
