package scan

import (
	"github.com/hazyhaar/veil/domveil/protocol"
)

// DefaultBatchSize is the number of identifications per initial-scan predict.
const DefaultBatchSize = 25

// Batcher groups {id: text} pairs into fixed-size predict messages.
// Boundaries are purely count-based.
type Batcher struct {
	size    int
	emit    protocol.Emitter
	pending map[string]string
	sent    int
}

// NewBatcher creates a Batcher flushing every size additions. A non-positive
// size falls back to DefaultBatchSize.
func NewBatcher(size int, emit protocol.Emitter) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{size: size, emit: emit, pending: make(map[string]string, size)}
}

// Add queues one pair and flushes when the batch is full.
func (b *Batcher) Add(id, text string) {
	b.pending[id] = text
	if len(b.pending) >= b.size {
		b.flush()
	}
}

// Close flushes the remainder, if any.
func (b *Batcher) Close() {
	b.flush()
}

// Sent returns how many predict messages were emitted.
func (b *Batcher) Sent() int { return b.sent }

func (b *Batcher) flush() {
	if len(b.pending) == 0 {
		return
	}
	b.emit.Emit(protocol.Predict{Content: b.pending})
	b.sent++
	b.pending = make(map[string]string, b.size)
}
