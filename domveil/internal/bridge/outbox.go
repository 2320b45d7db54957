package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/veil/domveil/internal/sink"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// DefaultOutboxSize is the number of messages buffered before Emit blocks.
const DefaultOutboxSize = 1024

// ErrClosed is returned by Drain after Close.
var ErrClosed = errors.New("bridge: outbox closed")

type envelope struct {
	msg  protocol.Outbound
	done chan struct{} // set for drain markers
}

// Outbox delivers outbound messages to a sink from its own goroutine, in
// emission order. Delivery is fire-and-forget: failures are logged.
type Outbox struct {
	sink   sink.Sink
	ch     chan envelope
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex // guards closed against sends on a closed channel
	closed bool
	wg     sync.WaitGroup
	sent   atomic.Int64
	failed atomic.Int64
}

// NewOutbox starts an Outbox writing to s.
func NewOutbox(s sink.Sink, size int, logger *slog.Logger) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		sink:   s,
		ch:     make(chan envelope, size),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	o.wg.Add(1)
	go o.loop()
	return o
}

// Emit queues msg. Messages emitted after Close are dropped.
func (o *Outbox) Emit(msg protocol.Outbound) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.logger.Debug("bridge: dropping message after close", "kind", msg.Kind())
		return
	}
	o.ch <- envelope{msg: msg}
}

// Drain blocks until every message queued before the call was delivered.
func (o *Outbox) Drain(ctx context.Context) error {
	done := make(chan struct{})
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return ErrClosed
	}
	o.ch <- envelope{done: done}
	o.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the number of messages delivered and failed so far.
func (o *Outbox) Stats() (sent, failed int64) {
	return o.sent.Load(), o.failed.Load()
}

// Close delivers what is queued, then closes the sink.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.ch)
	o.mu.Unlock()

	o.wg.Wait()
	o.cancel()
	return o.sink.Close()
}

func (o *Outbox) loop() {
	defer o.wg.Done()
	for env := range o.ch {
		if env.done != nil {
			close(env.done)
			continue
		}
		if err := o.sink.Send(o.ctx, env.msg); err != nil {
			o.failed.Add(1)
			o.logger.Warn("bridge: outbound delivery failed", "kind", env.msg.Kind(), "error", err)
			continue
		}
		o.sent.Add(1)
	}
}
