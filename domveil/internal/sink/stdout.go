package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// Stdout writes one flat JSON message per line to an io.Writer (default
// os.Stdout). This is the wire format a controller reads over stdio.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Send(_ context.Context, msg protocol.Outbound) error {
	data, err := protocol.MarshalOutbound(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(data, '\n'))
	return err
}

func (s *Stdout) Close() error { return nil }
