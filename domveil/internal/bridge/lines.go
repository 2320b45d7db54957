package bridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// maxLine bounds one inbound JSON line.
const maxLine = 1 << 20

// ReadLines reads newline-delimited inbound commands from r and dispatches
// each to c until r is exhausted or ctx ends. Malformed lines are logged and
// skipped.
func ReadLines(ctx context.Context, r io.Reader, c Controller, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := protocol.UnmarshalInbound(line)
		if err != nil {
			logger.Warn("bridge: dropping malformed command", "error", err)
			continue
		}
		if err := c.Dispatch(ctx, msg); err != nil {
			return fmt.Errorf("bridge: dispatch %s: %w", msg.Action(), err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("bridge: read: %w", err)
	}
	return nil
}
