package bridge

import (
	"context"
	"io"

	"github.com/hazyhaar/veil/domveil/protocol"
)

// Controller is the session surface a transport drives. Every method is
// safe for concurrent use and returns once the event has been processed.
type Controller interface {
	Dispatch(ctx context.Context, msg protocol.Inbound) error
	Click(ctx context.Context, id string) (prevented bool, err error)
	Touch(ctx context.Context, id string, phase protocol.TouchPhase) error
	Select(ctx context.Context, req protocol.SelectRequest) error
	Mutate(ctx context.Context, req protocol.MutateRequest) error
	Elements(ctx context.Context) ([]protocol.ElementInfo, error)
	Render(ctx context.Context, w io.Writer) error
}
