package protocol

import (
	"context"
	"log/slog"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// Observer receives every notification seen while awaiting a response, in
// arrival order.
type Observer func(*wire.Envelope)

// Correlator matches responses to the single outstanding request. It holds
// no state between calls beyond scanning forward through the stream.
type Correlator struct {
	log      *slog.Logger
	observer Observer
}

// NewCorrelator creates a correlator. The observer may be nil, in which
// case notifications are only logged.
func NewCorrelator(log *slog.Logger, observer Observer) *Correlator {
	return &Correlator{
		log:      log.With("component", "correlator"),
		observer: observer,
	}
}

// AwaitResponse pulls envelopes from the reader until the response whose
// identifier matches id arrives.
//
// Notifications encountered on the way are forwarded to the observer and
// the loop continues; a matching response is the only successful exit. A
// response with any other identifier is a protocol violation under the
// single-outstanding-request discipline and fails with
// UnexpectedResponseError. Closure before a match fails with ErrEndOfStream,
// distinguishing "server exited" from "server sent garbage" (DecodeError).
//
// No timeout is enforced here; the caller bounds the wall clock with ctx
// and cancels by tearing down the transport, which unblocks the read.
func (c *Correlator) AwaitResponse(
	ctx context.Context,
	id int64,
	reader *Reader,
) (*wire.Envelope, error) {
	c.log.Debug("Awaiting response", "id", id)

	for {
		env, err := reader.Next(ctx)
		if err != nil {
			c.log.Debug("Channel fault while awaiting response", "id", id, "error", err)

			return nil, err
		}

		// wire.Decode admits only the two recognized shapes, so a non-response
		// here is a notification.
		if env.Kind() != wire.KindResponse {
			c.log.Info("Notification from server", "method", env.Method)

			if c.observer != nil {
				c.observer(env)
			}

			continue
		}

		if *env.ID != id {
			c.log.Error("Response identifier mismatch", "want", id, "got", *env.ID)

			return nil, &probeerr.UnexpectedResponseError{Want: id, Got: *env.ID}
		}

		c.log.Debug("Response correlated", "id", id, "is_error", env.Error != nil)

		return env, nil
	}
}
