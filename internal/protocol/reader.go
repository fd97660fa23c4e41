package protocol

import (
	"context"
	"log/slog"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// Reader yields one decoded envelope per call from the transport's inbound
// channels. It blocks the calling goroutine until an envelope is available,
// the channel closes, or a channel-level fault arrives.
type Reader struct {
	log       *slog.Logger
	envelopes <-chan *wire.Envelope
	errs      <-chan error
	closed    bool
}

// NewReader wraps the channel pair returned by Transport.ReadEnvelopes.
func NewReader(
	log *slog.Logger,
	envelopes <-chan *wire.Envelope,
	errs <-chan error,
) *Reader {
	return &Reader{
		log:       log.With("component", "reader"),
		envelopes: envelopes,
		errs:      errs,
	}
}

// Next returns the next envelope from the stream.
//
// On closure with no further data it returns ErrEndOfStream - a normal
// terminal signal, not a decode failure. A line that failed to parse, or an
// envelope matching neither message class, surfaces as the DecodeError the
// transport reported. Once a terminal condition has been observed, every
// subsequent call returns ErrEndOfStream: the channel cannot reopen.
//
// Faults take priority over envelopes. Envelope sends are unbuffered, so a
// fault sitting in the error channel always stems from a line scanned
// before the envelope currently on offer; draining it first preserves
// stream order - a garbled line aborts the attempt even when the very next
// line would have matched.
func (r *Reader) Next(ctx context.Context) (*wire.Envelope, error) {
	if r.closed {
		return nil, probeerr.ErrEndOfStream
	}

	for {
		if r.errs != nil {
			select {
			case err, ok := <-r.errs:
				if !ok {
					r.errs = nil
				} else if err != nil {
					r.closed = true

					return nil, err
				}
			default:
			}
		}

		select {
		case env, ok := <-r.envelopes:
			if !ok {
				// Drain a pending channel fault before declaring end of
				// stream, so a crash with stderr context wins over a bare EOF.
				select {
				case err, ok := <-r.errs:
					if ok && err != nil {
						r.closed = true

						return nil, err
					}
				default:
				}

				r.log.Debug("Envelope channel closed")
				r.closed = true

				return nil, probeerr.ErrEndOfStream
			}

			return env, nil

		case err, ok := <-r.errs:
			if !ok {
				// Error channel closed first; keep reading envelopes until
				// that channel closes too.
				r.errs = nil

				continue
			}

			if err != nil {
				r.closed = true

				return nil, err
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
