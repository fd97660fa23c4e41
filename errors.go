package mcpprobe

import "github.com/mcpprobe/mcpprobe/internal/probeerr"

// Re-export error types from internal package

// SpawnError indicates the server process could not be launched.
type SpawnError = probeerr.SpawnError

// EncodingError indicates a request could not be serialized to the wire format.
type EncodingError = probeerr.EncodingError

// DecodeError indicates a line from the channel could not be parsed as a
// protocol envelope.
type DecodeError = probeerr.DecodeError

// UnexpectedResponseError indicates a response arrived with an identifier
// that does not match the awaited one.
type UnexpectedResponseError = probeerr.UnexpectedResponseError

// ProcessError indicates the server process exited with an error.
type ProcessError = probeerr.ProcessError

// RemoteError carries the error object of a response whose error field is
// populated. Domain-level, not a channel fault.
type RemoteError = probeerr.RemoteError

// ProbeError is the base interface for all probe errors.
type ProbeError = probeerr.ProbeError

// Re-export sentinel errors from internal package.
var (
	// ErrEndOfStream indicates the server closed its output before a
	// correlated response arrived.
	ErrEndOfStream = probeerr.ErrEndOfStream

	// ErrTransportNotStarted indicates the transport was used before Start.
	ErrTransportNotStarted = probeerr.ErrTransportNotStarted

	// ErrStdinClosed indicates stdin was closed due to cancellation or shutdown.
	ErrStdinClosed = probeerr.ErrStdinClosed

	// ErrSessionFailed indicates the probe session reached the FAILED state.
	ErrSessionFailed = probeerr.ErrSessionFailed
)
