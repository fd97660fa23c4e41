package probeerr

import (
	"errors"
	"fmt"
)

// ProbeError is the base interface for all probe errors.
type ProbeError interface {
	error
	IsProbeError() bool
}

// Compile-time verification that all error types implement ProbeError.
var (
	_ ProbeError = (*SpawnError)(nil)
	_ ProbeError = (*EncodingError)(nil)
	_ ProbeError = (*DecodeError)(nil)
	_ ProbeError = (*UnexpectedResponseError)(nil)
	_ ProbeError = (*ProcessError)(nil)
	_ ProbeError = (*RemoteError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrEndOfStream indicates the server closed its output before a
	// correlated response arrived. It is a normal terminal signal for the
	// channel, not a decode failure: the server exited rather than sending
	// garbage.
	ErrEndOfStream = errors.New("end of stream: server closed output")

	// ErrTransportNotStarted indicates the transport was used before Start.
	ErrTransportNotStarted = errors.New("transport not started")

	// ErrStdinClosed indicates stdin was closed due to context cancellation
	// or shutdown.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrSessionFailed indicates the probe session reached the FAILED state.
	ErrSessionFailed = errors.New("probe session failed")
)

// SpawnError indicates the server process could not be launched.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn server %v: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *SpawnError) IsProbeError() bool { return true }

// EncodingError indicates a request could not be serialized to the wire
// format (e.g. parameters containing values encoding/json cannot represent).
type EncodingError struct {
	Method string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode %q request: %v", e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *EncodingError) IsProbeError() bool { return true }

// DecodeError indicates a line from the channel could not be parsed as a
// protocol envelope. It preserves the raw text that failed to parse so the
// caller can report it.
type DecodeError struct {
	RawLine string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode envelope from server: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *DecodeError) IsProbeError() bool { return true }

// UnexpectedResponseError indicates a response arrived whose identifier does
// not match the awaited one. Under the single-outstanding-request discipline
// this is a protocol violation: either a server defect or a lost response
// that must not be silently discarded.
type UnexpectedResponseError struct {
	Want int64
	Got  int64
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response id %d while awaiting %d", e.Got, e.Want)
}

// IsProbeError implements ProbeError.
func (e *UnexpectedResponseError) IsProbeError() bool { return true }

// ProcessError indicates the server process exited with an error. Stderr
// holds the captured diagnostic output, capped by the transport.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsProbeError implements ProbeError.
func (e *ProcessError) IsProbeError() bool { return true }

// RemoteError carries the error object of a correctly-decoded response whose
// error field is populated. It is domain-level, not a channel fault: the
// session's per-step policy decides whether it is fatal.
type RemoteError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned error %d: %s", e.Code, e.Message)
}

// IsProbeError implements ProbeError.
func (e *RemoteError) IsProbeError() bool { return true }
