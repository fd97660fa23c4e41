// Package config provides configuration types for the probe.
package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// Transport defines the interface for MCP server communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation is ServerTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start launches the server and prepares the channel for communication.
	Start(ctx context.Context) error

	// ReadEnvelopes returns channels for receiving decoded envelopes and
	// channel-level errors. Both channels are closed when reading completes;
	// closure with no pending error is the end-of-stream signal.
	ReadEnvelopes(ctx context.Context) (<-chan *wire.Envelope, <-chan error)

	// SendMessage writes one encoded envelope to the server.
	// A trailing newline is appended if missing.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the server: graceful shutdown request, timed wait,
	// forced kill. It never returns a kill failure as an error and is safe
	// to call multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}

// Options configures a probe session.
type Options struct {
	// Logger receives debug output. If nil, logging is disabled.
	Logger *slog.Logger

	// Cwd sets the working directory for the server process.
	Cwd string

	// Env provides environment overrides for the server process. Values are
	// passed through unmodified on top of the inherited environment.
	Env map[string]string

	// GracePeriod bounds the wait between the graceful shutdown request and
	// the forced kill. Zero means DefaultGracePeriod.
	GracePeriod time.Duration

	// StartupDelay is an optional settle time between spawning the server
	// and sending the handshake. Zero means no delay.
	StartupDelay time.Duration

	// ProtocolVersion is sent in the handshake. Empty means DefaultProtocolVersion.
	ProtocolVersion string

	// ClientName and ClientVersion identify the probe in the handshake.
	ClientName    string
	ClientVersion string

	// Observer is invoked for every notification observed while awaiting a
	// response, in arrival order. If nil, notifications are logged only.
	Observer func(*wire.Envelope)

	// Stderr is a callback for streaming server stderr lines.
	Stderr func(string)

	// Invocations are the tool-call steps to run after enumeration.
	Invocations []Invocation

	// SkipDefaultInvocations suppresses the built-in audit invocation steps
	// when no explicit Invocations are given.
	SkipDefaultInvocations bool

	// Transport allows injecting a custom transport implementation.
	// If nil, a ServerTransport is created for the probed command.
	Transport Transport
}

// Invocation is one tool-call step: a tool name plus its arguments.
type Invocation struct {
	Name      string
	Arguments map[string]any
}

// Defaults applied when the corresponding option is zero.
const (
	DefaultGracePeriod     = 2 * time.Second
	DefaultProtocolVersion = "2024-11-05"
	DefaultClientName      = "mcpprobe"
	DefaultClientVersion   = "0.1.0"
)
