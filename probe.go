package mcpprobe

import (
	"context"

	"github.com/mcpprobe/mcpprobe/internal/session"
	"github.com/mcpprobe/mcpprobe/internal/subprocess"
)

// Re-export session result types for the public API.
type (
	// Report is the structured outcome of one probe session.
	Report = session.Report

	// StepResult records one executed protocol step.
	StepResult = session.StepResult

	// Tool is one entry of the server's advertised tool list.
	Tool = session.Tool

	// ServerInfo is the identity the server reported during the handshake.
	ServerInfo = session.ServerInfo

	// State identifies the session's position in the fixed step sequence.
	State = session.State

	// StepStatus is the outcome classification of a single step.
	StepStatus = session.StepStatus
)

// Session states.
const (
	StateInit      = session.StateInit
	StateHandshake = session.StateHandshake
	StateEnumerate = session.StateEnumerate
	StateInvoke    = session.StateInvoke
	StateDone      = session.StateDone
	StateFailed    = session.StateFailed
)

// Step outcomes.
const (
	StatusOK          = session.StatusOK
	StatusRemoteError = session.StatusRemoteError
	StatusFailed      = session.StatusFailed
)

// Run probes the MCP server started by command.
//
// It spawns the server, executes the fixed diagnostic sequence (handshake,
// tool enumeration, tool invocations), and terminates the server before
// returning - gracefully first, forcibly after the grace period. Cleanup
// runs on every exit path, including failures raised anywhere in the
// session.
//
// The returned Report is always non-nil once the server spawned and
// records every step that ran. The error is non-nil exactly when the
// session aborted on an unrecoverable fault; it is the underlying channel
// fault, or the remote error for a fatal step. Per-step remote errors that
// the session survived are found on the report, not in the error.
func Run(ctx context.Context, command []string, opts ...Option) (*Report, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	transport := options.Transport
	if transport == nil {
		transport = subprocess.NewServerTransport(log, command, options)
	}

	if err := transport.Start(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = transport.Close()
	}()

	return session.New(log, transport, options).Run(ctx)
}
