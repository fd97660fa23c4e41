package session

import (
	"encoding/json"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/schema"
)

// State identifies the orchestrator's position in the fixed step sequence.
type State int

const (
	// StateInit is the state before any step has run.
	StateInit State = iota
	// StateHandshake covers the initialize exchange.
	StateHandshake
	// StateEnumerate covers the tools/list exchange.
	StateEnumerate
	// StateInvoke covers the tools/call steps.
	StateInvoke
	// StateDone means every step ran and no channel fault occurred.
	StateDone
	// StateFailed means an unrecoverable fault aborted the session.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHandshake:
		return "handshake"
	case StateEnumerate:
		return "enumerate"
	case StateInvoke:
		return "invoke"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepStatus is the outcome of a single protocol step.
type StepStatus int

const (
	// StatusOK means the step received a successful correlated response.
	StatusOK StepStatus = iota
	// StatusRemoteError means the response carried a populated error field.
	// Domain-level, not a channel fault.
	StatusRemoteError
	// StatusFailed means a channel-level fault killed the step.
	StatusFailed
)

func (s StepStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRemoteError:
		return "remote_error"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult records one executed step.
type StepResult struct {
	// Name is the human-readable step label (e.g. "handshake",
	// "call audit.search_events").
	Name string

	// Method is the protocol verb the step issued.
	Method string

	// ID is the request identifier the step used.
	ID int64

	// Status classifies the outcome.
	Status StepStatus

	// Result holds the raw result payload of a successful response.
	Result json.RawMessage

	// RemoteErr holds the decoded error object when Status is
	// StatusRemoteError.
	RemoteErr *probeerr.RemoteError

	// Err holds the channel-level fault when Status is StatusFailed.
	Err error
}

// Tool is one entry of the server's advertised tool list, as received.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ServerInfo is the identity the server reported during the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Report is the structured outcome of one probe session.
type Report struct {
	// RunID is a ULID identifying this probe run.
	RunID string

	// Server is the identity reported in the handshake, if any.
	Server ServerInfo

	// Tools is the advertised tool list from the enumerate step.
	Tools []Tool

	// SchemaFindings holds the per-tool input schema audit results.
	SchemaFindings []schema.Finding

	// Steps are the executed steps in order.
	Steps []*StepResult

	// State is the terminal session state: StateDone or StateFailed.
	State State
}

// Failed reports whether the session aborted on an unrecoverable fault.
func (r *Report) Failed() bool {
	return r.State == StateFailed
}

// RemoteErrors counts steps that completed with a server-reported error.
func (r *Report) RemoteErrors() int {
	n := 0

	for _, s := range r.Steps {
		if s.Status == StatusRemoteError {
			n++
		}
	}

	return n
}
