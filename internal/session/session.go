package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mcpprobe/mcpprobe/internal/config"
	"github.com/mcpprobe/mcpprobe/internal/protocol"
	"github.com/mcpprobe/mcpprobe/internal/schema"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// Protocol verbs of the fixed conversation.
const (
	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodListTools   = "tools/list"
	methodCallTool    = "tools/call"
)

// handshakeID is the reserved identifier for the initialize request.
const handshakeID int64 = 0

// DefaultInvocations mirror the canonical audit probe sequence: a bounded
// event search, an aggregation by operation, and a trace of a known request
// id (expected to come back empty or as a remote error on a fresh server).
func DefaultInvocations() []config.Invocation {
	return []config.Invocation{
		{Name: "audit.search_events", Arguments: map[string]any{"limit": 5}},
		{Name: "audit.aggregate", Arguments: map[string]any{"by": "vault_operation"}},
		{Name: "audit.trace", Arguments: map[string]any{"request_id": "test-request-123", "limit": 10}},
	}
}

// Session sequences the protocol steps against one server transport,
// issuing one request at a time and inspecting each result before
// proceeding. Sessions are single-use.
type Session struct {
	log        *slog.Logger
	transport  config.Transport
	opts       *config.Options
	correlator *protocol.Correlator

	reader *protocol.Reader
	nextID int64
	report *Report
}

// New creates a session for a started transport.
func New(log *slog.Logger, transport config.Transport, opts *config.Options) *Session {
	return &Session{
		log:        log.With("component", "session"),
		transport:  transport,
		opts:       opts,
		correlator: protocol.NewCorrelator(log, protocol.Observer(opts.Observer)),
		nextID:     handshakeID,
		report: &Report{
			RunID: ulid.Make().String(),
			State: StateInit,
		},
	}
}

// Run executes the fixed sequence: handshake, enumerate, then one
// invocation step per configured tool call.
//
// The returned Report is always non-nil and records every step that ran,
// including the failing one. The error is non-nil exactly when the session
// reached StateFailed; it is the underlying channel fault, or the remote
// error for a fatal step.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	s.log.Info("Starting probe session", "run_id", s.report.RunID)

	envelopes, errs := s.transport.ReadEnvelopes(ctx)
	s.reader = protocol.NewReader(s.log, envelopes, errs)

	if s.opts.StartupDelay > 0 {
		s.log.Debug("Waiting for server to settle", "delay", s.opts.StartupDelay)

		select {
		case <-time.After(s.opts.StartupDelay):
		case <-ctx.Done():
			return s.fail(ctx.Err())
		}
	}

	if err := s.handshake(ctx); err != nil {
		return s.fail(err)
	}

	if err := s.enumerate(ctx); err != nil {
		return s.fail(err)
	}

	if err := s.invokeAll(ctx); err != nil {
		return s.fail(err)
	}

	s.report.State = StateDone
	s.log.Info("Probe session complete",
		"run_id", s.report.RunID,
		"steps", len(s.report.Steps),
		"remote_errors", s.report.RemoteErrors(),
	)

	return s.report, nil
}

// fail moves the session to FAILED and returns the report with the fault.
func (s *Session) fail(err error) (*Report, error) {
	s.report.State = StateFailed
	s.log.Error("Probe session failed", "run_id", s.report.RunID, "error", err)

	return s.report, err
}

// handshakeParams is the initialize request payload. Capabilities are
// opaque to the probe; clientInfo is echoed by convention, not validated.
type handshakeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// handshake runs the initialize exchange. Any failure here is fatal: a
// server that cannot negotiate capabilities cannot be probed further.
func (s *Session) handshake(ctx context.Context) error {
	s.report.State = StateHandshake

	version := s.opts.ProtocolVersion
	if version == "" {
		version = config.DefaultProtocolVersion
	}

	name := s.opts.ClientName
	if name == "" {
		name = config.DefaultClientName
	}

	clientVersion := s.opts.ClientVersion
	if clientVersion == "" {
		clientVersion = config.DefaultClientVersion
	}

	params := handshakeParams{
		ProtocolVersion: version,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: name, Version: clientVersion},
	}

	step, err := s.step(ctx, "handshake", methodInitialize, params)
	if err != nil {
		return err
	}

	if step.Status == StatusRemoteError {
		return step.RemoteErr
	}

	var result struct {
		ServerInfo ServerInfo `json:"serverInfo"`
	}

	if err := json.Unmarshal(step.Result, &result); err != nil {
		s.log.Warn("Handshake result missing serverInfo", "error", err)
	}

	s.report.Server = result.ServerInfo
	s.log.Info("Server initialized",
		"name", result.ServerInfo.Name, "version", result.ServerInfo.Version)

	// The server may not process further requests until the client
	// acknowledges the handshake.
	data, err := wire.EncodeNotification(methodInitialized, nil)
	if err != nil {
		return err
	}

	return s.transport.SendMessage(ctx, data)
}

// enumerate runs tools/list and audits each advertised input schema. A
// remote error here is recorded but not fatal: the configured invocations
// may still exercise the server.
func (s *Session) enumerate(ctx context.Context) error {
	s.report.State = StateEnumerate

	step, err := s.step(ctx, "list tools", methodListTools, map[string]any{})
	if err != nil {
		return err
	}

	if step.Status == StatusRemoteError {
		s.log.Warn("Tool enumeration failed", "error", step.RemoteErr)

		return nil
	}

	var result struct {
		Tools []Tool `json:"tools"`
	}

	if err := json.Unmarshal(step.Result, &result); err != nil {
		s.log.Warn("tools/list result did not parse", "error", err)

		return nil
	}

	s.report.Tools = result.Tools
	s.log.Info("Server advertised tools", "count", len(result.Tools))

	for _, tool := range result.Tools {
		finding := schema.CheckTool(tool.Name, tool.InputSchema)
		s.report.SchemaFindings = append(s.report.SchemaFindings, finding)

		if !finding.OK() {
			s.log.Warn("Tool schema audit finding", "tool", tool.Name, "error", finding.Err)
		}
	}

	return nil
}

// callParams is the tools/call payload: a tool identifier plus its
// structured arguments.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// invokeAll runs the configured invocation steps in order. Remote errors
// are recorded per step and the session proceeds; only channel faults
// abort.
func (s *Session) invokeAll(ctx context.Context) error {
	s.report.State = StateInvoke

	invocations := s.opts.Invocations
	if len(invocations) == 0 && !s.opts.SkipDefaultInvocations {
		invocations = DefaultInvocations()
	}

	for _, inv := range invocations {
		name := fmt.Sprintf("call %s", inv.Name)

		step, err := s.step(ctx, name, methodCallTool, callParams{
			Name:      inv.Name,
			Arguments: inv.Arguments,
		})
		if err != nil {
			return err
		}

		if step.Status == StatusRemoteError {
			s.log.Warn("Tool invocation returned error",
				"tool", inv.Name, "error", step.RemoteErr)
		}
	}

	return nil
}

// step executes one request/response exchange: assign a fresh identifier,
// encode and send, await the correlated response, classify the outcome.
//
// At most one request is outstanding at a time; identifiers increase
// monotonically from the reserved handshake value, so uniqueness holds
// across the session. The returned error is a channel-level fault; remote
// errors are reported through the StepResult instead.
func (s *Session) step(
	ctx context.Context,
	name string,
	method string,
	params any,
) (*StepResult, error) {
	id := s.nextID
	s.nextID++

	result := &StepResult{Name: name, Method: method, ID: id}
	s.report.Steps = append(s.report.Steps, result)

	s.log.Debug("Executing step", "step", name, "method", method, "id", id)

	data, err := wire.EncodeRequest(method, params, id)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err

		return result, err
	}

	if err := s.transport.SendMessage(ctx, data); err != nil {
		result.Status = StatusFailed
		result.Err = err

		return result, err
	}

	env, err := s.correlator.AwaitResponse(ctx, id, s.reader)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err

		return result, err
	}

	if remote := env.RemoteError(); remote != nil {
		result.Status = StatusRemoteError
		result.RemoteErr = remote

		return result, nil
	}

	result.Status = StatusOK
	result.Result = env.Result

	return result, nil
}
