package mcpprobe

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// stubTransport answers each request with a canned line keyed by method,
// exercising Run without a real subprocess.
type stubTransport struct {
	t      *testing.T
	script map[string]string

	envelopes chan *wire.Envelope
	errs      chan error

	started bool
	closed  bool

	sentMethods []string
}

var _ Transport = (*stubTransport)(nil)

func newStubTransport(t *testing.T, script map[string]string) *stubTransport {
	t.Helper()

	return &stubTransport{
		t:         t,
		script:    script,
		envelopes: make(chan *wire.Envelope, 16),
		errs:      make(chan error, 1),
	}
}

func (s *stubTransport) Start(ctx context.Context) error {
	s.started = true

	return nil
}

func (s *stubTransport) ReadEnvelopes(ctx context.Context) (<-chan *wire.Envelope, <-chan error) {
	return s.envelopes, s.errs
}

func (s *stubTransport) SendMessage(ctx context.Context, data []byte) error {
	env, err := wire.Decode(data[:len(data)-1])
	require.NoError(s.t, err)

	s.sentMethods = append(s.sentMethods, env.Method)

	line, ok := s.script[env.Method]
	if !ok {
		return nil
	}

	reply, err := wire.Decode([]byte(line))
	require.NoError(s.t, err)

	s.envelopes <- reply

	return nil
}

func (s *stubTransport) Close() error {
	s.closed = true

	return nil
}

func (s *stubTransport) IsReady() bool { return s.started && !s.closed }

func stubScript() map[string]string {
	return map[string]string{
		"initialize": `{"jsonrpc":"2.0","id":0,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"stub","version":"0.0.1"}}}`,
		"tools/list": `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`,
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	report, err := Run(context.Background(), []string{"mcpprobe-no-such-binary"})
	require.Error(t, err)
	require.Nil(t, report)

	_, ok := stderrors.AsType[*probeerr.SpawnError](err)
	require.True(t, ok, "expected SpawnError, got %T", err)
}

func TestRun_WithTransport(t *testing.T) {
	transport := newStubTransport(t, stubScript())

	report, err := Run(context.Background(), nil,
		WithTransport(transport),
		WithoutDefaultInvocations(),
	)
	require.NoError(t, err)

	require.Equal(t, StateDone, report.State)
	require.Equal(t, "stub", report.Server.Name)
	require.NotEmpty(t, report.RunID)
	require.True(t, transport.started)
	require.True(t, transport.closed, "Run must tear the transport down on success")

	require.Equal(t, []string{
		"initialize",
		"notifications/initialized",
		"tools/list",
	}, transport.sentMethods)
}

func TestRun_ClosesTransportOnFailure(t *testing.T) {
	script := stubScript()
	script["initialize"] = `{"jsonrpc":"2.0","id":0,"error":{"code":-32600,"message":"nope"}}`
	transport := newStubTransport(t, script)

	report, err := Run(context.Background(), nil, WithTransport(transport))
	require.Error(t, err)
	require.NotNil(t, report)
	require.Equal(t, StateFailed, report.State)
	require.True(t, transport.closed, "Run must tear the transport down on failure too")
}

func TestRun_ExplicitInvocationsReplaceDefaults(t *testing.T) {
	script := stubScript()
	script["tools/call"] = `{"jsonrpc":"2.0","id":2,"result":{"total":0,"events":[]}}`
	transport := newStubTransport(t, script)

	report, err := Run(context.Background(), nil,
		WithTransport(transport),
		WithInvocation("audit.search_events", map[string]any{"limit": 1}),
	)
	require.NoError(t, err)

	// Handshake, enumerate, exactly the one configured call.
	require.Len(t, report.Steps, 3)
	require.Equal(t, "call audit.search_events", report.Steps[2].Name)
	require.Equal(t, StatusOK, report.Steps[2].Status)
}

func TestRun_AgainstShellServer(t *testing.T) {
	// A shell stand-in for an MCP server: answer the two fixed requests,
	// then hold stdin open until the probe closes it.
	script := `
echo '{"jsonrpc":"2.0","id":0,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"shmock","version":"0.0.1"}}}'
echo '{"jsonrpc":"2.0","id":1,"result":{"tools":[{"name":"audit.search_events","inputSchema":{"type":"object"}}]}}'
cat >/dev/null
`

	report, err := Run(context.Background(), []string{"sh", "-c", script},
		WithoutDefaultInvocations(),
	)
	require.NoError(t, err)

	require.Equal(t, StateDone, report.State)
	require.Equal(t, "shmock", report.Server.Name)
	require.Len(t, report.Tools, 1)
	require.Len(t, report.SchemaFindings, 1)
	require.True(t, report.SchemaFindings[0].OK())
}
