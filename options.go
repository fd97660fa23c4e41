package mcpprobe

import (
	"log/slog"
	"time"

	"github.com/mcpprobe/mcpprobe/internal/config"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// Option configures a probe session using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options to a config.Options struct.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// Invocation is one tool-call step: a tool name plus its arguments.
type Invocation = config.Invocation

// Envelope is the decoded protocol envelope, as delivered to observers.
type Envelope = wire.Envelope

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithCwd sets the working directory for the server process.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides environment overrides for the server process. They are
// passed through unmodified on top of the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(o *config.Options) {
		o.Env = env
	}
}

// WithGracePeriod bounds the wait between the graceful shutdown request
// and the forced kill when the session tears down the server.
func WithGracePeriod(d time.Duration) Option {
	return func(o *config.Options) {
		o.GracePeriod = d
	}
}

// WithStartupDelay adds a settle time between spawning the server and
// sending the handshake, for servers that need a moment to bind resources.
func WithStartupDelay(d time.Duration) Option {
	return func(o *config.Options) {
		o.StartupDelay = d
	}
}

// ===== Handshake =====

// WithProtocolVersion overrides the protocol version sent in the handshake.
func WithProtocolVersion(version string) Option {
	return func(o *config.Options) {
		o.ProtocolVersion = version
	}
}

// WithClientInfo sets the client identity echoed in the handshake.
func WithClientInfo(name, version string) Option {
	return func(o *config.Options) {
		o.ClientName = name
		o.ClientVersion = version
	}
}

// ===== Steps =====

// WithInvocation appends a tool-call step to run after enumeration.
// Explicit invocations replace the built-in audit sequence.
func WithInvocation(name string, arguments map[string]any) Option {
	return func(o *config.Options) {
		o.Invocations = append(o.Invocations, config.Invocation{
			Name:      name,
			Arguments: arguments,
		})
	}
}

// WithoutDefaultInvocations suppresses the built-in audit invocation steps,
// leaving handshake and enumeration only.
func WithoutDefaultInvocations() Option {
	return func(o *config.Options) {
		o.SkipDefaultInvocations = true
	}
}

// ===== Callbacks =====

// WithObserver sets a callback invoked for every notification observed
// while awaiting a response, in arrival order.
func WithObserver(observer func(*Envelope)) Option {
	return func(o *config.Options) {
		o.Observer = observer
	}
}

// WithStderr sets a callback for streaming server stderr lines.
func WithStderr(callback func(string)) Option {
	return func(o *config.Options) {
		o.Stderr = callback
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport implementation. When set, the
// probed command is ignored and the transport is used as-is.
func WithTransport(transport Transport) Option {
	return func(o *config.Options) {
		o.Transport = transport
	}
}
