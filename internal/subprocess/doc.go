// Package subprocess provides subprocess-based transport for MCP servers.
//
// This package implements the Transport interface by spawning the server
// under test as a child process and communicating via stdin/stdout. It owns
// the process lifecycle: spawn, graceful terminate with a timed grace
// period, and forced kill. Resources are released exactly once on every
// exit path, including failures raised anywhere in the probe session.
package subprocess
