// Package session drives the fixed diagnostic conversation with an MCP
// server: capability handshake, tool enumeration, then a series of tool
// invocations, one outstanding request at a time.
//
// The session is a state machine INIT → HANDSHAKE → ENUMERATE →
// INVOKE(1..k) → DONE with a side transition to FAILED from any state.
// Channel-level faults (spawn, encoding, decode, end-of-stream) always
// abort: a corrupted or closed channel cannot be recovered. A
// correctly-decoded error response is domain-level and follows the
// per-step policy: a handshake failure is fatal, a failed tool invocation
// is recorded and the session proceeds to the next step.
package session
