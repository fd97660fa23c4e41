// Package wire defines the JSON-RPC 2.0 envelope exchanged with the MCP
// server and the functions that encode and classify it.
//
// The server speaks newline-delimited JSON over stdio: one envelope per
// line, UTF-8 text. A single ordered stream carries two message classes,
// distinguished purely by field presence:
//   - NOTIFICATION: has "method", no "id"
//   - RESPONSE: has "id" (and exactly one of "result" or "error")
//
// Requests are encoded with EncodeRequest, notifications with
// EncodeNotification. Both are pure functions whose only failure mode is
// parameters that encoding/json cannot represent.
package wire
