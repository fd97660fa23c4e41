// Package protocol implements envelope reading and response correlation
// for the MCP server channel.
//
// The channel is a single ordered stream shared by two message classes:
// asynchronous notifications and responses to prior requests. The Reader
// pulls one classified envelope per call; the Correlator scans forward
// through the stream until the response with the awaited identifier
// arrives, forwarding every notification seen on the way to an observer
// callback.
//
// The probe issues one request at a time, so correlation needs no pending
// table: a response with any other identifier is a protocol violation and
// surfaces as a fault rather than being silently discarded. A client that
// pipelines would instead route responses through a map of identifier to
// waiting continuation fed by one reading task.
package protocol
