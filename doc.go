// Package mcpprobe provides a diagnostic client for MCP servers speaking
// JSON-RPC 2.0 over stdio.
//
// The probe spawns the server under test as a subprocess and drives it
// through a fixed conversational sequence - capability handshake, tool
// enumeration, and a series of tool invocations - reporting whether each
// exchange produced a well-formed result or an error. Responses are
// correlated to requests by identifier on a single ordered stream that
// also carries asynchronous notifications; the probe issues one request at
// a time and treats any unexpected response identifier as a protocol
// violation.
//
// # Basic Usage
//
//	ctx := context.Background()
//	report, err := mcpprobe.Run(ctx, []string{"./server"},
//	    mcpprobe.WithEnv(map[string]string{"LOKI_URL": "http://localhost:3100"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, step := range report.Steps {
//	    fmt.Printf("%-28s %s\n", step.Name, step.Status)
//	}
//
// Run always cleans up the server process, gracefully first and forcibly
// after the grace period, regardless of where in the sequence a failure
// occurred.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	report, err := mcpprobe.Run(ctx, command, mcpprobe.WithLogger(logger))
//
// # Error Handling
//
// The probe distinguishes transport failures from server-reported ones.
// Channel-level faults (SpawnError, EncodingError, DecodeError,
// ErrEndOfStream) abort the session and are returned from Run; a response
// whose error field is populated is a RemoteError recorded on the step,
// fatal only for the handshake.
//
//	report, err := mcpprobe.Run(ctx, command)
//	if err != nil {
//	    if spawnErr, ok := errors.AsType[*mcpprobe.SpawnError](err); ok {
//	        log.Fatalf("server did not start: %v", spawnErr)
//	    }
//	    if errors.Is(err, mcpprobe.ErrEndOfStream) {
//	        log.Fatalf("server exited before answering (state %s)", report.State)
//	    }
//	    log.Fatal(err)
//	}
package mcpprobe
