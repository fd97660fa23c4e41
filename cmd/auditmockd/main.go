// Command auditmockd is a mock vault-audit MCP server used as a probe
// target in tests and demos. It advertises the audit tool surface and
// serves canned data over stdio; no Loki backend is required.
//
// Set AUDITMOCK_FAIL_TOOLS=1 to make every tool call return an error,
// which exercises the probe's remote-error reporting.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchArgs filters an event search. The zero value searches everything.
type SearchArgs struct {
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of events to return"`
	Namespace string `json:"namespace,omitempty" jsonschema:"filter by Vault namespace"`
	Operation string `json:"operation,omitempty" jsonschema:"filter by operation (read, write, delete, list)"`
	Status    string `json:"status,omitempty" jsonschema:"filter by status (ok or error)"`
}

// AggregateArgs selects the grouping dimension for event counting.
type AggregateArgs struct {
	By string `json:"by" jsonschema:"dimension to group by (vault_namespace, vault_operation, vault_status)"`
}

// TraceArgs identifies the request to trace.
type TraceArgs struct {
	RequestID string `json:"request_id" jsonschema:"Vault request ID to trace"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of events to return"`
}

// DetailsArgs identifies the request whose full events to retrieve.
type DetailsArgs struct {
	RequestID string `json:"request_id" jsonschema:"Vault request ID to retrieve detailed events for"`
}

// event is one canned audit record.
type event struct {
	Time      string `json:"time"`
	RequestID string `json:"request_id"`
	Namespace string `json:"namespace"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Status    string `json:"status"`
}

var cannedEvents = []event{
	{Time: "2026-08-25T10:00:01Z", RequestID: "req-001", Namespace: "root", Operation: "read", Path: "secret/data/app", Status: "ok"},
	{Time: "2026-08-25T10:00:05Z", RequestID: "req-002", Namespace: "root", Operation: "write", Path: "secret/data/app", Status: "ok"},
	{Time: "2026-08-25T10:00:09Z", RequestID: "req-003", Namespace: "team-a", Operation: "read", Path: "secret/data/db", Status: "error"},
	{Time: "2026-08-25T10:00:12Z", RequestID: "req-001", Namespace: "root", Operation: "read", Path: "auth/token/lookup", Status: "ok"},
}

func failingTools() bool {
	return os.Getenv("AUDITMOCK_FAIL_TOOLS") == "1"
}

func searchEvents(args SearchArgs) (any, error) {
	limit := args.Limit
	if limit <= 0 || limit > len(cannedEvents) {
		limit = len(cannedEvents)
	}

	matched := make([]event, 0, limit)

	for _, ev := range cannedEvents {
		if args.Namespace != "" && ev.Namespace != args.Namespace {
			continue
		}

		if args.Operation != "" && ev.Operation != args.Operation {
			continue
		}

		if args.Status != "" && ev.Status != args.Status {
			continue
		}

		matched = append(matched, ev)
		if len(matched) == limit {
			break
		}
	}

	return map[string]any{"total": len(matched), "events": matched}, nil
}

func aggregateEvents(args AggregateArgs) (any, error) {
	buckets := map[string]int{}

	for _, ev := range cannedEvents {
		switch args.By {
		case "vault_namespace":
			buckets[ev.Namespace]++
		case "vault_operation":
			buckets[ev.Operation]++
		case "vault_status":
			buckets[ev.Status]++
		default:
			return nil, fmt.Errorf("invalid 'by' parameter: %q", args.By)
		}
	}

	return buckets, nil
}

func traceRequest(args TraceArgs) (any, error) {
	if args.RequestID == "" {
		return nil, fmt.Errorf("request_id is required")
	}

	var timeline []event

	for _, ev := range cannedEvents {
		if ev.RequestID == args.RequestID {
			timeline = append(timeline, ev)

			if args.Limit > 0 && len(timeline) == args.Limit {
				break
			}
		}
	}

	return map[string]any{"request_id": args.RequestID, "events": timeline}, nil
}

func eventDetails(args DetailsArgs) (any, error) {
	if args.RequestID == "" {
		return nil, fmt.Errorf("request_id is required")
	}

	var details []event

	for _, ev := range cannedEvents {
		if ev.RequestID == args.RequestID {
			details = append(details, ev)
		}
	}

	// A miss is data, not a failure: the real server answers the same way.
	if len(details) == 0 {
		return map[string]any{
			"error": fmt.Sprintf("no events found for request_id: %s", args.RequestID),
		}, nil
	}

	return details, nil
}

// handle adapts one of the canned handlers to the SDK signature, honoring
// the global failure switch.
func handle[Args any](fn func(Args) (any, error)) func(context.Context, *mcp.CallToolRequest, Args) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args Args) (*mcp.CallToolResult, any, error) {
		if failingTools() {
			return nil, nil, fmt.Errorf("loki unreachable")
		}

		result, err := fn(args)

		return nil, result, err
	}
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "auditmockd",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit.search_events",
		Description: "Search audit events by namespace, operation, and status. Serves canned data.",
	}, handle(searchEvents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit.aggregate",
		Description: "Count audit events grouped by a dimension (vault_namespace, vault_operation, vault_status).",
	}, handle(aggregateEvents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit.trace",
		Description: "Trace all audit events for a specific request ID.",
	}, handle(traceRequest))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit.get_event_details",
		Description: "Retrieve the full audit events recorded for a specific request ID.",
	}, handle(eventDetails))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
