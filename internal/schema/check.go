// Package schema audits the input schemas advertised by an MCP server.
//
// tools/list responses declare a JSON Schema per tool. A schema that does
// not compile is a server defect worth reporting even when the tool itself
// answers calls, so the probe resolves each one and records the outcome as
// a per-tool finding.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Finding is the audit outcome for one advertised tool.
type Finding struct {
	Tool string
	Err  error // nil when the schema compiled
}

// OK reports whether the tool's schema compiled.
func (f Finding) OK() bool {
	return f.Err == nil
}

// CheckTool compiles one tool's declared inputSchema. A missing schema is
// reported as a finding: the invocation verb requires arguments to be
// validated against something.
func CheckTool(name string, inputSchema json.RawMessage) Finding {
	if len(inputSchema) == 0 {
		return Finding{Tool: name, Err: fmt.Errorf("tool %q declares no input schema", name)}
	}

	var s jsonschema.Schema

	if err := json.Unmarshal(inputSchema, &s); err != nil {
		return Finding{Tool: name, Err: fmt.Errorf("tool %q input schema is not a JSON Schema: %w", name, err)}
	}

	if _, err := s.Resolve(nil); err != nil {
		return Finding{Tool: name, Err: fmt.Errorf("tool %q input schema does not resolve: %w", name, err)}
	}

	return Finding{Tool: name}
}
