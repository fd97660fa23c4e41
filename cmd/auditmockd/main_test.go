package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchEvents_FiltersAndLimit(t *testing.T) {
	result, err := searchEvents(SearchArgs{Namespace: "root", Limit: 2})
	require.NoError(t, err)

	payload := result.(map[string]any)
	require.Equal(t, 2, payload["total"])

	for _, ev := range payload["events"].([]event) {
		require.Equal(t, "root", ev.Namespace)
	}
}

func TestAggregateEvents_ByOperation(t *testing.T) {
	result, err := aggregateEvents(AggregateArgs{By: "vault_operation"})
	require.NoError(t, err)

	buckets := result.(map[string]int)
	require.Equal(t, 3, buckets["read"])
	require.Equal(t, 1, buckets["write"])
}

func TestAggregateEvents_InvalidDimension(t *testing.T) {
	_, err := aggregateEvents(AggregateArgs{By: "vault_color"})
	require.ErrorContains(t, err, "invalid 'by' parameter")
}

func TestTraceRequest_Timeline(t *testing.T) {
	result, err := traceRequest(TraceArgs{RequestID: "req-001"})
	require.NoError(t, err)

	payload := result.(map[string]any)
	require.Len(t, payload["events"].([]event), 2)
}

func TestTraceRequest_RequiresRequestID(t *testing.T) {
	_, err := traceRequest(TraceArgs{})
	require.ErrorContains(t, err, "request_id is required")
}

func TestEventDetails_ReturnsAllEventsForRequest(t *testing.T) {
	result, err := eventDetails(DetailsArgs{RequestID: "req-001"})
	require.NoError(t, err)

	details := result.([]event)
	require.Len(t, details, 2)
	require.Equal(t, "secret/data/app", details[0].Path)
	require.Equal(t, "auth/token/lookup", details[1].Path)
}

func TestEventDetails_MissIsDataNotError(t *testing.T) {
	result, err := eventDetails(DetailsArgs{RequestID: "req-404"})
	require.NoError(t, err)

	payload := result.(map[string]any)
	require.Contains(t, payload["error"], "no events found for request_id: req-404")
}

func TestEventDetails_RequiresRequestID(t *testing.T) {
	_, err := eventDetails(DetailsArgs{})
	require.ErrorContains(t, err, "request_id is required")
}
