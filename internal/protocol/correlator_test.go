package protocol

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

// feed builds a reader over buffered channels pre-loaded with the given
// envelopes, mimicking a transport whose stream already holds them.
func feed(t *testing.T, lines ...string) (*Reader, chan *wire.Envelope, chan error) {
	t.Helper()

	envelopes := make(chan *wire.Envelope, len(lines)+8)
	errs := make(chan error, 1)

	for _, line := range lines {
		env, err := wire.Decode([]byte(line))
		require.NoError(t, err)

		envelopes <- env
	}

	return NewReader(testLogger(), envelopes, errs), envelopes, errs
}

func response(id int64) string {
	return `{"jsonrpc":"2.0","id":` + strconv.FormatInt(id, 10) + `,"result":{"ok":true}}`
}

func notification(method string) string {
	return `{"jsonrpc":"2.0","method":"` + method + `"}`
}

func TestAwaitResponse_InterleavedNotifications(t *testing.T) {
	// N notifications arrive before the matching response: all N must be
	// observed, in arrival order, and the response returned.
	reader, envelopes, _ := feed(t,
		notification("notifications/progress.1"),
		notification("notifications/progress.2"),
		notification("notifications/progress.3"),
		response(7),
	)
	close(envelopes)

	var observed []string

	correlator := NewCorrelator(testLogger(), func(env *wire.Envelope) {
		observed = append(observed, env.Method)
	})

	env, err := correlator.AwaitResponse(context.Background(), 7, reader)
	require.NoError(t, err)
	require.NotNil(t, env.ID)
	require.Equal(t, int64(7), *env.ID)
	require.Equal(t, []string{
		"notifications/progress.1",
		"notifications/progress.2",
		"notifications/progress.3",
	}, observed)
}

func TestAwaitResponse_NoNotifications(t *testing.T) {
	reader, envelopes, _ := feed(t, response(0))
	close(envelopes)

	calls := 0

	correlator := NewCorrelator(testLogger(), func(*wire.Envelope) { calls++ })

	env, err := correlator.AwaitResponse(context.Background(), 0, reader)
	require.NoError(t, err)
	require.Equal(t, int64(0), *env.ID)
	require.Zero(t, calls)
}

func TestAwaitResponse_IdentifierMismatch(t *testing.T) {
	// Under the single-outstanding-request discipline an unexpected id is a
	// protocol violation, never silently ignored or matched.
	reader, envelopes, _ := feed(t, response(99))
	close(envelopes)

	correlator := NewCorrelator(testLogger(), nil)

	_, err := correlator.AwaitResponse(context.Background(), 3, reader)
	require.Error(t, err)

	mismatch, ok := stderrors.AsType[*probeerr.UnexpectedResponseError](err)
	require.True(t, ok, "expected UnexpectedResponseError, got %T", err)
	require.Equal(t, int64(3), mismatch.Want)
	require.Equal(t, int64(99), mismatch.Got)
}

func TestAwaitResponse_StaleResponseAfterReuse(t *testing.T) {
	// An identifier may be reused once its response resolved. A duplicate
	// (stale) response under the old id must fault, not match the new
	// request.
	reader, envelopes, _ := feed(t,
		response(0),
		response(0), // stale duplicate
	)
	close(envelopes)

	correlator := NewCorrelator(testLogger(), nil)

	ctx := context.Background()

	first, err := correlator.AwaitResponse(ctx, 0, reader)
	require.NoError(t, err)
	require.Equal(t, int64(0), *first.ID)

	_, err = correlator.AwaitResponse(ctx, 1, reader)
	require.Error(t, err)

	_, ok := stderrors.AsType[*probeerr.UnexpectedResponseError](err)
	require.True(t, ok, "expected UnexpectedResponseError, got %T", err)
}

func TestAwaitResponse_EndOfStream(t *testing.T) {
	// Closure before any matching response is the normal "server exited"
	// signal: no hang, no misclassified empty result.
	reader, envelopes, _ := feed(t, notification("notifications/progress"))
	close(envelopes)

	correlator := NewCorrelator(testLogger(), nil)

	_, err := correlator.AwaitResponse(context.Background(), 1, reader)
	require.ErrorIs(t, err, probeerr.ErrEndOfStream)
}

func TestAwaitResponse_DecodeFault(t *testing.T) {
	// A corrupted stream cannot be trusted to contain the awaited
	// identifier: the attempt aborts with the transport's DecodeError.
	reader, envelopes, errs := feed(t)
	errs <- &probeerr.DecodeError{RawLine: "not-json"}
	close(errs)
	close(envelopes)

	correlator := NewCorrelator(testLogger(), nil)

	_, err := correlator.AwaitResponse(context.Background(), 1, reader)
	require.Error(t, err)

	decodeErr, ok := stderrors.AsType[*probeerr.DecodeError](err)
	require.True(t, ok, "expected DecodeError, got %T", err)
	require.Equal(t, "not-json", decodeErr.RawLine)
}

func TestAwaitResponse_GarbledLineBeforeMatchingResponse(t *testing.T) {
	// The garbled line precedes the matching response in stream order, so
	// the attempt must abort even though the response is already available.
	for i := 0; i < 100; i++ {
		reader, _, errs := feed(t, response(7))
		errs <- &probeerr.DecodeError{RawLine: "not-json"}

		_, err := NewCorrelator(testLogger(), nil).AwaitResponse(context.Background(), 7, reader)
		require.Error(t, err)

		_, ok := stderrors.AsType[*probeerr.DecodeError](err)
		require.True(t, ok, "expected DecodeError, got %T", err)
	}
}

func TestAwaitResponse_ContextCancellation(t *testing.T) {
	// Nothing ever arrives; cancellation must unblock the caller.
	reader, _, _ := feed(t)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := NewCorrelator(testLogger(), nil).AwaitResponse(ctx, 1, reader)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitResponse did not unblock on cancellation")
	}
}
