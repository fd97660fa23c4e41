package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcpprobe/mcpprobe/internal/config"
	"github.com/mcpprobe/mcpprobe/internal/probeerr"
	"github.com/mcpprobe/mcpprobe/internal/wire"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading server output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// ServerTransport implements Transport by spawning the MCP server subprocess.
//
// The transport exclusively owns the process handle and both stream ends.
// All synchronization with the server is via the byte channel; the only
// cancellation primitive is terminating the process, which unblocks any
// pending read with end-of-stream.
type ServerTransport struct {
	log            *slog.Logger
	command        []string
	cwd            string
	env            map[string]string
	gracePeriod    time.Duration
	stderrCallback func(string)

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	procDone chan struct{} // closed once cmd.Wait has returned

	mu          sync.Mutex // Protects stdin writes and lifecycle flags
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool       // Whether stdin was closed
	reading     bool       // Whether ReadEnvelopes has been started
}

// Compile-time verification that ServerTransport implements the Transport interface.
var _ config.Transport = (*ServerTransport)(nil)

// NewServerTransport creates a transport for the given server command.
//
// The command is argv-style: command[0] is the executable, the rest are its
// arguments. The environment overrides in options.Env are appended to the
// inherited environment unmodified. Spawning is deferred to Start().
func NewServerTransport(
	log *slog.Logger,
	command []string,
	options *config.Options,
) *ServerTransport {
	grace := options.GracePeriod
	if grace <= 0 {
		grace = config.DefaultGracePeriod
	}

	return &ServerTransport{
		log:            log.With("component", "server_transport"),
		command:        command,
		cwd:            options.Cwd,
		env:            options.Env,
		gracePeriod:    grace,
		stderrCallback: options.Stderr,
	}
}

// Start spawns the server subprocess.
//
// The executable is resolved through PATH when the command does not contain
// a path separator. Returns SpawnError if the process cannot be launched.
func (t *ServerTransport) Start(ctx context.Context) error {
	if len(t.command) == 0 {
		return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("empty command")}
	}

	t.log.Info("Starting MCP server subprocess", "command", t.command)

	path, err := exec.LookPath(t.command[0])
	if err != nil {
		return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("resolve executable: %w", err)}
	}

	cwd := t.cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("get working directory: %w", err)}
		}
	}

	//nolint:gosec // G204: Subprocess launching with dynamic args is the point of a probe
	cmd := exec.Command(path, t.command[1:]...)
	cmd.Dir = cwd
	cmd.Env = buildEnvironment(t.env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &probeerr.SpawnError{Command: t.command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start server process", "error", err)

		return &probeerr.SpawnError{Command: t.command, Err: err}
	}

	t.cmd = cmd
	t.procDone = make(chan struct{})
	t.log.Info("MCP server subprocess started", "pid", cmd.Process.Pid, "cwd", cwd)

	return nil
}

// ReadEnvelopes reads line-delimited envelopes from the server stdout.
//
// This method starts a goroutine that scans stdout line by line, decodes
// each line as a wire.Envelope, and sends it to the envelope channel. Lines
// that fail to decode are sent to the error channel as DecodeError; the
// scanner keeps going, but the correlation layer treats the fault as
// terminal for the in-flight attempt.
//
// The goroutine exits when the server closes its output. Both channels are
// closed on exit; closure with no pending error is the end-of-stream
// signal. If the process exited with a failure and Close was not the cause,
// a ProcessError carrying captured stderr is sent before closing.
func (t *ServerTransport) ReadEnvelopes(
	ctx context.Context,
) (<-chan *wire.Envelope, <-chan error) {
	envelopes := make(chan *wire.Envelope)
	errs := make(chan error, 1)

	t.mu.Lock()
	t.reading = true
	t.mu.Unlock()

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be drained before Wait(); see os/exec.Cmd.StderrPipe docs.
	g := &errgroup.Group{}

	g.Go(func() error {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}

		return nil
	})

	go func() {
		defer close(envelopes)
		defer close(errs)
		defer t.log.Debug("ReadEnvelopes goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		envelopeCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

				t.finishWait(&stderrMu, &stderrBuffer, g, nil)

				return
			default:
			}

			line := scanner.Bytes()

			env, err := wire.Decode(line)
			if err != nil {
				t.log.Debug("Failed to decode envelope", "error", err, "line", string(line))

				select {
				case errs <- err:
				case <-ctx.Done():
					t.finishWait(&stderrMu, &stderrBuffer, g, nil)

					return
				}

				continue
			}

			envelopeCount++
			t.log.Debug("Received envelope from server",
				"kind", env.Kind().String(), "envelope_count", envelopeCount)

			select {
			case envelopes <- env:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during envelope send", "error", ctx.Err())

				errs <- ctx.Err()

				t.finishWait(&stderrMu, &stderrBuffer, g, nil)

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading server output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		t.finishWait(&stderrMu, &stderrBuffer, g, errs)
	}()

	return envelopes, errs
}

// finishWait drains stderr, waits for the process to exit, and reports a
// ProcessError on errs (when non-nil) if the exit was a failure that Close
// did not cause. It closes procDone so Close can observe the exit.
func (t *ServerTransport) finishWait(
	stderrMu *sync.Mutex,
	stderrBuffer *strings.Builder,
	g *errgroup.Group,
	errs chan<- error,
) {
	defer close(t.procDone)

	_ = g.Wait()

	t.log.Debug("Waiting for server process to exit")

	err := t.cmd.Wait()
	if err == nil {
		t.log.Info("Server process exited cleanly")

		return
	}

	t.mu.Lock()
	isClosing := t.closing
	t.mu.Unlock()

	if isClosing || errs == nil {
		t.log.Debug("Server process terminated during shutdown")

		return
	}

	stderrMu.Lock()
	stderrOutput := stderrBuffer.String()
	stderrMu.Unlock()

	exitCode := 0

	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		exitCode = exitErr.ExitCode()
	}

	t.log.Error("Server process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

	procErr := &probeerr.ProcessError{
		ExitCode: exitCode,
		Stderr:   stderrOutput,
		Err:      err,
	}

	// The error buffer may already hold an unconsumed fault (e.g. a decode
	// failure from the same broken server). That fault is what aborts the
	// session; dropping the exit report here beats wedging the goroutine.
	select {
	case errs <- procErr:
	default:
		t.log.Warn("Error channel full, dropping process exit report", "error", procErr)
	}
}

// SendMessage writes one encoded envelope to the server stdin.
//
// The data should be a complete JSON envelope; a newline is appended if
// missing. Safe for concurrent use. If the context is cancelled during a
// blocked write, stdin is closed to unblock the goroutine (safe since
// Go 1.9+); subsequent calls return ErrStdinClosed.
func (t *ServerTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return probeerr.ErrTransportNotStarted
	}

	if t.stdinClosed {
		return probeerr.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending envelope to server", "data_len", len(data))

	// Explicit copy so a slice with spare capacity is not mutated in place.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write envelope to server", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
func (t *ServerTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed
}

// Close terminates the server process.
//
// Shutdown sequence: close stdin (the graceful shutdown request for a stdio
// server), send SIGTERM, wait up to the grace period for the process to
// exit, then force-kill. Close never returns a termination failure - the
// process is being discarded regardless. Safe to call multiple times and on
// an already-exited process.
func (t *ServerTransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true

	if t.stdin != nil && !t.stdinClosed {
		_ = t.stdin.Close()
	}

	t.stdinClosed = true
	cmd := t.cmd
	procDone := t.procDone
	reading := t.reading
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	t.log.Debug("Terminating server process", "pid", cmd.Process.Pid, "grace_period", t.gracePeriod)

	_ = cmd.Process.Signal(syscall.SIGTERM)

	// The ReadEnvelopes goroutine owns cmd.Wait; procDone closes once the
	// exit has been observed. Without a reader there is nobody to wait, so
	// skip straight to the kill.
	if reading && procDone != nil {
		select {
		case <-procDone:
			t.log.Debug("Server process exited within grace period")

			return nil
		case <-time.After(t.gracePeriod):
			t.log.Warn("Server process did not exit within grace period, killing")
		}
	}

	// Kill failures are swallowed: the process may already be gone.
	_ = cmd.Process.Kill()

	return nil
}

// buildEnvironment constructs the environment for the server process:
// the inherited environment plus the configured overrides, unmodified.
func buildEnvironment(overrides map[string]string) []string {
	env := os.Environ()

	for key, value := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
