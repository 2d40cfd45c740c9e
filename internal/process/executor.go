// Package process implements bash command execution with streaming
// output, tail-truncation-with-spill, and cancellation/timeout.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/shell"
)

// ErrCommandRejected is returned when an interception hook blocks a
// command before it is spawned.
var ErrCommandRejected = errors.New("process: command rejected by interceptor")

// Interceptor may reject a command before it is launched.
type Interceptor func(command, workdir string) error

// Invocation describes one command execution request.
type Invocation struct {
	Command string
	Workdir string
	Timeout time.Duration
	// MaxBytes overrides DefaultMaxBytes for this invocation.
	MaxBytes int
	// OnChunk is called with each stream ("stdout"/"stderr") and one
	// line read from it, with a trailing newline, in arrival order,
	// interleaved across streams.
	OnChunk func(stream string, data []byte)
	// OnUpdate is called after every chunk with the tail-truncated
	// text view accumulated so far.
	OnUpdate func(tail string)
}

// Result is the outcome of running an Invocation.
type Result struct {
	Output         string
	FullOutputPath string
	ExitCode       int
	Cancelled      bool
	TimedOut       bool
	ByteTruncated  bool
	LineTruncated  bool
}

// Executor runs shell commands through a resolved shell, enforcing
// tail-truncation and cooperative cancellation.
type Executor struct {
	resolver    *shell.Resolver
	interceptor Interceptor
	logger      *slog.Logger
	gracePeriod time.Duration
}

// NewExecutor creates an Executor. shellOverride may be "" to use the
// default resolution order.
func NewExecutor(shellOverride string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		resolver:    shell.NewResolver(shellOverride),
		logger:      logger.With("component", "process_executor"),
		gracePeriod: shell.DefaultGracePeriod,
	}
}

// SetInterceptor installs a predicate invoked before every command is
// spawned; a non-nil error from it rejects the command without ever
// starting a process.
func (e *Executor) SetInterceptor(i Interceptor) {
	e.interceptor = i
}

// Run executes inv and blocks until it completes, is cancelled via
// ctx, or times out.
func (e *Executor) Run(ctx context.Context, inv Invocation) (Result, error) {
	shellPath, err := e.resolver.Resolve()
	if err != nil {
		return Result{}, fmt.Errorf("process: resolving shell: %w", err)
	}

	if e.interceptor != nil {
		if err := e.interceptor(inv.Command, inv.Workdir); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCommandRejected, err)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.Command(shellPath, "-c", inv.Command)
	cmd.Dir = inv.Workdir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("process: stderr pipe: %w", err)
	}

	buf := newTruncatingBuffer(maxBytesOrDefault(inv.MaxBytes))
	defer buf.Close()

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("process: start: %w", err)
	}

	var mu sync.Mutex
	readStream := func(stream string, r io.Reader) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := append(scanner.Bytes(), '\n')
			mu.Lock()
			buf.Write(line)
			tail, _ := buf.Output()
			mu.Unlock()

			if inv.OnChunk != nil {
				inv.OnChunk(stream, line)
			}
			if inv.OnUpdate != nil {
				inv.OnUpdate(string(tail))
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); readStream("stdout", stdout) }()
	go func() { defer wg.Done(); readStream("stderr", stderr) }()

	waitDone := make(chan error, 1)
	go func() {
		wg.Wait()
		waitDone <- cmd.Wait()
	}()

	var waitErr error
	var cancelled, timedOut bool

	select {
	case waitErr = <-waitDone:
	case <-runCtx.Done():
		if cmd.Process != nil {
			shell.KillProcessTree(cmd.Process.Pid, e.gracePeriod)
		}
		<-waitDone
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			timedOut = true
		} else {
			cancelled = true
		}
	}

	tail, lineTruncated := buf.Output()
	truncated, byteTriggered := buf.Truncated()
	_ = truncated

	result := Result{
		Output:         string(tail),
		FullOutputPath: buf.SpillPath(),
		ExitCode:       exitCode(cmd, waitErr),
		Cancelled:      cancelled,
		TimedOut:       timedOut,
		ByteTruncated:  byteTriggered,
		LineTruncated:  lineTruncated,
	}

	if cancelled || timedOut {
		result.ExitCode = -1
	}

	return result, nil
}

func maxBytesOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxBytes
	}
	return n
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
