package process

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestExecutorRunSimpleCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	e := NewExecutor("", nil)
	result, err := e.Run(context.Background(), Invocation{Command: "echo hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if result.Cancelled || result.TimedOut {
		t.Fatalf("did not expect cancellation or timeout")
	}
}

func TestExecutorRunNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	e := NewExecutor("", nil)
	result, err := e.Run(context.Background(), Invocation{Command: "exit 3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestExecutorCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	e := NewExecutor("", nil)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := e.Run(ctx, Invocation{Command: "sleep 10"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Cancelled {
		t.Fatalf("expected cancelled=true")
	}
	if result.ExitCode != -1 {
		t.Fatalf("expected exit code -1 on cancel, got %d", result.ExitCode)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("cancellation took too long: %v", elapsed)
	}
}

func TestExecutorTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	e := NewExecutor("", nil)
	result, err := e.Run(context.Background(), Invocation{
		Command: "sleep 10",
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected timedOut=true")
	}
}

func TestExecutorInterceptorRejects(t *testing.T) {
	e := NewExecutor("", nil)
	e.SetInterceptor(func(command, workdir string) error {
		if strings.Contains(command, "rm -rf") {
			return context.Canceled
		}
		return nil
	})

	_, err := e.Run(context.Background(), Invocation{Command: "rm -rf /"})
	if err == nil {
		t.Fatalf("expected rejection error")
	}
}
