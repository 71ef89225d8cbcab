package lint

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	t.Parallel()

	r := NewRunner()
	if got, want := r.Command(), "ruby -wc"; got != want {
		t.Fatalf("Command() = %q, want %q", got, want)
	}
	if r.timeout != DefaultTimeout {
		t.Fatalf("timeout = %s, want %s", r.timeout, DefaultTimeout)
	}

	r = NewRunner(WithCommand(""), WithTimeout(0))
	if r.Command() != "ruby -wc" || r.timeout != DefaultTimeout {
		t.Fatalf("empty options changed runner: %q %s", r.Command(), r.timeout)
	}
}

func TestRunReturnsCombinedOutput(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := NewRunner(WithCommand("sh", "-c", "cat; echo 'warning: unused' >&2; exit 1"))
	res, err := r.Run(context.Background(), "x = 1\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := "x = 1\nwarning: unused\n"; res.Output != want {
		t.Fatalf("Output = %q, want %q", res.Output, want)
	}
	if res.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", res.ExitCode)
	}
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()
	requireShell(t)

	res, err := NewRunner(WithCommand("sh", "-c", "echo Syntax OK")).Run(context.Background(), "1 + 1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Output != "Syntax OK\n" || res.ExitCode != 0 {
		t.Fatalf("Run() = %+v, want Syntax OK and exit 0", res)
	}
}

func TestRunNotInstalled(t *testing.T) {
	t.Parallel()

	r := NewRunner(WithCommand("parsebot-no-such-linter"))
	if r.Available() {
		t.Fatal("Available() = true, want false")
	}
	_, err := r.Run(context.Background(), "x")
	if !errors.Is(err, ErrLinterNotInstalled) {
		t.Fatalf("Run() error = %v, want ErrLinterNotInstalled", err)
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := NewRunner(WithCommand("sh", "-c", "exec sleep 5"), WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := r.Run(context.Background(), "")
	if !errors.Is(err, ErrLinterTimeout) {
		t.Fatalf("Run() error = %v, want ErrLinterTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Run() took %s, want prompt timeout", elapsed)
	}
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(WithCommand("sh", "-c", "cat")).Run(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
