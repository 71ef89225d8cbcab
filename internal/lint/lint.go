// Package lint runs an external Ruby linter over a snippet and returns its raw output.
package lint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/kpumuk/parsebot/internal/ctxlog"
)

const (
	// DefaultCommand is the linter binary.
	DefaultCommand = "ruby"
	// DefaultTimeout bounds one linter run.
	DefaultTimeout = 10 * time.Second
)

// DefaultArgs makes ruby check syntax with warnings enabled, reading the snippet from stdin.
var DefaultArgs = []string{"-wc"}

var (
	// ErrLinterNotInstalled is returned when the linter binary is not on PATH.
	ErrLinterNotInstalled = errors.New("linter not installed")
	// ErrLinterTimeout is returned when the linter runs longer than its timeout.
	ErrLinterTimeout = errors.New("linter timed out")
)

// Result is the outcome of one linter run. A non-zero ExitCode is not an error:
// linters exit non-zero when they report problems.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Runner invokes the linter subprocess.
type Runner struct {
	command string
	args    []string
	timeout time.Duration
}

// Option customizes a Runner.
type Option func(*Runner)

// WithCommand replaces the linter binary and its arguments.
func WithCommand(command string, args ...string) Option {
	return func(r *Runner) {
		if command != "" {
			r.command = command
			r.args = slices.Clone(args)
		}
	}
}

// WithTimeout bounds each run. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a runner for `ruby -wc` unless options say otherwise.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		command: DefaultCommand,
		args:    slices.Clone(DefaultArgs),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Command returns the linter command line.
func (r *Runner) Command() string {
	return strings.Join(append([]string{r.command}, r.args...), " ")
}

// Available reports whether the linter binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Run feeds code to the linter on stdin and returns its combined stdout and stderr.
func (r *Runner) Run(ctx context.Context, code string) (Result, error) {
	ctx, span := startLintSpan(ctx, r.command)
	defer span.End()
	start := time.Now()
	logger := ctxlog.FromContext(ctx)

	if _, err := exec.LookPath(r.command); err != nil {
		recordLint(ctx, span, r.command, resultNotInstalled, time.Since(start))
		return Result{}, fmt.Errorf("%w: %s", ErrLinterNotInstalled, r.command)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.command, r.args...)
	cmd.Stdin = strings.NewReader(code)
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		recordLint(ctx, span, r.command, resultTimeout, elapsed)
		logger.Warn("Linter timed out",
			slog.String("linter", r.command),
			slog.Duration("timeout", r.timeout),
		)
		return Result{}, fmt.Errorf("%w after %s", ErrLinterTimeout, r.timeout)
	}
	if ctx.Err() != nil {
		recordLint(ctx, span, r.command, resultFailed, elapsed)
		return Result{}, ctx.Err()
	}

	res := Result{Output: out.String(), Duration: elapsed}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		recordLint(ctx, span, r.command, resultFailed, elapsed)
		return Result{}, fmt.Errorf("run %s: %w", r.command, err)
	}

	recordLint(ctx, span, r.command, resultOK, elapsed)
	logger.Info("Lint completed",
		slog.String("linter", r.command),
		slog.Duration("duration", elapsed),
		slog.Int("exit_code", res.ExitCode),
	)
	return res, nil
}
