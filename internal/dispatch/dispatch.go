// Package dispatch routes a parse request to one backend and classifies the result.
//
// Every call ends in exactly one of three ways: an Outcome (Success or
// Failure), backend.ErrUnknownBackend for an identifier outside the registry,
// or a *BackendFault when the backend broke for reasons other than the
// snippet's syntax.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/ctxlog"
	"github.com/kpumuk/parsebot/internal/syntax"
)

// Outcome is either Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries the backend's representation of the snippet.
type Success struct {
	Representation backend.Representation
}

// Failure carries the syntax error message reported by the backend.
type Failure struct {
	Message string
}

func (Success) outcome() {}
func (Failure) outcome() {}

// BackendFault reports a backend that failed for a reason other than a syntax error.
type BackendFault struct {
	Backend backend.ID
	Err     error
}

func (e *BackendFault) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendFault) Unwrap() error {
	return e.Err
}

// Request is one parse request. An empty Backend selects the default.
type Request struct {
	Backend backend.ID
	Code    string
}

// Dispatcher resolves identifiers against a registry and runs the selected backend.
type Dispatcher struct {
	reg *backend.Registry
	def backend.ID
	now func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithDefault replaces the registry's default backend.
func WithDefault(id backend.ID) Option {
	return func(d *Dispatcher) {
		if id != "" {
			d.def = id
		}
	}
}

// New creates a dispatcher over reg.
func New(reg *backend.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{reg: reg, def: reg.Default(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Default returns the identifier used for requests that name no backend.
func (d *Dispatcher) Default() backend.ID {
	return d.def
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *backend.Registry {
	return d.reg
}

// ParseRequest is Parse for a Request value.
func (d *Dispatcher) ParseRequest(ctx context.Context, req Request) (Outcome, error) {
	return d.Parse(ctx, req.Backend, req.Code)
}

// Parse runs code through the backend named by id.
func (d *Dispatcher) Parse(ctx context.Context, id backend.ID, code string) (Outcome, error) {
	if id == "" {
		id = d.def
	}
	ctx, span := startParseSpan(ctx, id, len(code))
	defer span.End()
	start := d.now()
	logger := ctxlog.FromContext(ctx)

	b, err := d.reg.Resolve(id)
	if err != nil {
		recordParse(ctx, span, id, resultUnknown, d.now().Sub(start))
		return nil, err
	}

	rep, err := run(ctx, b, code)
	var synErr *syntax.SyntaxError
	switch {
	case err == nil:
		recordParse(ctx, span, id, resultOK, d.now().Sub(start))
		logger.Debug("parse succeeded", slog.String("backend", string(id)))
		return Success{Representation: rep}, nil
	case errors.As(err, &synErr):
		recordParse(ctx, span, id, resultSyntaxError, d.now().Sub(start))
		logger.Debug("parse rejected",
			slog.String("backend", string(id)),
			slog.String("error", synErr.Error()),
		)
		return Failure{Message: synErr.Error()}, nil
	default:
		recordParse(ctx, span, id, resultFault, d.now().Sub(start))
		span.RecordError(err)
		logger.Debug("backend fault", slog.String("backend", string(id)), slog.Any("error", err))
		return nil, &BackendFault{Backend: id, Err: err}
	}
}

// run calls b.Parse and turns a panic into an error.
func run(ctx context.Context, b backend.Backend, code string) (rep backend.Representation, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep = nil
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	rep, err = b.Parse(ctx, code)
	if err == nil && rep == nil {
		err = errors.New("backend returned no representation")
	}
	return rep, err
}
