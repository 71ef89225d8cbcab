package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kpumuk/parsebot/internal/grammar"
)

// ErrUnknownBackend reports an identifier outside the registry's closed set.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend turns Ruby source into a representation.
//
// Source the backend's grammar rejects yields a *syntax.SyntaxError. Any other
// error is a fault of the backend.
type Backend interface {
	ID() ID
	Family() Family
	Parse(ctx context.Context, code string) (Representation, error)
}

// Registry maps every identifier to exactly one backend. It is read-only after NewRegistry.
type Registry struct {
	rng      grammar.Range
	backends map[ID]Backend
	ids      []ID
}

// Option customizes a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	overrides []Backend
	native    func() (nativeParser, error)
}

// WithOverride replaces the implementation behind b.ID(). The identifier must already exist.
func WithOverride(b Backend) Option {
	return func(c *registryConfig) {
		c.overrides = append(c.overrides, b)
	}
}

// NewRegistry builds the backend table for rng.
func NewRegistry(rng grammar.Range, opts ...Option) (*Registry, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	cfg := registryConfig{native: newNativeParser}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{rng: rng, backends: map[ID]Backend{}}
	add := func(b Backend) {
		r.backends[b.ID()] = b
		r.ids = append(r.ids, b.ID())
	}
	add(sexpBackend{id: IDSexp, version: rng.Max})
	add(sexpBackend{id: IDRipper, version: rng.Max})
	add(tokenizeBackend{version: rng.Max})
	add(lexBackend{version: rng.Max})
	for _, v := range rng.Versions() {
		add(astBackend{version: v})
	}
	add(nativeBackend{newParser: cfg.native})

	for _, b := range cfg.overrides {
		if _, ok := r.backends[b.ID()]; !ok {
			return nil, fmt.Errorf("override %q: %w", b.ID(), ErrUnknownBackend)
		}
		r.backends[b.ID()] = b
	}
	return r, nil
}

// Resolve returns the backend registered for id.
func (r *Registry) Resolve(id ID) (Backend, error) {
	b, ok := r.backends[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, string(id))
	}
	return b, nil
}

// Lookup parses a user-supplied backend name, ignoring case and surrounding space.
func (r *Registry) Lookup(name string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := r.backends[id]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	return id, nil
}

// IDs lists every identifier in registration order.
func (r *Registry) IDs() []ID {
	return slices.Clone(r.ids)
}

// Versions lists the grammar versions in ascending order.
func (r *Registry) Versions() []grammar.Version {
	return r.rng.Versions()
}

// Range returns the configured grammar range.
func (r *Registry) Range() grammar.Range {
	return r.rng
}

// Default returns the identifier used when a request names no backend.
func (r *Registry) Default() ID {
	return IDSexp
}
