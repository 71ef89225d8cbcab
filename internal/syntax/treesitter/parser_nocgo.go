//go:build !cgo

// Package treesitter wraps the tree-sitter Ruby grammar used by the native backend.
package treesitter

import "context"

// Available reports whether the tree-sitter runtime is compiled in.
const Available = false

// Parser is a stub that cannot be constructed without cgo.
type Parser struct{}

// NewParser always fails in builds without cgo.
func NewParser() (*Parser, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (p *Parser) Close() {}

// Tree is an empty tree.
type Tree struct{}

// Close is a no-op.
func (t *Tree) Close() {}

// Root returns the zero node.
func (t *Tree) Root() Node {
	return Node{}
}

// Parse always fails in builds without cgo.
func (p *Parser) Parse(context.Context, []byte) (*Tree, error) {
	return nil, ErrUnavailable
}
