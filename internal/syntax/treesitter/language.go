//go:build cgo

// Package treesitter wraps the tree-sitter Ruby grammar used by the native backend.
package treesitter

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
)

// Available reports whether the tree-sitter runtime is compiled in.
const Available = true

// Language returns the tree-sitter language for the Ruby grammar.
func Language() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_ruby.Language())
}
