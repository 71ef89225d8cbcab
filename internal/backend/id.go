// Package backend holds the closed catalog of Ruby syntax-analysis backends.
package backend

import (
	"strconv"
	"strings"

	"github.com/kpumuk/parsebot/internal/grammar"
)

// ID identifies a backend. The set of valid identifiers is closed and fixed when a Registry is built.
type ID string

// Backend identifiers that do not depend on the grammar range.
const (
	IDSexp     ID = "sexp"
	IDRipper   ID = "ripper"
	IDTokenize ID = "tokenize"
	IDLex      ID = "lex"
	IDRubyVM   ID = "rubyvm"
)

const parserPrefix = "parser"

// ParserID returns the identifier of the grammar backend for v ("parser27").
func ParserID(v grammar.Version) ID {
	return ID(parserPrefix + v.String())
}

// Version returns the grammar version of a parserNN identifier.
func (id ID) Version() (grammar.Version, bool) {
	digits, ok := strings.CutPrefix(string(id), parserPrefix)
	if !ok || len(digits) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return grammar.Version(n), true
}

func (id ID) String() string {
	return string(id)
}

// Family groups backends by the kind of representation they return.
type Family uint8

// Family values.
const (
	// FamilySexp is the default structural parser returning Ripper-style nested lists.
	FamilySexp Family = iota + 1
	// FamilyTokenize returns significant tokens as (position, kind, text).
	FamilyTokenize
	// FamilyLex returns every scanner event with its lexer state.
	FamilyLex
	// FamilyAST returns a node tree: grammar-version ASTs and the native tree.
	FamilyAST
)

func (f Family) String() string {
	switch f {
	case FamilySexp:
		return "sexp"
	case FamilyTokenize:
		return "tokenize"
	case FamilyLex:
		return "lex"
	case FamilyAST:
		return "ast"
	default:
		return "Family(" + strconv.Itoa(int(f)) + ")"
	}
}
