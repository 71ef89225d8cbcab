package backend

import "github.com/kpumuk/parsebot/internal/text"

// Representation is the successful result of a backend: *Tree, *TokenStream or *LexStream.
type Representation interface {
	representation()
}

// TreeStyle selects how a tree is printed.
type TreeStyle uint8

// TreeStyle values.
const (
	// StyleSexp prints nested Ruby arrays: [:program, [[:@int, "1", [1, 0]]]].
	StyleSexp TreeStyle = iota
	// StyleAST prints parser-gem nodes: s(:int, 1).
	StyleAST
	// StyleNative prints located native nodes: (program@1:0-1:1 ...).
	StyleNative
)

// Tree is a structured parse result.
type Tree struct {
	Style TreeStyle
	Root  Value
}

// Token is one significant token.
type Token struct {
	Pos  text.Point
	Kind string
	Text string
}

// TokenStream is the ordered list of significant tokens.
type TokenStream struct {
	Tokens []Token
}

// LexRecord is one scanner event with the lexer state after it.
type LexRecord struct {
	Pos   text.Point
	Kind  string
	Text  string
	State string
}

// LexStream is the ordered list of scanner events, whitespace and comments included.
type LexStream struct {
	Records []LexRecord
}

func (*Tree) representation()        {}
func (*TokenStream) representation() {}
func (*LexStream) representation()   {}

// Value is an element of a Tree: *Node, List, Symbol, String, Int, Raw, Nil or Pos.
type Value interface {
	value()
}

// Node is a typed tree node. Loc is set by the native backend.
type Node struct {
	Type     string
	Children []Value
	Loc      *text.Range
}

// List is a Ruby array.
type List []Value

// Symbol is a Ruby symbol, printed as :name.
type Symbol string

// String is a Ruby string, printed quoted.
type String string

// Int is a small integer.
type Int int

// Raw is printed verbatim (floats, rationals, big integers, lexer states).
type Raw string

// Nil is Ruby's nil.
type Nil struct{}

// Pos is a [line, column] pair.
type Pos text.Point

func (*Node) value()  {}
func (List) value()   {}
func (Symbol) value() {}
func (String) value() {}
func (Int) value()    {}
func (Raw) value()    {}
func (Nil) value()    {}
func (Pos) value()    {}
