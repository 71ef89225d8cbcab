// Package lexer provides a lossless, grammar-version aware lexer for Ruby source.
package lexer

import (
	"fmt"

	"github.com/kpumuk/parsebot/internal/text"
)

// TokenKind identifies the syntactic category of a token.
type TokenKind uint16

// TokenKind values used by the Ruby lexer.
const (
	TokenError TokenKind = iota
	TokenEOF
	TokenIdent
	TokenConst
	TokenIVar
	TokenCVar
	TokenGVar
	TokenKeyword
	TokenInt
	TokenFloat
	TokenRational
	TokenImaginary
	TokenString
	TokenSymbol
	TokenLabel
	TokenRegexp
	TokenWords
	TokenSymbols
	TokenOp
	TokenPeriod
	TokenComma
	TokenSemicolon
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenLambda
	TokenNewline
	TokenChar
	TokenHeredoc
)

// String returns the scanner event name used by Ruby's Ripper for the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenError:
		return "on_parse_error"
	case TokenEOF:
		return "on_eof"
	case TokenIdent:
		return "on_ident"
	case TokenConst:
		return "on_const"
	case TokenIVar:
		return "on_ivar"
	case TokenCVar:
		return "on_cvar"
	case TokenGVar:
		return "on_gvar"
	case TokenKeyword:
		return "on_kw"
	case TokenInt:
		return "on_int"
	case TokenFloat:
		return "on_float"
	case TokenRational:
		return "on_rational"
	case TokenImaginary:
		return "on_imaginary"
	case TokenString:
		return "on_tstring"
	case TokenSymbol:
		return "on_symbol"
	case TokenLabel:
		return "on_label"
	case TokenRegexp:
		return "on_regexp"
	case TokenWords:
		return "on_qwords"
	case TokenSymbols:
		return "on_qsymbols"
	case TokenOp:
		return "on_op"
	case TokenPeriod:
		return "on_period"
	case TokenComma:
		return "on_comma"
	case TokenSemicolon:
		return "on_semicolon"
	case TokenLParen:
		return "on_lparen"
	case TokenRParen:
		return "on_rparen"
	case TokenLBracket:
		return "on_lbracket"
	case TokenRBracket:
		return "on_rbracket"
	case TokenLBrace:
		return "on_lbrace"
	case TokenRBrace:
		return "on_rbrace"
	case TokenLambda:
		return "on_tlambda"
	case TokenNewline:
		return "on_nl"
	case TokenChar:
		return "on_CHAR"
	case TokenHeredoc:
		return "on_heredoc_beg"
	default:
		return fmt.Sprintf("TokenKind(%d)", k)
	}
}

// IsLiteral reports whether the kind is a self-contained literal value.
func (k TokenKind) IsLiteral() bool {
	switch k {
	case TokenInt, TokenFloat, TokenRational, TokenImaginary, TokenString,
		TokenSymbol, TokenRegexp, TokenWords, TokenSymbols, TokenChar, TokenHeredoc:
		return true
	default:
		return false
	}
}

// TokenFlags carry metadata about the token source.
type TokenFlags uint8

// TokenFlags values.
const (
	TokenFlagMalformed TokenFlags = 1 << iota
	// TokenFlagSpaceBefore marks tokens preceded by whitespace or a comment on the same line.
	TokenFlagSpaceBefore
	// TokenFlagLineStart marks the first token on a line.
	TokenFlagLineStart
)

// Has reports whether all bits in mask are set.
func (f TokenFlags) Has(mask TokenFlags) bool {
	return f&mask == mask
}

// Token is a lexed token with a source span, leading trivia and the lexer state after it.
type Token struct {
	Kind    TokenKind
	Span    text.Span
	Text    string
	Leading []Trivia
	State   State
	Flags   TokenFlags
	Body    text.Span // heredoc body without the terminator line
}

// Bytes returns the token bytes referenced by Span or nil if Span is invalid for src.
func (t Token) Bytes(src []byte) []byte {
	return bytesForSpan(src, t.Span)
}

// Is reports whether t is an operator or keyword token spelled s.
func (t Token) Is(kind TokenKind, s string) bool {
	return t.Kind == kind && t.Text == s
}

// IsOp reports whether t is the operator s.
func (t Token) IsOp(s string) bool {
	return t.Kind == TokenOp && t.Text == s
}

// IsKeyword reports whether t is the keyword s.
func (t Token) IsKeyword(s string) bool {
	return t.Kind == TokenKeyword && t.Text == s
}

// SpaceBefore reports whether whitespace separates t from the previous token.
func (t Token) SpaceBefore() bool {
	return t.Flags.Has(TokenFlagSpaceBefore)
}

var keywords = map[string]State{
	"alias":        StateFName | StateFItem,
	"and":          StateBeg,
	"begin":        StateBeg,
	"BEGIN":        StateEnd,
	"break":        StateMid,
	"case":         StateBeg,
	"class":        StateClass,
	"def":          StateFName,
	"defined?":     StateArg,
	"do":           StateBeg,
	"else":         StateBeg,
	"elsif":        StateBeg,
	"end":          StateEnd,
	"END":          StateEnd,
	"ensure":       StateBeg,
	"false":        StateEnd,
	"for":          StateBeg,
	"if":           StateBeg,
	"in":           StateBeg | StateLabel,
	"module":       StateBeg,
	"next":         StateMid,
	"nil":          StateEnd,
	"not":          StateArg,
	"or":           StateBeg,
	"redo":         StateEnd,
	"rescue":       StateMid,
	"retry":        StateEnd,
	"return":       StateMid,
	"self":         StateEnd,
	"super":        StateArg,
	"then":         StateBeg,
	"true":         StateEnd,
	"undef":        StateFName | StateFItem,
	"unless":       StateBeg,
	"until":        StateBeg,
	"when":         StateBeg,
	"while":        StateBeg,
	"yield":        StateArg,
	"__FILE__":     StateEnd,
	"__LINE__":     StateEnd,
	"__ENCODING__": StateEnd,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

func bytesForSpan(src []byte, sp text.Span) []byte {
	if !sp.IsValid() {
		return nil
	}
	if sp.End > text.ByteOffset(len(src)) {
		return nil
	}
	return src[sp.Start:sp.End]
}
