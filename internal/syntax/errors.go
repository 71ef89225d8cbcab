package syntax

import (
	"errors"
	"fmt"

	"github.com/kpumuk/parsebot/internal/lexer"
	"github.com/kpumuk/parsebot/internal/text"
)

// ErrTooDeep reports input nested beyond MaxDepth. Callers treat it as a fault, not a syntax error.
var ErrTooDeep = errors.New("nesting exceeds parser limit")

// SyntaxError reports source that the selected grammar rejects.
//
// It is the only error a parser backend declares for bad input; callers
// treat every other error as a fault of the backend itself.
type SyntaxError struct {
	// Backend prefixes the message when set, e.g. "parser25".
	Backend string
	Pos     text.Point
	Span    text.Span
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("(%s) %s: %s", e.Backend, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// ErrorStyle selects how unexpected-token messages are phrased.
type ErrorStyle uint8

const (
	// ErrorStyleRipper phrases errors like Ruby's own parser ("syntax error, unexpected end-of-input").
	ErrorStyleRipper ErrorStyle = iota
	// ErrorStyleParser phrases errors like the parser gem ("unexpected token $end").
	ErrorStyleParser
)

func unexpectedMessage(style ErrorStyle, tok lexer.Token) string {
	if style == ErrorStyleParser {
		return "unexpected token " + raccName(tok)
	}
	return "syntax error, unexpected " + ripperName(tok)
}

func ripperName(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.TokenEOF:
		return "end-of-input"
	case lexer.TokenIdent:
		return "local variable or method"
	case lexer.TokenConst:
		return "constant"
	case lexer.TokenIVar:
		return "instance variable"
	case lexer.TokenCVar:
		return "class variable"
	case lexer.TokenGVar:
		return "global variable"
	case lexer.TokenInt:
		return "integer literal"
	case lexer.TokenFloat:
		return "float literal"
	case lexer.TokenRational:
		return "rational literal"
	case lexer.TokenImaginary:
		return "imaginary literal"
	case lexer.TokenString, lexer.TokenWords, lexer.TokenSymbols, lexer.TokenHeredoc:
		return "string literal"
	case lexer.TokenChar:
		return "character literal"
	case lexer.TokenSymbol:
		return "symbol literal"
	case lexer.TokenLabel:
		return "label"
	case lexer.TokenRegexp:
		return "regexp literal"
	case lexer.TokenNewline:
		return `'\n'`
	case lexer.TokenKeyword:
		return "`" + tok.Text + "'"
	default:
		return "'" + tok.Text + "'"
	}
}

var raccOperators = map[string]string{
	"+": "tPLUS", "-": "tMINUS", "*": "tSTAR2", "/": "tDIVIDE", "%": "tPERCENT", "**": "tPOW",
	"=": "tEQL", "==": "tEQ", "===": "tEQQ", "!=": "tNEQ", "=~": "tMATCH", "!~": "tNMATCH",
	"<": "tLT", ">": "tGT", "<=": "tLEQ", ">=": "tGEQ", "<=>": "tCMP", "&&": "tANDOP", "||": "tOROP",
	"!": "tBANG", "&": "tAMPER2", "|": "tPIPE", "^": "tCARET", "~": "tTILDE", "<<": "tLSHFT",
	">>": "tRSHFT", "::": "tCOLON2", ":": "tCOLON", "?": "tEH", "=>": "tASSOC", "..": "tDOT2",
	"...": "tDOT3", "&.": "tANDDOT",
}

func raccName(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.TokenEOF:
		return "$end"
	case lexer.TokenIdent:
		return "tIDENTIFIER"
	case lexer.TokenConst:
		return "tCONSTANT"
	case lexer.TokenIVar:
		return "tIVAR"
	case lexer.TokenCVar:
		return "tCVAR"
	case lexer.TokenGVar:
		return "tGVAR"
	case lexer.TokenInt:
		return "tINTEGER"
	case lexer.TokenFloat:
		return "tFLOAT"
	case lexer.TokenRational:
		return "tRATIONAL"
	case lexer.TokenImaginary:
		return "tIMAGINARY"
	case lexer.TokenString:
		return "tSTRING"
	case lexer.TokenHeredoc:
		return "tSTRING_BEG"
	case lexer.TokenChar:
		return "tCHAR"
	case lexer.TokenWords:
		return "tQWORDS_BEG"
	case lexer.TokenSymbols:
		return "tQSYMBOLS_BEG"
	case lexer.TokenSymbol:
		return "tSYMBOL"
	case lexer.TokenLabel:
		return "tLABEL"
	case lexer.TokenRegexp:
		return "tREGEXP_BEG"
	case lexer.TokenNewline:
		return "tNL"
	case lexer.TokenComma:
		return "tCOMMA"
	case lexer.TokenSemicolon:
		return "tSEMI"
	case lexer.TokenPeriod:
		return "tDOT"
	case lexer.TokenLParen:
		return "tLPAREN"
	case lexer.TokenRParen:
		return "tRPAREN"
	case lexer.TokenLBracket:
		return "tLBRACK"
	case lexer.TokenRBracket:
		return "tRBRACK"
	case lexer.TokenLBrace:
		return "tLCURLY"
	case lexer.TokenRBrace:
		return "tRCURLY"
	case lexer.TokenLambda:
		return "tLAMBDA"
	case lexer.TokenKeyword:
		return keywordRaccName(tok.Text)
	case lexer.TokenOp:
		if name, ok := raccOperators[tok.Text]; ok {
			return name
		}
		if len(tok.Text) > 1 && tok.Text[len(tok.Text)-1] == '=' {
			return "tOP_ASGN"
		}
	}
	return fmt.Sprintf("%q", tok.Text)
}

func keywordRaccName(kw string) string {
	switch kw {
	case "defined?":
		return "kDEFINED"
	case "__FILE__", "__LINE__", "__ENCODING__":
		return "k" + kw
	}
	out := make([]byte, 0, len(kw)+1)
	out = append(out, 'k')
	for i := 0; i < len(kw); i++ {
		c := kw[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
