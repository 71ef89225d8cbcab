package lexer

import (
	"fmt"

	"github.com/kpumuk/parsebot/internal/text"
)

// TriviaKind identifies non-token source segments attached as leading trivia.
type TriviaKind uint8

// TriviaKind values describe trivia categories.
const (
	TriviaWhitespace TriviaKind = iota
	TriviaIgnoredNewline
	TriviaComment
	TriviaEmbeddedDoc
	TriviaContinuation
	TriviaHeredocBody
	TriviaHeredocEnd
	TriviaEndMarker
)

// String returns the Ripper scanner event name for the trivia kind.
func (k TriviaKind) String() string {
	switch k {
	case TriviaWhitespace, TriviaContinuation:
		return "on_sp"
	case TriviaIgnoredNewline:
		return "on_ignored_nl"
	case TriviaComment:
		return "on_comment"
	case TriviaEmbeddedDoc:
		return "on_embdoc"
	case TriviaHeredocBody:
		return "on_tstring_content"
	case TriviaHeredocEnd:
		return "on_heredoc_end"
	case TriviaEndMarker:
		return "on___end__"
	default:
		return fmt.Sprintf("TriviaKind(%d)", k)
	}
}

// IsHeredoc reports whether the trivia belongs to a heredoc body.
func (k TriviaKind) IsHeredoc() bool {
	return k == TriviaHeredocBody || k == TriviaHeredocEnd
}

// Trivia represents a non-token source span (whitespace/comments/ignored newlines).
type Trivia struct {
	Kind  TriviaKind
	Span  text.Span
	State State
}

// Bytes returns the trivia bytes referenced by Span or nil if Span is invalid for src.
func (t Trivia) Bytes(src []byte) []byte {
	return bytesForSpan(src, t.Span)
}
