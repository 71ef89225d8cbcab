package bot

import (
	"strings"
	"unicode"

	"github.com/kpumuk/parsebot/internal/backend"
)

// Command is a recognized chat command.
type Command uint8

// Command values.
const (
	CommandParse Command = iota + 1
	CommandCheckSyntax
	CommandRunLint
	CommandBackends
)

func (c Command) String() string {
	switch c {
	case CommandParse:
		return "parse"
	case CommandCheckSyntax:
		return "check-syntax"
	case CommandRunLint:
		return "run-lint"
	case CommandBackends:
		return "backends"
	}
	return "unknown"
}

var commands = map[string]Command{
	"parse":        CommandParse,
	"check-syntax": CommandCheckSyntax,
	"run-lint":     CommandRunLint,
	"backends":     CommandBackends,
}

// Request is a routed chat message. Backend is empty when the message names none.
type Request struct {
	Command Command
	Backend backend.ID
	Code    string
}

// Router matches chat messages against the command set.
type Router struct {
	name   string
	lookup func(string) (backend.ID, error)
}

// NewRouter creates a router. Messages may be addressed to name, with or without a leading @.
func NewRouter(name string, lookup func(string) (backend.ID, error)) *Router {
	return &Router{name: strings.ToLower(strings.TrimSpace(name)), lookup: lookup}
}

// Route parses msg. It reports false for messages that do not start with a command keyword.
func (r *Router) Route(msg string) (Request, bool) {
	text := r.stripName(strings.TrimSpace(msg))
	keyword, rest := cutWord(text)
	cmd, ok := commands[strings.ToLower(keyword)]
	if !ok {
		return Request{}, false
	}

	switch cmd {
	case CommandBackends:
		return Request{Command: cmd}, rest == ""
	case CommandParse:
		if rest == "" {
			return Request{}, false
		}
		// The first word names a backend only when code follows it.
		if word, code := cutWord(rest); code != "" {
			if id, err := r.lookup(word); err == nil {
				return Request{Command: cmd, Backend: id, Code: stripFence(code)}, true
			}
		}
		return Request{Command: cmd, Code: stripFence(rest)}, true
	default:
		if rest == "" {
			return Request{}, false
		}
		return Request{Command: cmd, Code: stripFence(rest)}, true
	}
}

func (r *Router) stripName(text string) string {
	if r.name == "" {
		return text
	}
	s := strings.TrimPrefix(text, "@")
	if len(s) < len(r.name) || !strings.EqualFold(s[:len(r.name)], r.name) {
		return text
	}
	s = s[len(r.name):]
	s = strings.TrimPrefix(strings.TrimPrefix(s, ":"), ",")
	if s != "" && !unicode.IsSpace(rune(s[0])) {
		return text
	}
	return strings.TrimSpace(s)
}

// cutWord splits s at the first run of whitespace.
func cutWord(s string) (word, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// stripFence removes a surrounding Markdown code span or block, including a language tag.
func stripFence(code string) string {
	code = strings.TrimSpace(code)
	switch {
	case len(code) >= 6 && strings.HasPrefix(code, "```") && strings.HasSuffix(code, "```"):
		inner := code[3 : len(code)-3]
		if first, body, ok := strings.Cut(inner, "\n"); ok && isLanguageTag(first) {
			inner = body
		}
		return strings.Trim(inner, "\n")
	case len(code) >= 2 && code[0] == '`' && code[len(code)-1] == '`' && !strings.Contains(code[1:len(code)-1], "`"):
		return code[1 : len(code)-1]
	}
	return code
}

// fenceLanguages are the info strings dropped from the first line of a ``` block.
var fenceLanguages = map[string]bool{"": true, "ruby": true, "rb": true, "irb": true}

func isLanguageTag(s string) bool {
	return fenceLanguages[strings.ToLower(strings.TrimSpace(s))]
}
