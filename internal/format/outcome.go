package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/compat"
	"github.com/kpumuk/parsebot/internal/dispatch"
	"github.com/kpumuk/parsebot/internal/syntax"
)

// Outcome renders a dispatch outcome. A Failure renders as its message.
func Outcome(o dispatch.Outcome, opts Options) (string, error) {
	switch o := o.(type) {
	case dispatch.Success:
		return Representation(o.Representation, opts)
	case dispatch.Failure:
		return o.Message, nil
	}
	return "", fmt.Errorf("outcome %T: %w", o, ErrUnknownVariant)
}

// Representation renders a successful backend result.
func Representation(rep backend.Representation, opts Options) (string, error) {
	norm, err := normalizeOptions(opts)
	if err != nil {
		return "", err
	}
	switch rep := rep.(type) {
	case *backend.Tree:
		if rep.Style == backend.StyleAST {
			return renderAST(rep.Root)
		}
		return renderValue(rep.Root, norm)
	case *backend.TokenStream:
		list := make(backend.List, 0, len(rep.Tokens))
		for _, tok := range rep.Tokens {
			list = append(list, backend.List{backend.Pos(tok.Pos), backend.Symbol(tok.Kind), backend.String(tok.Text)})
		}
		return renderValue(list, norm)
	case *backend.LexStream:
		list := make(backend.List, 0, len(rep.Records))
		for _, rec := range rep.Records {
			list = append(list, backend.List{
				backend.Pos(rec.Pos),
				backend.Symbol(rec.Kind),
				backend.String(rec.Text),
				backend.Raw(rec.State),
			})
		}
		return renderValue(list, norm)
	}
	return "", fmt.Errorf("representation %T: %w", rep, ErrUnknownVariant)
}

// Report renders a compatibility report, one version per line.
func Report(r compat.Report) string {
	return r.String()
}

// Fence wraps body in a chat code block.
func Fence(body string) string {
	return "```\n" + strings.TrimRight(body, "\n") + "\n```"
}

// InternalError renders errors that are not the snippet's fault: unknown backends and backend faults.
func InternalError(err error) string {
	if err == nil {
		return "internal error"
	}
	return "internal error: " + err.Error()
}

func renderValue(v backend.Value, opts Options) (string, error) {
	doc, err := valueDoc(v)
	if err != nil {
		return "", err
	}
	out, err := Render(doc, RenderOptions{LineWidth: opts.LineWidth, Indent: opts.Indent})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// valueDoc builds the pp layout of v: each array or node is a group whose
// elements break onto separate lines when the group does not fit.
func valueDoc(v backend.Value) (Doc, error) {
	switch v := v.(type) {
	case backend.List:
		if len(v) == 0 {
			return Text("[]"), nil
		}
		elems, err := valueDocs(v)
		if err != nil {
			return Doc{}, err
		}
		return Bracket("[", Join(Text(","), elems...), "]"), nil
	case *backend.Node:
		if v == nil {
			return Text("nil"), nil
		}
		head := "(" + v.Type
		if v.Loc != nil {
			head += "@" + v.Loc.String()
		}
		if len(v.Children) == 0 {
			return Text(head + ")"), nil
		}
		children, err := valueDocs(v.Children)
		if err != nil {
			return Doc{}, err
		}
		body := make([]Doc, 0, 2*len(children))
		for _, c := range children {
			body = append(body, SoftLine(), c)
		}
		return Bracket(head, Concat(body...), ")"), nil
	case nil:
		return Text("nil"), nil
	}
	s, err := scalar(v)
	if err != nil {
		return Doc{}, err
	}
	return Text(s), nil
}

func valueDocs(vs []backend.Value) ([]Doc, error) {
	docs := make([]Doc, 0, len(vs))
	for _, v := range vs {
		d, err := valueDoc(v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func scalar(v backend.Value) (string, error) {
	switch v := v.(type) {
	case backend.Symbol:
		return syntax.InspectSymbol(string(v)), nil
	case backend.String:
		return syntax.InspectString(string(v)), nil
	case backend.Int:
		return strconv.Itoa(int(v)), nil
	case backend.Raw:
		return string(v), nil
	case backend.Nil:
		return "nil", nil
	case backend.Pos:
		return fmt.Sprintf("[%d, %d]", v.Line, v.Column), nil
	}
	return "", fmt.Errorf("value %T: %w", v, ErrUnknownVariant)
}

// renderAST prints parser-gem nodes: every child node starts a new line
// indented one level deeper, other children stay on the parent's line.
func renderAST(root backend.Value) (string, error) {
	doc, err := astDoc(root)
	if err != nil {
		return "", err
	}
	out, err := Render(doc, RenderOptions{LineWidth: defaultLineWidth, Indent: astIndent})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func astDoc(v backend.Value) (Doc, error) {
	switch v := v.(type) {
	case *backend.Node:
		if v == nil {
			return Text("nil"), nil
		}
	case backend.List:
		return valueDoc(v)
	case nil:
		return Text("nil"), nil
	default:
		s, err := scalar(v)
		if err != nil {
			return Doc{}, err
		}
		return Text(s), nil
	}

	n := v.(*backend.Node)
	parts := []Doc{Text("s(:" + n.Type)}
	for _, c := range n.Children {
		d, err := astDoc(c)
		if err != nil {
			return Doc{}, err
		}
		if child, ok := c.(*backend.Node); ok && child != nil {
			parts = append(parts, Text(","), Indent(Concat(Line(), d)))
			continue
		}
		parts = append(parts, Text(", "), d)
	}
	parts = append(parts, Text(")"))
	return Concat(parts...), nil
}
