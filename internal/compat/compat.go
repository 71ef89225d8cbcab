// Package compat checks a snippet against every configured grammar version.
package compat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/dispatch"
	"github.com/kpumuk/parsebot/internal/grammar"
)

// Parser is the part of *dispatch.Dispatcher the reporter needs.
type Parser interface {
	Parse(ctx context.Context, id backend.ID, code string) (dispatch.Outcome, error)
}

// Entry is the verdict for one grammar version. Detail holds the failure message when OK is false.
type Entry struct {
	Version grammar.Version
	OK      bool
	Detail  string
}

// Report lists one entry per version in ascending order.
type Report struct {
	Entries []Entry
}

// Compatible reports whether every version accepted the snippet.
func (r Report) Compatible() bool {
	for _, e := range r.Entries {
		if !e.OK {
			return false
		}
	}
	return true
}

// Lines renders each entry as "<version>: ok" or "<version>: <message>".
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.OK {
			lines = append(lines, fmt.Sprintf("%s: ok", e.Version))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.Version, e.Detail))
	}
	return lines
}

func (r Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Reporter runs the version-specific backends for every version it was built with.
type Reporter struct {
	parser   Parser
	versions []grammar.Version
}

// New creates a reporter. Versions are sorted and deduplicated.
func New(p Parser, versions []grammar.Version) *Reporter {
	vs := make([]grammar.Version, 0, len(versions))
	seen := map[grammar.Version]bool{}
	for _, v := range versions {
		if !seen[v] {
			seen[v] = true
			vs = append(vs, v)
		}
	}
	slices.Sort(vs)
	return &Reporter{parser: p, versions: vs}
}

// Check parses code with parserNN for each version. A fault from any backend aborts the check.
func (r *Reporter) Check(ctx context.Context, code string) (Report, error) {
	report := Report{Entries: make([]Entry, 0, len(r.versions))}
	for _, v := range r.versions {
		out, err := r.parser.Parse(ctx, backend.ParserID(v), code)
		if err != nil {
			return Report{}, fmt.Errorf("check %s: %w", v, err)
		}
		switch o := out.(type) {
		case dispatch.Success:
			report.Entries = append(report.Entries, Entry{Version: v, OK: true})
		case dispatch.Failure:
			report.Entries = append(report.Entries, Entry{Version: v, Detail: o.Message})
		default:
			return Report{}, fmt.Errorf("check %s: unexpected outcome %T", v, out)
		}
	}
	return report, nil
}
