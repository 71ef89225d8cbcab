package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
)

// GoldenCase pairs a snippet with the expected rendering for one backend.
// Expected files are named <snippet>.<backend>.golden next to <snippet>.rb.
type GoldenCase struct {
	Name         string
	Backend      string
	InputPath    string
	ExpectedPath string
}

// RepoRoot returns the repository root by walking up from this source file.
func RepoRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("runtime.Caller failed")
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("repository root not found")
		}
		dir = parent
	}
}

// MustRepoRoot returns the repository root or fails the test.
func MustRepoRoot(t testing.TB) string {
	t.Helper()
	root, err := RepoRoot()
	if err != nil {
		t.Fatalf("RepoRoot: %v", err)
	}
	return root
}

// GoldenCases returns the rendering fixtures under testdata/golden, sorted by name then backend.
func GoldenCases() ([]GoldenCase, error) {
	root, err := RepoRoot()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, "testdata", "golden")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read golden dir: %w", err)
	}

	inputs := map[string]bool{}
	var cases []GoldenCase
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch filepath.Ext(name) {
		case ".rb":
			inputs[strings.TrimSuffix(name, ".rb")] = true
		case ".golden":
			snippet, backend, ok := strings.Cut(strings.TrimSuffix(name, ".golden"), ".")
			if !ok || backend == "" {
				return nil, fmt.Errorf("golden file %s is not named <snippet>.<backend>.golden", name)
			}
			cases = append(cases, GoldenCase{
				Name:         snippet,
				Backend:      backend,
				InputPath:    filepath.Join(dir, snippet+".rb"),
				ExpectedPath: filepath.Join(dir, name),
			})
		}
	}
	for _, c := range cases {
		if !inputs[c.Name] {
			return nil, fmt.Errorf("missing input fixture for %s.%s", c.Name, c.Backend)
		}
	}

	sort.Slice(cases, func(i, j int) bool {
		if cases[i].Name != cases[j].Name {
			return cases[i].Name < cases[j].Name
		}
		return cases[i].Backend < cases[j].Backend
	})
	return cases, nil
}

// ReadFile reads a fixture file or fails the test.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return b
}

// ReadSnippet reads a fixture without its trailing newlines.
func ReadSnippet(t testing.TB, path string) string {
	t.Helper()
	return strings.TrimRight(string(ReadFile(t, path)), "\n")
}
