package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kpumuk/parsebot/internal/grammar"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if got := cfg.Grammar.Range(); got != grammar.DefaultRange() {
		t.Fatalf("Range() = %s, want %s", got, grammar.DefaultRange())
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
bot:
  name: rubybot
grammar:
  min_version: 22
lint:
  args: ["-w", "-c"]
  timeout: 3s
log:
  format: json
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := Default()
	want.Bot.Name = "rubybot"
	want.Grammar.MinVersion = 22
	want.Lint.Args = []string{"-w", "-c"}
	want.Lint.Timeout = 3 * time.Second
	want.Log.Format = "json"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("Parse(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"grammar:\n  min_version: 17\n",
		"grammar:\n  min_version: 27\n  max_version: 26\n",
		"lint:\n  timeout: 0s\n",
		"format:\n  line_width: -1\n",
		"log:\n  level: loud\n",
		"log:\n  format: xml\n",
		"bot:\n  name: ''\n",
		"unknown: true\n",
		"lint: [",
	} {
		if _, err := Parse([]byte(src)); err == nil {
			t.Fatalf("Parse(%q) error = nil, want error", src)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("Listen = %q, want :8080", cfg.Server.Listen)
	}

	path := filepath.Join(t.TempDir(), "parsebot.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: 127.0.0.1:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Fatalf("Listen = %q, want 127.0.0.1:9000", cfg.Server.Listen)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load(missing) error = nil, want error")
	}
}
