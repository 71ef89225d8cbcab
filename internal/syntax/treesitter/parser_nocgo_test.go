//go:build !cgo

package treesitter

import (
	"errors"
	"testing"
)

func TestNewParserUnavailableWithoutCgo(t *testing.T) {
	t.Parallel()

	if _, err := NewParser(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("NewParser() error = %v, want ErrUnavailable", err)
	}
}
