// Package grammar describes the Ruby grammar versions understood by the parser backends.
package grammar

import (
	"fmt"
	"strconv"
)

// Version is a Ruby grammar version encoded as major*10+minor (18 is Ruby 1.8, 27 is Ruby 2.7).
type Version int

// Supported grammar versions.
const (
	MinSupported Version = 18
	MaxSupported Version = 27
)

// IsSupported reports whether a feature table exists for v.
func (v Version) IsSupported() bool {
	return v >= MinSupported && v <= MaxSupported
}

// Dotted returns the Ruby release spelling ("2.7").
func (v Version) Dotted() string {
	return fmt.Sprintf("%d.%d", int(v)/10, int(v)%10)
}

func (v Version) String() string {
	return strconv.Itoa(int(v))
}

// ParseVersion parses "27" or "2.7".
func ParseVersion(s string) (Version, error) {
	if len(s) == 3 && s[1] == '.' {
		s = s[:1] + s[2:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid grammar version %q", s)
	}
	v := Version(n)
	if !v.IsSupported() {
		return 0, fmt.Errorf("unsupported grammar version %q (supported %s..%s)", s, MinSupported, MaxSupported)
	}
	return v, nil
}

// Range is an inclusive range of grammar versions.
type Range struct {
	Min Version
	Max Version
}

// DefaultRange covers every supported version.
func DefaultRange() Range {
	return Range{Min: MinSupported, Max: MaxSupported}
}

// Validate reports whether r is non-empty and fully supported.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("invalid grammar range %s..%s: min > max", r.Min, r.Max)
	}
	if !r.Min.IsSupported() || !r.Max.IsSupported() {
		return fmt.Errorf("grammar range %s..%s outside supported %s..%s", r.Min, r.Max, MinSupported, MaxSupported)
	}
	return nil
}

// Contains reports whether v is within the range.
func (r Range) Contains(v Version) bool {
	return v >= r.Min && v <= r.Max
}

// Versions lists the range in ascending order.
func (r Range) Versions() []Version {
	if r.Min > r.Max {
		return nil
	}
	out := make([]Version, 0, int(r.Max-r.Min)+1)
	for v := r.Min; v <= r.Max; v++ {
		out = append(out, v)
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Min, r.Max)
}
