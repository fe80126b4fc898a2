// Package compliance selects how strictly host values are accepted at the
// identity boundary.
package compliance

import (
	"fmt"
	"strings"
)

// Mode selects how aggressively the boundary rejects ambiguity.
//
// Permissive mode ignores fields outside the identity shape and accepts
// integers written as decimal strings. Strict mode rejects unknown fields and
// requires integers to arrive as numbers.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

func (m Mode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "permissive" or "strict" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("invalid compliance mode %q (want permissive|strict)", s)
	}
}
