package search

import (
	"fmt"
	"strings"
)

// Mode selects how particles are drawn within a group.
type Mode int

const (
	// Deterministic fills a group with its top particle and reserves
	// ceil(size/8) slots for the runner-up when the group has at least 8 members.
	Deterministic Mode = iota

	// Probabilistic draws with replacement from the group's normalized scores.
	Probabilistic
)

func (m Mode) String() string {
	switch m {
	case Deterministic:
		return "deterministic"
	case Probabilistic:
		return "probabilistic"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseMode parses "deterministic" or "probabilistic" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deterministic":
		return Deterministic, nil
	case "probabilistic":
		return Probabilistic, nil
	default:
		return 0, &ErrInvalidMode{Mode: s}
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Deterministic || m == Probabilistic
}
