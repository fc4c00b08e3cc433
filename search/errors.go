package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is the sentinel wrapped by every construction error.
	ErrInvalidConfig = errors.New("invalid search config")

	// ErrInvalidArgument is the sentinel wrapped by every per-call error.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrConfigField reports a configuration parameter that failed validation.
type ErrConfigField struct {
	Field  string
	Value  any
	Reason string
}

func (e *ErrConfigField) Error() string {
	return fmt.Sprintf("invalid search config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ErrConfigField) Unwrap() error { return ErrInvalidConfig }

// ErrInvalidMode indicates an unrecognized selection mode.
type ErrInvalidMode struct {
	Mode string
}

func (e *ErrInvalidMode) Error() string {
	return fmt.Sprintf("unknown mode: %q", e.Mode)
}

func (e *ErrInvalidMode) Unwrap() error { return ErrInvalidArgument }

// ErrRewardLength indicates a reward vector whose length differs from the
// configured population size.
type ErrRewardLength struct {
	Expected int
	Actual   int
}

func (e *ErrRewardLength) Error() string {
	return fmt.Sprintf("reward length mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrRewardLength) Unwrap() error { return ErrInvalidArgument }
