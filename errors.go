package rewardsearch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/search"
)

var (
	// ErrNilProvider is returned when a guide is built without a reward provider.
	ErrNilProvider = errors.New("reward provider is nil")

	// ErrNilEngine is returned when a guide is built without a search engine.
	ErrNilEngine = errors.New("search engine is nil")

	// ErrInvalidArgument unifies argument errors from the search engine and
	// the particle batch.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrPopulationMismatch indicates a batch whose size differs from the
// engine's particle count.
type ErrPopulationMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrPopulationMismatch) Error() string {
	return fmt.Sprintf("population mismatch: expected %d particles, got %d", e.Expected, e.Actual)
}

func (e *ErrPopulationMismatch) Unwrap() error { return ErrInvalidArgument }

// ErrRewardCount indicates a provider returned the wrong number of rewards.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrRewardCount struct {
	Provider string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrRewardCount) Error() string {
	return fmt.Sprintf("provider %q returned %d rewards, expected %d", e.Provider, e.Actual, e.Expected)
}

func (e *ErrRewardCount) Unwrap() error { return e.cause }

func translateError(err error, provider string) error {
	if err == nil {
		return nil
	}

	var rl *search.ErrRewardLength
	if errors.As(err, &rl) {
		return &ErrRewardCount{Provider: provider, Expected: rl.Expected, Actual: rl.Actual, cause: err}
	}
	if errors.Is(err, search.ErrInvalidArgument) ||
		errors.Is(err, particle.ErrShapeMismatch) ||
		errors.Is(err, particle.ErrIndexOutOfRange) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}
