package search

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

// epsilon keeps the distance transform finite when all rewards are equal.
const epsilon = 1e-8

// Engine is the group-hierarchical resampling engine.
//
// An Engine is immutable apart from its random source. Deterministic searches
// are safe for concurrent use; probabilistic searches draw from the engine's
// *rand.Rand, which is not goroutine-safe, so each sampling run should own
// its engine.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used by probabilistic mode.
// If nil is passed, the default seeded source is kept.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed seeds the probabilistic source with a PCG generator.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger for resampling events. Pass nil to disable.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		e.logger = logger
	}
}

// New validates cfg and returns an Engine.
func New(cfg Config, optFns ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	WithSeed(0)(e)
	for _, fn := range optFns {
		if fn != nil {
			fn(e)
		}
	}
	return e, nil
}

// MustNew is like New but panics on an invalid config.
func MustNew(cfg Config, optFns ...Option) *Engine {
	e, err := New(cfg, optFns...)
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// NumParticles returns the population size.
func (e *Engine) NumParticles() int { return e.cfg.NumParticles }

// Resamples reports whether step triggers resampling.
func (e *Engine) Resamples(step int) bool {
	return step > 0 && step%e.cfg.Base == 0
}

// GroupSize returns the group size used at step. It is only meaningful on
// resampling steps and returns 0 otherwise.
func (e *Engine) GroupSize(step int) int {
	if !e.Resamples(step) {
		return 0
	}
	k := step / e.cfg.Base
	return min(Lowbit(k)*e.cfg.MinGroup, e.cfg.MaxGroup)
}

// Groups returns the partition in effect at step, or nil on non-resampling steps.
func (e *Engine) Groups(step int) []Group {
	gs := e.GroupSize(step)
	if gs == 0 {
		return nil
	}
	return Partition(e.cfg.NumParticles, gs)
}

// Search returns the index assignment for the next population.
//
// On steps that do not resample the identity assignment is returned. The
// result always has NumParticles entries, each drawn from the group of the
// slot it fills.
func (e *Engine) Search(rewards []float64, step int, mode Mode) ([]int, error) {
	n := e.cfg.NumParticles
	if !mode.Valid() {
		return nil, &ErrInvalidMode{Mode: mode.String()}
	}
	if len(rewards) != n {
		return nil, &ErrRewardLength{Expected: n, Actual: len(rewards)}
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: negative step %d", ErrInvalidArgument, step)
	}

	if !e.Resamples(step) {
		return identity(n), nil
	}

	clean := sanitize(rewards)
	scores := e.scores(clean)
	gs := e.GroupSize(step)

	selected := make([]int, 0, n)
	for g := range Blocks(n, gs) {
		switch mode {
		case Probabilistic:
			selected = e.drawGroup(selected, g, scores[g.Start:g.End])
		case Deterministic:
			selected = quotaGroup(selected, g, clean[g.Start:g.End])
		}
	}

	e.logger.Debug("resampled population",
		"step", step,
		"mode", mode.String(),
		"group_size", gs,
		"groups", (n+gs-1)/gs,
	)

	return selected, nil
}

// scores maps rewards to Gaussian kernel scores of the normalized distance
// d = 1 - (r - min) / (max - min + eps).
func (e *Engine) scores(rewards []float64) []float64 {
	lo, hi := slices.Min(rewards), slices.Max(rewards)
	span := hi - lo + epsilon

	scores := make([]float64, len(rewards))
	for i, r := range rewards {
		d := 1 - (r-lo)/span
		scores[i] = math.Exp(-e.cfg.NormalizingFactor * d * d)
	}
	return scores
}

// drawGroup appends g.Len() categorical draws with replacement.
func (e *Engine) drawGroup(dst []int, g Group, scores []float64) []int {
	cdf := make([]float64, len(scores))
	total := 0.0
	for i, s := range scores {
		total += s
		cdf[i] = total
	}
	if !(total > 0) {
		// Uniform fallback; unreachable while epsilon keeps one score at 1.
		for i := range cdf {
			cdf[i] = float64(i + 1)
		}
		total = float64(len(cdf))
	}

	last := len(cdf) - 1
	for range g.Len() {
		u := e.rng.Float64() * total
		j := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
		dst = append(dst, g.Start+min(j, last))
	}
	return dst
}

// quotaGroup appends the elitist selection for one group: the runner-up
// receives ceil(size/8) slots when size >= 8, the top particle the rest.
// Ties rank the lower index first.
func quotaGroup(dst []int, g Group, rewards []float64) []int {
	order := make([]int, len(rewards))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case rewards[a] > rewards[b]:
			return -1
		case rewards[a] < rewards[b]:
			return 1
		default:
			return 0
		}
	})

	gs := g.Len()
	best := g.Start + order[0]
	second := best
	if gs > 1 {
		second = g.Start + order[1]
	}

	secondCount := 0
	if gs >= 8 {
		secondCount = (gs + 7) / 8
	}

	for range gs - secondCount {
		dst = append(dst, best)
	}
	for range secondCount {
		dst = append(dst, second)
	}
	return dst
}

// sanitize replaces non-finite rewards so they rank worst (NaN, -Inf) or
// best (+Inf) without poisoning the score transform.
func sanitize(rewards []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	finite := false
	for _, r := range rewards {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		finite = true
		lo = min(lo, r)
		hi = max(hi, r)
	}
	if !finite {
		lo, hi = 0, 0
	}

	clean := make([]float64, len(rewards))
	for i, r := range rewards {
		switch {
		case math.IsNaN(r), math.IsInf(r, -1):
			clean[i] = lo
		case math.IsInf(r, 1):
			clean[i] = hi
		default:
			clean[i] = r
		}
	}
	return clean
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
