package rewardsearch

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/hupe1980/rewardsearch/search"
	"github.com/hupe1980/rewardsearch/trace"
)

// StepResult is the outcome of one guided step.
type StepResult struct {
	Step int

	// Particles is the next population. On steps that do not resample it is
	// the input batch itself.
	Particles *particle.Batch

	// Assignment maps each slot of Particles to its source index.
	Assignment []int

	// Rewards holds the provider's scores for the input population. It is
	// nil when the provider was skipped.
	Rewards []float64

	// GroupSize is the resampling group size, 0 when the step did not resample.
	GroupSize int

	// Best is the index of the highest reward in the input population, or -1.
	Best       int
	BestReward float64

	// Survivors counts distinct source particles in Assignment.
	Survivors int
}

// Resampled reports whether the step changed the population.
func (r StepResult) Resampled() bool {
	return !particle.IsIdentity(r.Assignment)
}

// Guide binds a reward provider to a search engine and runs the
// reward, search and gather sequence of a sampling loop.
//
// A Guide is not safe for concurrent use; each sampling run owns one.
type Guide struct {
	provider reward.Provider
	engine   *search.Engine
	opts     options
	logger   *Logger
}

// NewGuide creates a Guide.
func NewGuide(provider reward.Provider, engine *search.Engine, optFns ...Option) (*Guide, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if engine == nil {
		return nil, ErrNilEngine
	}

	opts := options{
		mode:             search.Deterministic,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.mode.Valid() {
		return nil, &search.ErrInvalidMode{Mode: opts.mode.String()}
	}
	if opts.trace != nil {
		opts.runID = opts.trace.Run()
	}

	logger := opts.logger.WithProvider(provider.Name())
	if opts.runID != "" {
		logger = logger.WithRun(opts.runID)
	}
	if opts.method != "" {
		logger = logger.WithMethod(opts.method)
	}

	return &Guide{
		provider: provider,
		engine:   engine,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Provider returns the reward provider.
func (g *Guide) Provider() reward.Provider { return g.provider }

// Engine returns the search engine.
func (g *Guide) Engine() *search.Engine { return g.engine }

// Mode returns the selection mode.
func (g *Guide) Mode() search.Mode { return g.opts.mode }

// RunID returns the run identifier, if any.
func (g *Guide) RunID() string { return g.opts.runID }

// SetSideInfo binds the provider to a reference item.
func (g *Guide) SetSideInfo(ctx context.Context, ref reward.Reference) error {
	return g.provider.SetSideInfo(ctx, ref)
}

// Step scores particles, asks the engine for an assignment and gathers the
// next population.
func (g *Guide) Step(ctx context.Context, step int, particles *particle.Batch, payload reward.Payload) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if err := particles.Validate(); err != nil {
		return StepResult{}, translateError(err, g.provider.Name())
	}
	if n := g.engine.NumParticles(); particles.Len() != n {
		return StepResult{}, &ErrPopulationMismatch{Expected: n, Actual: particles.Len()}
	}

	res := StepResult{
		Step:       step,
		Particles:  particles,
		Best:       -1,
		BestReward: math.NaN(),
	}

	resamples := g.engine.Resamples(step)
	if resamples || !g.opts.lazyReward {
		rewards, err := g.reward(ctx, step, particles, payload)
		if err != nil {
			return StepResult{}, err
		}
		res.Rewards = rewards
		res.Best, res.BestReward = argmax(rewards)
	}

	start := time.Now()
	var (
		assignment []int
		err        error
	)
	if res.Rewards == nil {
		// The engine still validates the step and mode on skipped steps.
		assignment, err = g.engine.Search(make([]float64, particles.Len()), step, g.opts.mode)
	} else {
		assignment, err = g.engine.Search(res.Rewards, step, g.opts.mode)
	}
	res.GroupSize = g.engine.GroupSize(step)
	g.opts.metricsCollector.RecordSearch(step, res.GroupSize, time.Since(start), err)
	g.logger.LogSearch(ctx, step, res.GroupSize, err)
	if err != nil {
		return StepResult{}, translateError(err, g.provider.Name())
	}
	res.Assignment = assignment

	survivors := trace.Survivors(assignment)
	res.Survivors = int(survivors.GetCardinality())

	if !particle.IsIdentity(assignment) {
		next, err := particles.Gather(assignment)
		if err != nil {
			return StepResult{}, translateError(err, g.provider.Name())
		}
		res.Particles = next
		g.opts.metricsCollector.RecordResample(step, res.Survivors)
	}

	g.logger.LogStep(ctx, step, res.Best, res.BestReward, res.Survivors)
	g.record(ctx, res)

	return res, nil
}

func (g *Guide) reward(ctx context.Context, step int, particles *particle.Batch, payload reward.Payload) ([]float64, error) {
	start := time.Now()
	rewards, err := g.provider.Reward(ctx, particles, payload)
	if err == nil && len(rewards) != particles.Len() {
		err = &ErrRewardCount{Provider: g.provider.Name(), Expected: particles.Len(), Actual: len(rewards)}
	}
	g.opts.metricsCollector.RecordReward(particles.Len(), time.Since(start), err)
	g.logger.LogReward(ctx, step, particles.Len(), err)
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

func (g *Guide) record(ctx context.Context, res StepResult) {
	if g.opts.trace == nil {
		return
	}
	rec := trace.NewRecord(g.opts.runID, res.Step, g.opts.method, g.opts.mode, res.GroupSize, res.Rewards, res.Assignment)
	if err := g.opts.trace.Append(ctx, rec); err != nil {
		g.logger.LogTrace(ctx, g.opts.runID, 0, err)
	}
}

// Gradients returns the provider's gradients multiplied by its guidance
// scale. ok is false when the provider does not support gradients.
func (g *Guide) Gradients(ctx context.Context, particles *particle.Batch, payload reward.Payload) (grad *particle.Batch, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := particles.Validate(); err != nil {
		return nil, false, translateError(err, g.provider.Name())
	}

	start := time.Now()
	defer func() {
		g.opts.metricsCollector.RecordGradients(time.Since(start), ok, err)
		g.logger.LogGradients(ctx, particles.Len(), ok, err)
	}()

	grad, err = g.provider.Gradients(ctx, particles, payload)
	if errors.Is(err, reward.ErrGradientUnsupported) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if scale := reward.ScaleOf(g.provider); scale != 1 {
		s := float32(scale)
		for i := range grad.Data {
			grad.Data[i] *= s
		}
	}
	return grad, true, nil
}

// Flush writes buffered trace records.
func (g *Guide) Flush(ctx context.Context) error {
	if g.opts.trace == nil {
		return nil
	}
	err := g.opts.trace.Flush(ctx)
	_, records := g.opts.trace.Stats()
	g.logger.LogTrace(ctx, g.opts.runID, records, err)
	return err
}

// argmax returns the index of the largest non-NaN reward, or -1.
func argmax(rewards []float64) (int, float64) {
	best, val := -1, math.NaN()
	for i, r := range rewards {
		if math.IsNaN(r) {
			continue
		}
		if best < 0 || r > val {
			best, val = i, r
		}
	}
	return best, val
}
