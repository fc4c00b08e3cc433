package rewardsearch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/hupe1980/rewardsearch/search"
	"github.com/hupe1980/rewardsearch/testutil"
	"github.com/hupe1980/rewardsearch/trace"
)

var testShape = particle.Shape{C: 1, H: 2, W: 2}

// labeledBatch returns n particles whose elements all equal their index.
func labeledBatch(n int) *particle.Batch {
	b := particle.New(n, testShape)
	for i := range n {
		for j := range b.At(i) {
			b.At(i)[j] = float32(i)
		}
	}
	return b
}

func TestGuideStep(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}

	provider := &testutil.StaticProvider{Rewards: []float64{1, 5, 2, 8, 0, 3, 7, 4}}
	g, err := NewGuide(provider, search.MustNew(search.GroupMeeting(8, 1, 2, 8)), WithMetricsCollector(mc))
	require.NoError(t, err)

	in := labeledBatch(8)
	res, err := g.Step(ctx, 1, in, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 3, 3, 5, 5, 6, 6}, res.Assignment)
	assert.Equal(t, 3, res.Best)
	assert.Equal(t, 8.0, res.BestReward)
	assert.Equal(t, 2, res.GroupSize)
	assert.Equal(t, 4, res.Survivors)
	assert.True(t, res.Resampled())

	for slot, src := range res.Assignment {
		assert.Equal(t, float32(src), res.Particles.At(slot)[0])
	}
	// The input population is left untouched.
	assert.Equal(t, float32(0), in.At(0)[0])

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.RewardCount)
	assert.Equal(t, int64(8), stats.RewardParticles)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.ResampleCount)
	assert.Equal(t, int64(4), stats.ResampleAvgSurvivors)
}

func TestGuideIdentityStep(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	provider := testutil.NewTargetProvider(make([]float32, testShape.Size()), 1)

	g, err := NewGuide(provider, search.MustNew(search.GroupMeeting(8, 4, 2, 8)))
	require.NoError(t, err)

	in := rng.Batch(8, testShape)
	res, err := g.Step(ctx, 3, in, nil)
	require.NoError(t, err)

	assert.Same(t, in, res.Particles)
	assert.Equal(t, particle.Identity(8), res.Assignment)
	assert.Equal(t, 0, res.GroupSize)
	assert.False(t, res.Resampled())
	assert.Len(t, res.Rewards, 8)
	assert.GreaterOrEqual(t, res.Best, 0)
	assert.Equal(t, 1, provider.Calls())
}

func TestGuideLazyReward(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(2)
	provider := testutil.NewTargetProvider(make([]float32, testShape.Size()), 1)

	g, err := NewGuide(provider, search.MustNew(search.GroupMeeting(8, 4, 2, 8)), WithLazyReward())
	require.NoError(t, err)

	in := rng.Batch(8, testShape)
	res, err := g.Step(ctx, 3, in, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Rewards)
	assert.Equal(t, -1, res.Best)
	assert.Equal(t, 0, provider.Calls())

	res, err = g.Step(ctx, 4, in, nil)
	require.NoError(t, err)
	assert.Len(t, res.Rewards, 8)
	assert.Equal(t, 1, provider.Calls())
}

func TestGuideErrors(t *testing.T) {
	ctx := context.Background()
	engine := search.MustNew(search.Global(4, 1))

	t.Run("NilCollaborators", func(t *testing.T) {
		_, err := NewGuide(nil, engine)
		assert.ErrorIs(t, err, ErrNilProvider)

		_, err = NewGuide(&testutil.StaticProvider{}, nil)
		assert.ErrorIs(t, err, ErrNilEngine)
	})

	t.Run("InvalidMode", func(t *testing.T) {
		_, err := NewGuide(&testutil.StaticProvider{}, engine, WithMode(search.Mode(9)))
		var im *search.ErrInvalidMode
		assert.ErrorAs(t, err, &im)
	})

	t.Run("PopulationMismatch", func(t *testing.T) {
		g, err := NewGuide(&testutil.StaticProvider{Rewards: []float64{1, 2}}, engine)
		require.NoError(t, err)

		_, err = g.Step(ctx, 1, labeledBatch(2), nil)
		var pm *ErrPopulationMismatch
		require.ErrorAs(t, err, &pm)
		assert.Equal(t, 4, pm.Expected)
		assert.Equal(t, 2, pm.Actual)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("InvalidBatch", func(t *testing.T) {
		g, err := NewGuide(&testutil.StaticProvider{}, engine)
		require.NoError(t, err)

		bad := &particle.Batch{Shape: testShape, N: 4, Data: make([]float32, 3)}
		_, err = g.Step(ctx, 1, bad, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, particle.ErrShapeMismatch)
	})

	t.Run("RewardCount", func(t *testing.T) {
		g, err := NewGuide(&testutil.StaticProvider{Rewards: []float64{1, 2, 3}}, engine)
		require.NoError(t, err)

		_, err = g.Step(ctx, 1, labeledBatch(4), nil)
		var rc *ErrRewardCount
		require.ErrorAs(t, err, &rc)
		assert.Equal(t, "static", rc.Provider)
		assert.Equal(t, 4, rc.Expected)
		assert.Equal(t, 3, rc.Actual)
	})

	t.Run("ProviderError", func(t *testing.T) {
		boom := errors.New("boom")
		mc := &BasicMetricsCollector{}
		g, err := NewGuide(&testutil.StaticProvider{Err: boom}, engine, WithMetricsCollector(mc))
		require.NoError(t, err)

		_, err = g.Step(ctx, 1, labeledBatch(4), nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(1), mc.GetStats().RewardErrors)
		assert.Equal(t, int64(0), mc.GetStats().SearchCount)
	})

	t.Run("NegativeStep", func(t *testing.T) {
		g, err := NewGuide(&testutil.StaticProvider{Rewards: []float64{1, 2, 3, 4}}, engine)
		require.NoError(t, err)

		_, err = g.Step(ctx, -1, labeledBatch(4), nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("Canceled", func(t *testing.T) {
		g, err := NewGuide(&testutil.StaticProvider{Rewards: []float64{1, 2, 3, 4}}, engine)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = g.Step(cctx, 1, labeledBatch(4), nil)
		assert.ErrorIs(t, err, context.Canceled)

		_, _, err = g.Gradients(cctx, labeledBatch(4), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGuideGradients(t *testing.T) {
	ctx := context.Background()
	engine := search.MustNew(search.Global(2, 1))

	t.Run("Unsupported", func(t *testing.T) {
		mc := &BasicMetricsCollector{}
		g, err := NewGuide(&testutil.StaticProvider{}, engine, WithMetricsCollector(mc))
		require.NoError(t, err)

		grad, ok, err := g.Gradients(ctx, labeledBatch(2), nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, grad)
		assert.Equal(t, int64(1), mc.GetStats().GradientsUnsupported)
	})

	t.Run("Scaled", func(t *testing.T) {
		provider := testutil.NewTargetProvider(make([]float32, testShape.Size()), 0.5)
		g, err := NewGuide(provider, engine)
		require.NoError(t, err)

		grad, ok, err := g.Gradients(ctx, labeledBatch(2), nil)
		require.NoError(t, err)
		require.True(t, ok)
		// d/dx |x|^2 = 2x, scaled by 0.5.
		assert.Equal(t, []float32{0, 0, 0, 0, 1, 1, 1, 1}, grad.Data)
	})

	t.Run("Guarded", func(t *testing.T) {
		provider := reward.NewGuarded(testutil.NewTargetProvider(make([]float32, testShape.Size()), 2))
		g, err := NewGuide(provider, engine)
		require.NoError(t, err)

		grad, ok, err := g.Gradients(ctx, labeledBatch(2), nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, float32(4), grad.At(1)[0])
	})
}

func TestGuideSetSideInfo(t *testing.T) {
	provider := testutil.NewTargetProvider(make([]float32, testShape.Size()), 1)
	g, err := NewGuide(provider, search.MustNew(search.Global(2, 1)))
	require.NoError(t, err)

	require.NoError(t, g.SetSideInfo(context.Background(), reward.Reference{Index: 7}))
	assert.Equal(t, 7, provider.Reference().Index)
}

func TestGuideTrace(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	w, err := trace.NewWriter(ctx, store, "run-1", trace.WithCompression(trace.CompressionLZ4))
	require.NoError(t, err)

	provider := &testutil.StaticProvider{Rewards: []float64{1, 5, 2, 8, 0, 3, 7, 4}}
	g, err := NewGuide(provider, search.MustNew(search.GroupMeeting(8, 2, 2, 8)),
		WithTrace(w),
		WithRunID("ignored"),
		WithMethod(MethodGroupMeeting),
	)
	require.NoError(t, err)
	assert.Equal(t, "run-1", g.RunID())

	batch := labeledBatch(8)
	for step := 1; step <= 4; step++ {
		res, err := g.Step(ctx, step, batch, nil)
		require.NoError(t, err)
		batch = res.Particles
	}
	require.NoError(t, g.Flush(ctx))

	records, err := trace.NewReader(store).Records(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, rec := range records {
		assert.Equal(t, i+1, rec.Step)
		assert.Equal(t, "run-1", rec.Run)
		assert.Equal(t, MethodGroupMeeting, rec.Method)
		assert.Equal(t, search.Deterministic, rec.Mode)
	}
	assert.False(t, records[0].Resampled())
	assert.True(t, records[1].Resampled())
	assert.Equal(t, 2, records[1].GroupSize)
	assert.Equal(t, 4, records[3].GroupSize)

	summary := trace.Summarize(records)
	assert.Equal(t, 4, summary.Steps)
	assert.Equal(t, 2, summary.Resamples)
	assert.Equal(t, 8.0, summary.BestReward)
}

func TestGuideConvergesToTarget(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)

	target := make([]float32, testShape.Size())
	provider := testutil.NewTargetProvider(target, 1)
	g, err := NewGuide(provider, search.MustNew(search.Global(16, 1), search.WithSeed(5)))
	require.NoError(t, err)

	batch := rng.Batch(16, testShape)
	initial, err := provider.Reward(ctx, batch, nil)
	require.NoError(t, err)

	res, err := g.Step(ctx, 1, batch, nil)
	require.NoError(t, err)

	after, err := provider.Reward(ctx, res.Particles, nil)
	require.NoError(t, err)

	// Every survivor is the best or runner-up of the initial population.
	best := initial[res.Best]
	for _, v := range after {
		assert.LessOrEqual(t, v, best)
	}
	assert.Equal(t, best, after[0])
}
