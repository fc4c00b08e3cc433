package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reward"
)

func TestBatchRange(t *testing.T) {
	rng := NewRNG(4711)

	b := rng.Batch(8, particle.Shape{C: 3, H: 4, W: 4})

	require.NoError(t, b.Validate())
	assert.Equal(t, 8, b.Len())
	for _, v := range b.Data {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(42)
	a := rng.Rewards(16)

	rng.Reset()
	b := rng.Rewards(16)

	assert.Equal(t, a, b)
	assert.Equal(t, uint64(42), rng.Seed())
}

func TestPerturbClamps(t *testing.T) {
	rng := NewRNG(1)
	b := particle.New(2, particle.Shape{C: 1, H: 2, W: 2})
	for i := range b.Data {
		b.Data[i] = 1
	}

	rng.Perturb(b, 10)

	for _, v := range b.Data {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPermutation(t *testing.T) {
	rng := NewRNG(3)
	p := rng.Permutation(10)

	seen := make([]bool, 10)
	for _, v := range p {
		seen[v] = true
	}
	for i, ok := range seen {
		assert.True(t, ok, "missing %d", i)
	}
}

func TestTargetProvider(t *testing.T) {
	ctx := context.Background()
	shape := particle.Shape{C: 1, H: 1, W: 2}
	p := NewTargetProvider([]float32{0.5, -0.5}, 2)

	batch, err := particle.FromSlices(shape, [][]float32{{0.5, -0.5}, {1, 0}})
	require.NoError(t, err)

	rewards, err := p.Reward(ctx, batch, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, rewards[0], 1e-9)
	assert.InDelta(t, -0.5, rewards[1], 1e-9)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 2.0, reward.ScaleOf(p))

	grad, err := p.Gradients(ctx, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 1}, grad.Data)

	require.NoError(t, p.SetSideInfo(ctx, reward.Reference{Index: 3}))
	assert.Equal(t, 3, p.Reference().Index)

	wrong := particle.New(1, particle.Shape{C: 1, H: 1, W: 3})
	_, err = p.Reward(ctx, wrong, nil)
	assert.ErrorIs(t, err, particle.ErrShapeMismatch)
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{Rewards: []float64{1, 2}}

	r, err := p.Reward(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, r)

	_, err = p.Gradients(context.Background(), nil, nil)
	assert.ErrorIs(t, err, reward.ErrGradientUnsupported)
}
