package rewardsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/registry"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/hupe1980/rewardsearch/reward/alignment"
	"github.com/hupe1980/rewardsearch/reward/embedding"
	"github.com/hupe1980/rewardsearch/reward/measurement"
	"github.com/hupe1980/rewardsearch/search"
)

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	assert.Equal(t, []string{MethodBestOfN, MethodDiverseBeam, MethodGlobal, MethodGroupMeeting}, strategies.Names())

	tests := []struct {
		name   string
		params registry.Params
		want   search.Config
	}{
		{
			name:   MethodGroupMeeting,
			params: registry.Params{"num_particles": 16, "base": 10, "min_group": 2, "max_group": 8},
			want:   search.GroupMeeting(16, 10, 2, 8),
		},
		{
			name:   MethodBestOfN,
			params: registry.Params{"num_particles": 8},
			want:   search.BestOfN(8),
		},
		{
			name:   MethodGlobal,
			params: registry.Params{"num_particles": "32", "base": "5", "normalizing_factor": "10"},
			want:   search.Global(32, 5, search.WithNormalizingFactor(10)),
		},
		{
			name:   MethodDiverseBeam,
			params: registry.Params{"num_particles": 16, "g": 4, "base": 2, "start_step": 100},
			want:   search.DiverseBeam(16, 4, 2, search.WithStartStep(100)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := strategies.Get(tt.name, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestDefaultStrategiesErrors(t *testing.T) {
	strategies := DefaultStrategies()

	t.Run("MissingParam", func(t *testing.T) {
		_, err := strategies.Get(MethodGlobal, registry.Params{"num_particles": 8})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base")
	})

	t.Run("UnknownParam", func(t *testing.T) {
		_, err := strategies.Get(MethodBestOfN, registry.Params{"num_particles": 8, "beam": 2})
		assert.Error(t, err)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		_, err := strategies.Get(MethodDiverseBeam, registry.Params{"num_particles": 8, "g": 16, "base": 1})
		assert.ErrorIs(t, err, search.ErrInvalidConfig)
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		_, err := strategies.Get("beam", nil)
		assert.ErrorIs(t, err, registry.ErrNameNotFound)
	})
}

func TestProviders(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "prompts/0.txt", []byte("a photo of a cat")))
	prompts, err := reference.NewCatalog(ctx, store, "prompts/", reference.TextExtensions)
	require.NoError(t, err)
	images, err := reference.NewCatalog(ctx, store, "images/", reference.ImageExtensions, reference.WithAllowEmpty())
	require.NoError(t, err)

	embedder := embedding.EmbedderFunc(func(_ context.Context, img []float32, _ particle.Shape) ([]float32, error) {
		return img[:2], nil
	})
	ranker := alignment.RankerFunc(func(_ context.Context, _ string, p *particle.Batch) ([]float64, error) {
		return make([]float64, p.Len()), nil
	})
	op, err := measurement.NewDownsample(2, 0.05)
	require.NoError(t, err)

	providers := Providers(ProviderDeps{
		Embedder: embedder,
		Ranker:   ranker,
		Images:   images,
		Prompts:  prompts,
		Operator: op,
	})
	assert.Equal(t, []string{ProviderAdaFace, ProviderEmbedding, ProviderMeasurement, ProviderAlignment}, providers.Names())

	p, err := providers.Get(ProviderAdaFace, registry.Params{"scale": 0.5, "resolution": 64})
	require.NoError(t, err)
	assert.Equal(t, embedding.Name, p.Name())
	assert.Equal(t, 0.5, reward.ScaleOf(p))

	other, err := providers.Get(ProviderEmbedding, nil)
	require.NoError(t, err)
	assert.NotSame(t, p, other)

	m, err := providers.Get(ProviderMeasurement, registry.Params{"scale": "2"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, reward.ScaleOf(m))
	assert.Same(t, op, m.(*measurement.Provider).Operator())

	a, err := providers.Get(ProviderAlignment, nil)
	require.NoError(t, err)
	require.NoError(t, a.SetSideInfo(ctx, reward.Reference{Index: 0}))
	assert.Equal(t, "a photo of a cat", a.(*alignment.Provider).Prompt())

	_, err = providers.Get(ProviderAdaFace, registry.Params{"colour": 1})
	assert.Error(t, err)
}

func TestProvidersMissingDeps(t *testing.T) {
	providers := Providers(ProviderDeps{})

	_, err := providers.Get(ProviderAdaFace, nil)
	assert.Error(t, err)

	_, err = providers.Get(ProviderAlignment, nil)
	assert.Error(t, err)

	p, err := providers.Get(ProviderMeasurement, nil)
	require.NoError(t, err)
	assert.Nil(t, p.(*measurement.Provider).Operator())
}
