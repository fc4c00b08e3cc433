package alignment

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *reference.Catalog {
	t.Helper()
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "texts/b.txt", []byte("a red barn")))
	require.NoError(t, store.Put(ctx, "texts/a.TXT", []byte("two cats on a sofa")))
	require.NoError(t, store.Put(ctx, "texts/c.png", []byte{0}))

	c, err := reference.NewCatalog(ctx, store, "texts/", reference.TextExtensions)
	require.NoError(t, err)
	return c
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	var gotPrompt string
	ranker := RankerFunc(func(_ context.Context, prompt string, b *particle.Batch) ([]float64, error) {
		gotPrompt = prompt
		out := make([]float64, b.N)
		for i := range out {
			out[i] = float64(b.At(i)[0])
		}
		return out, nil
	})

	p, err := New(ranker, newCatalog(t), Config{Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, Name, p.Name())
	assert.Equal(t, 2.0, reward.ScaleOf(p))

	b, err := particle.FromSlices(particle.Shape{C: 1, H: 1, W: 1}, [][]float32{{0.5}, {-0.25}})
	require.NoError(t, err)

	_, err = p.Reward(ctx, b, nil)
	assert.ErrorIs(t, err, reward.ErrSideInfoUnset)

	require.NoError(t, p.SetSideInfo(ctx, reward.Reference{Index: 0}))
	assert.Equal(t, "two cats on a sofa", p.Prompt())

	scores, err := p.Reward(ctx, b, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25}, scores)
	assert.Equal(t, "two cats on a sofa", gotPrompt)

	g, err := p.Gradients(ctx, b, nil)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, reward.ErrGradientUnsupported)

	err = p.SetSideInfo(ctx, reward.Reference{Index: 2})
	assert.ErrorIs(t, err, reference.ErrIndexOutOfRange)
}

func TestProvider_RankerErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	b := particle.New(2, particle.Shape{C: 1, H: 1, W: 1})

	p, err := New(RankerFunc(func(context.Context, string, *particle.Batch) ([]float64, error) {
		return nil, boom
	}), newCatalog(t), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, p.SetSideInfo(ctx, reward.Reference{}))
	_, err = p.Reward(ctx, b, nil)
	assert.ErrorIs(t, err, boom)

	short, err := New(RankerFunc(func(context.Context, string, *particle.Batch) ([]float64, error) {
		return []float64{1}, nil
	}), newCatalog(t), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, short.SetSideInfo(ctx, reward.Reference{}))
	_, err = short.Reward(ctx, b, nil)
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, newCatalog(t), DefaultConfig())
	assert.Error(t, err)
	_, err = New(RankerFunc(nil), nil, DefaultConfig())
	assert.Error(t, err)
}
