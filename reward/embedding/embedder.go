package embedding

import (
	"context"
	"errors"

	"github.com/hupe1980/rewardsearch/particle"
)

// ErrNoSignal is returned by an Embedder when the image holds nothing to
// embed, e.g. no face was detected.
var ErrNoSignal = errors.New("embedding: no signal detected")

// Embedder maps one image in [-1, 1] to an embedding vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, img []float32, shape particle.Shape) ([]float32, error)
}

// VJP maps an upstream gradient with respect to the embedding to the
// gradient with respect to the input image.
type VJP func(upstream []float32) []float32

// GradientEmbedder is an Embedder that can differentiate its output.
type GradientEmbedder interface {
	Embedder
	EmbedVJP(ctx context.Context, img []float32, shape particle.Shape) ([]float32, VJP, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, img []float32, shape particle.Shape) ([]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, img []float32, shape particle.Shape) ([]float32, error) {
	return f(ctx, img, shape)
}
