package reward

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/rewardsearch/particle"
)

var (
	// ErrSideInfoUnset is returned when a provider is used before SetSideInfo.
	ErrSideInfoUnset = errors.New("reward: side info not set")

	// ErrGradientUnsupported is returned by providers without gradient guidance.
	ErrGradientUnsupported = errors.New("reward: gradients not supported")

	// ErrPayloadMissing is returned when a required payload entry is absent.
	ErrPayloadMissing = errors.New("reward: payload entry missing")
)

// PayloadMeasurements is the payload key holding the observed measurements.
const PayloadMeasurements = "measurements"

// Reference selects the side-information item a provider binds to.
type Reference struct {
	Index int
}

// Payload carries per-call inputs a provider may need, keyed by name.
type Payload map[string]any

// Batch returns the particle batch stored under key.
func (p Payload) Batch(key string) (*particle.Batch, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrPayloadMissing, key)
	}
	b, ok := v.(*particle.Batch)
	if !ok {
		return nil, fmt.Errorf("reward: payload %q has type %T, want *particle.Batch", key, v)
	}
	return b, nil
}

// Provider scores particle populations.
type Provider interface {
	// Name returns the registry name of the provider.
	Name() string

	// SetSideInfo binds the provider to a reference item.
	SetSideInfo(ctx context.Context, ref Reference) error

	// Reward returns one score per particle; larger is better.
	Reward(ctx context.Context, particles *particle.Batch, payload Payload) ([]float64, error)

	// Gradients returns the gradient of the provider's loss with respect to
	// each particle, shaped like particles. Providers without gradient
	// guidance return ErrGradientUnsupported.
	Gradients(ctx context.Context, particles *particle.Batch, payload Payload) (*particle.Batch, error)
}

// Scaled is implemented by providers carrying a guidance scale.
type Scaled interface {
	Scale() float64
}

// ScaleOf returns p's guidance scale, or 1 if p does not carry one.
func ScaleOf(p Provider) float64 {
	if s, ok := p.(Scaled); ok {
		return s.Scale()
	}
	return 1
}

// Guarded serializes all calls to an underlying provider so one instance can
// be shared between sampling loops.
type Guarded struct {
	mu sync.Mutex
	p  Provider
}

var _ Provider = (*Guarded)(nil)

// NewGuarded wraps p.
func NewGuarded(p Provider) *Guarded {
	return &Guarded{p: p}
}

// Unwrap returns the underlying provider.
func (g *Guarded) Unwrap() Provider { return g.p }

func (g *Guarded) Name() string { return g.p.Name() }

func (g *Guarded) SetSideInfo(ctx context.Context, ref Reference) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.SetSideInfo(ctx, ref)
}

func (g *Guarded) Reward(ctx context.Context, particles *particle.Batch, payload Payload) ([]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.Reward(ctx, particles, payload)
}

func (g *Guarded) Gradients(ctx context.Context, particles *particle.Batch, payload Payload) (*particle.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.Gradients(ctx, particles, payload)
}

// Scale forwards to the underlying provider.
func (g *Guarded) Scale() float64 { return ScaleOf(g.p) }
