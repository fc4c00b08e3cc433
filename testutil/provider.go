package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reward"
)

// TargetProvider rewards particles by negative squared L2 distance to a
// fixed target. Its gradient is the gradient of the squared distance.
type TargetProvider struct {
	target []float32
	scale  float64

	mu    sync.Mutex
	calls int
	ref   reward.Reference
}

var _ reward.Provider = (*TargetProvider)(nil)

// NewTargetProvider creates a provider around a copy of target.
func NewTargetProvider(target []float32, scale float64) *TargetProvider {
	return &TargetProvider{target: slices.Clone(target), scale: scale}
}

func (p *TargetProvider) Name() string { return "target" }

// Scale returns the guidance scale.
func (p *TargetProvider) Scale() float64 { return p.scale }

// Calls returns how often Reward was called.
func (p *TargetProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Reference returns the last reference passed to SetSideInfo.
func (p *TargetProvider) Reference() reward.Reference {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref
}

func (p *TargetProvider) SetSideInfo(_ context.Context, ref reward.Reference) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ref = ref
	return nil
}

func (p *TargetProvider) check(particles *particle.Batch) error {
	if err := particles.Validate(); err != nil {
		return err
	}
	if particles.Shape.Size() != len(p.target) {
		return fmt.Errorf("%w: target has %d elements, particles %s", particle.ErrShapeMismatch, len(p.target), particles.Shape)
	}
	return nil
}

func (p *TargetProvider) Reward(ctx context.Context, particles *particle.Batch, _ reward.Payload) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.check(particles); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	out := make([]float64, particles.Len())
	for i := range out {
		var d float64
		for j, v := range particles.At(i) {
			diff := float64(v - p.target[j])
			d += diff * diff
		}
		out[i] = -d
	}
	return out, nil
}

func (p *TargetProvider) Gradients(ctx context.Context, particles *particle.Batch, _ reward.Payload) (*particle.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.check(particles); err != nil {
		return nil, err
	}
	grad := particles.ZerosLike()
	for i := range particles.Len() {
		src, dst := particles.At(i), grad.At(i)
		for j, v := range src {
			dst[j] = 2 * (v - p.target[j])
		}
	}
	return grad, nil
}

// StaticProvider returns fixed rewards and reports gradients as
// unsupported. Err, when set, is returned from Reward.
type StaticProvider struct {
	Rewards []float64
	Err     error
}

var _ reward.Provider = (*StaticProvider)(nil)

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) SetSideInfo(context.Context, reward.Reference) error { return nil }

func (p *StaticProvider) Reward(context.Context, *particle.Batch, reward.Payload) ([]float64, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return slices.Clone(p.Rewards), nil
}

func (p *StaticProvider) Gradients(context.Context, *particle.Batch, reward.Payload) (*particle.Batch, error) {
	return nil, reward.ErrGradientUnsupported
}
