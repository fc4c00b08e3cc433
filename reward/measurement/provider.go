package measurement

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/rewardsearch/distance"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reward"
)

// Name is the registry name of the provider.
const Name = "measurement"

// Config holds the provider parameters.
type Config struct {
	// Scale is the guidance scale. Default: 1.
	Scale float64 `mapstructure:"scale"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{Scale: 1}
}

// Provider scores particles by -||y - A(x)||.
type Provider struct {
	cfg      Config
	operator Operator
}

var _ reward.Provider = (*Provider)(nil)

// New creates a measurement provider. The operator is bound with SetOperator.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Name returns "measurement".
func (p *Provider) Name() string { return Name }

// Scale returns the guidance scale.
func (p *Provider) Scale() float64 { return p.cfg.Scale }

// SetOperator binds the forward operator.
func (p *Provider) SetOperator(op Operator) {
	p.operator = op
}

// Operator returns the bound operator, or nil.
func (p *Provider) Operator() Operator { return p.operator }

// Sigma returns the operator noise level, or NaN without an operator.
func (p *Provider) Sigma() float64 {
	if p.operator == nil {
		return math.NaN()
	}
	return p.operator.Sigma()
}

// SetSideInfo is a no-op: the target is the per-call measurement.
func (p *Provider) SetSideInfo(context.Context, reward.Reference) error {
	return nil
}

// Reward returns -||y_i - A(x_i)||_2 for every particle.
func (p *Provider) Reward(ctx context.Context, particles *particle.Batch, payload reward.Payload) ([]float64, error) {
	if p.operator == nil {
		return nil, fmt.Errorf("%w: operator not set", reward.ErrSideInfoUnset)
	}
	y, err := payload.Batch(reward.PayloadMeasurements)
	if err != nil {
		return nil, err
	}
	ax, err := p.operator.Measure(ctx, particles)
	if err != nil {
		return nil, err
	}
	y, err = broadcast(y, ax)
	if err != nil {
		return nil, err
	}

	rewards := make([]float64, ax.N)
	for i := range rewards {
		rewards[i] = -float64(distance.L2(y.At(i), ax.At(i)))
	}
	return rewards, nil
}

// Gradients delegates to the operator.
func (p *Provider) Gradients(ctx context.Context, particles *particle.Batch, payload reward.Payload) (*particle.Batch, error) {
	if p.operator == nil {
		return nil, fmt.Errorf("%w: operator not set", reward.ErrSideInfoUnset)
	}
	y, err := payload.Batch(reward.PayloadMeasurements)
	if err != nil {
		return nil, err
	}
	if y.N == 1 && particles.N > 1 {
		idx := make([]int, particles.N)
		if y, err = y.Gather(idx); err != nil {
			return nil, err
		}
	}
	return p.operator.Gradient(ctx, particles, y)
}

// broadcast expands a single measurement to ref.N items.
func broadcast(y, ref *particle.Batch) (*particle.Batch, error) {
	if err := y.Validate(); err != nil {
		return nil, err
	}
	if y.Shape != ref.Shape {
		return nil, fmt.Errorf("%w: measurement %s, operator output %s", particle.ErrShapeMismatch, y.Shape, ref.Shape)
	}
	switch y.N {
	case ref.N:
		return y, nil
	case 1:
		return y.Gather(make([]int, ref.N))
	default:
		return nil, fmt.Errorf("%w: %d measurements for %d particles", particle.ErrShapeMismatch, y.N, ref.N)
	}
}
