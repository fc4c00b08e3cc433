package alignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/reward"
)

// Name is the registry name of the provider.
const Name = "text-alignment"

// Ranker scores every particle against a prompt; larger is better.
type Ranker interface {
	Rank(ctx context.Context, prompt string, particles *particle.Batch) ([]float64, error)
}

// RankerFunc adapts a function to the Ranker interface.
type RankerFunc func(ctx context.Context, prompt string, particles *particle.Batch) ([]float64, error)

// Rank calls f.
func (f RankerFunc) Rank(ctx context.Context, prompt string, particles *particle.Batch) ([]float64, error) {
	return f(ctx, prompt, particles)
}

// Config holds the provider parameters.
type Config struct {
	// Scale is the guidance scale. Default: 1.
	Scale float64 `mapstructure:"scale"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{Scale: 1}
}

// Provider scores particles by prompt alignment.
type Provider struct {
	cfg     Config
	ranker  Ranker
	catalog *reference.Catalog

	prompt string
	bound  bool
}

var _ reward.Provider = (*Provider)(nil)

// New creates an alignment provider. catalog lists the prompt texts.
func New(ranker Ranker, catalog *reference.Catalog, cfg Config) (*Provider, error) {
	if ranker == nil {
		return nil, errors.New("alignment: nil ranker")
	}
	if catalog == nil {
		return nil, errors.New("alignment: nil catalog")
	}
	return &Provider{cfg: cfg, ranker: ranker, catalog: catalog}, nil
}

// Name returns "text-alignment".
func (p *Provider) Name() string { return Name }

// Scale returns the guidance scale.
func (p *Provider) Scale() float64 { return p.cfg.Scale }

// Prompt returns the bound prompt.
func (p *Provider) Prompt() string { return p.prompt }

// SetSideInfo loads prompt text ref.Index.
func (p *Provider) SetSideInfo(ctx context.Context, ref reward.Reference) error {
	text, err := p.catalog.LoadText(ctx, ref.Index)
	if err != nil {
		return err
	}
	p.prompt = text
	p.bound = true
	return nil
}

// Reward returns the ranker scores.
func (p *Provider) Reward(ctx context.Context, particles *particle.Batch, _ reward.Payload) ([]float64, error) {
	if !p.bound {
		return nil, reward.ErrSideInfoUnset
	}
	if err := particles.Validate(); err != nil {
		return nil, err
	}
	scores, err := p.ranker.Rank(ctx, p.prompt, particles)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if len(scores) != particles.N {
		return nil, fmt.Errorf("rank: got %d scores for %d particles", len(scores), particles.N)
	}
	return scores, nil
}

// Gradients is unsupported.
func (p *Provider) Gradients(context.Context, *particle.Batch, reward.Payload) (*particle.Batch, error) {
	return nil, reward.ErrGradientUnsupported
}
