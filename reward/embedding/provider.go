package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rewardsearch/distance"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/reward"
)

// Name is the registry name of the provider.
const Name = "adaface"

// FallbackValue fills the embedding of particles that could not be embedded.
// It sits far from any real embedding so those particles rank last.
const FallbackValue = 1e3

// Config holds the provider parameters.
type Config struct {
	// Resolution is the side length reference images are resized and
	// center-cropped to. Default: 256.
	Resolution int `mapstructure:"resolution"`

	// Scale is the guidance scale. Default: 1.
	Scale float64 `mapstructure:"scale"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Resolution: 256,
		Scale:      1,
	}
}

type options struct {
	logger *slog.Logger
	rc     *resource.Controller
}

// Option configures a Provider.
type Option func(*options)

// WithLogger sets the logger for per-particle failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithResourceController bounds concurrent embedding calls by rc's worker limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// Provider scores particles by embedding distance to a reference image.
type Provider struct {
	cfg      Config
	embedder Embedder
	catalog  *reference.Catalog
	logger   *slog.Logger
	rc       *resource.Controller

	side []float32
}

var _ reward.Provider = (*Provider)(nil)

// New creates an embedding provider. catalog lists the reference images.
func New(embedder Embedder, catalog *reference.Catalog, cfg Config, optFns ...Option) (*Provider, error) {
	if embedder == nil {
		return nil, errors.New("embedding: nil embedder")
	}
	if catalog == nil {
		return nil, errors.New("embedding: nil catalog")
	}
	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("embedding: invalid resolution %d", cfg.Resolution)
	}

	opts := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{
		cfg:      cfg,
		embedder: embedder,
		catalog:  catalog,
		logger:   opts.logger,
		rc:       opts.rc,
	}, nil
}

// Name returns "adaface".
func (p *Provider) Name() string { return Name }

// Scale returns the guidance scale.
func (p *Provider) Scale() float64 { return p.cfg.Scale }

// SideInfo returns the reference embedding, or nil before SetSideInfo.
func (p *Provider) SideInfo() []float32 { return p.side }

// SetSideInfo loads, decodes and embeds reference image ref.Index.
func (p *Provider) SetSideInfo(ctx context.Context, ref reward.Reference) error {
	img, err := p.catalog.LoadImage(ctx, ref.Index, p.cfg.Resolution)
	if err != nil {
		return err
	}
	emb, err := p.embedder.Embed(ctx, img.At(0), img.Shape)
	if err != nil {
		return fmt.Errorf("embed reference %d: %w", ref.Index, err)
	}
	if len(emb) == 0 {
		return fmt.Errorf("embed reference %d: empty embedding", ref.Index)
	}
	p.side = emb
	return nil
}

// Reward returns -||ref - emb|| per particle.
func (p *Provider) Reward(ctx context.Context, particles *particle.Batch, _ reward.Payload) ([]float64, error) {
	if p.side == nil {
		return nil, reward.ErrSideInfoUnset
	}
	if err := particles.Validate(); err != nil {
		return nil, err
	}

	embs := make([][]float32, particles.N)
	err := p.forEach(ctx, particles.N, func(ctx context.Context, i int) error {
		emb, err := p.embedder.Embed(ctx, particles.At(i), particles.Shape)
		if err == nil && len(emb) != len(p.side) {
			err = fmt.Errorf("embedding has %d dimensions, reference has %d", len(emb), len(p.side))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("embedding failed, using fallback", "particle", i, "error", err)
			emb = p.fallback()
		}
		embs[i] = emb
		return nil
	})
	if err != nil {
		return nil, err
	}

	rewards := make([]float64, particles.N)
	for i, emb := range embs {
		rewards[i] = -float64(distance.L2(p.side, emb))
	}
	return rewards, nil
}

// Gradients returns d||emb - ref||^2 / dx per particle. Particles that could
// not be embedded get a zero gradient.
func (p *Provider) Gradients(ctx context.Context, particles *particle.Batch, _ reward.Payload) (*particle.Batch, error) {
	ge, ok := p.embedder.(GradientEmbedder)
	if !ok {
		return nil, reward.ErrGradientUnsupported
	}
	if p.side == nil {
		return nil, reward.ErrSideInfoUnset
	}
	if err := particles.Validate(); err != nil {
		return nil, err
	}

	grads := particles.ZerosLike()
	size := particles.Shape.Size()
	err := p.forEach(ctx, particles.N, func(ctx context.Context, i int) error {
		emb, vjp, err := ge.EmbedVJP(ctx, particles.At(i), particles.Shape)
		if err == nil && len(emb) != len(p.side) {
			err = fmt.Errorf("embedding has %d dimensions, reference has %d", len(emb), len(p.side))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("gradient failed, using zero gradient", "particle", i, "error", err)
			return nil
		}

		upstream := make([]float32, len(emb))
		for j := range emb {
			upstream[j] = 2 * (emb[j] - p.side[j])
		}
		g := vjp(upstream)
		if len(g) != size {
			p.logger.Warn("gradient has wrong size, using zero gradient", "particle", i, "size", len(g), "want", size)
			return nil
		}
		copy(grads.At(i), g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grads, nil
}

func (p *Provider) fallback() []float32 {
	emb := make([]float32, len(p.side))
	for i := range emb {
		emb[i] = FallbackValue
	}
	return emb
}

// forEach runs fn for 0..n-1 concurrently, bounded by the worker limit.
func (p *Provider) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.rc.Workers(), 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := p.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer p.rc.ReleaseWorker()
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
