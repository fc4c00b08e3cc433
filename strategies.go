package rewardsearch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/registry"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/hupe1980/rewardsearch/reward/alignment"
	"github.com/hupe1980/rewardsearch/reward/embedding"
	"github.com/hupe1980/rewardsearch/reward/measurement"
	"github.com/hupe1980/rewardsearch/search"
)

// Search method names.
const (
	MethodGroupMeeting = "group-meeting"
	MethodBestOfN      = "best-of-n"
	MethodGlobal       = "global"
	MethodDiverseBeam  = "diverse-beam-search"
)

// strategyParams are the keyword parameters accepted by the search methods.
// Not every method reads every field.
type strategyParams struct {
	NumParticles      int     `mapstructure:"num_particles"`
	Base              int     `mapstructure:"base"`
	MinGroup          int     `mapstructure:"min_group"`
	MaxGroup          int     `mapstructure:"max_group"`
	G                 int     `mapstructure:"g"`
	StartStep         int     `mapstructure:"start_step"`
	NormalizingFactor float64 `mapstructure:"normalizing_factor"`
}

func decodeStrategy(params registry.Params, required ...string) (strategyParams, error) {
	p := strategyParams{
		StartStep:         search.DefaultStartStep,
		NormalizingFactor: search.DefaultNormalizingFactor,
	}
	for _, key := range required {
		if _, ok := params[key]; !ok {
			return p, fmt.Errorf("missing parameter %q", key)
		}
	}
	if err := registry.Decode(params, &p); err != nil {
		return p, err
	}
	return p, nil
}

func (p strategyParams) presetOptions() []search.PresetOption {
	return []search.PresetOption{
		search.WithStartStep(p.StartStep),
		search.WithNormalizingFactor(p.NormalizingFactor),
	}
}

// DefaultStrategies returns a registry of the built-in search methods. Each
// factory produces a validated search.Config; the caller builds the engine
// with its own random source.
func DefaultStrategies() *registry.Registry[search.Config] {
	validated := func(cfg search.Config) (search.Config, error) {
		if err := cfg.Validate(); err != nil {
			return search.Config{}, err
		}
		return cfg, nil
	}

	return registry.New[search.Config]("search method").
		MustRegister(MethodGroupMeeting, func(params registry.Params) (search.Config, error) {
			p, err := decodeStrategy(params, "num_particles", "base", "min_group", "max_group")
			if err != nil {
				return search.Config{}, err
			}
			return validated(search.GroupMeeting(p.NumParticles, p.Base, p.MinGroup, p.MaxGroup, p.presetOptions()...))
		}).
		MustRegister(MethodBestOfN, func(params registry.Params) (search.Config, error) {
			p, err := decodeStrategy(params, "num_particles")
			if err != nil {
				return search.Config{}, err
			}
			return validated(search.BestOfN(p.NumParticles))
		}).
		MustRegister(MethodGlobal, func(params registry.Params) (search.Config, error) {
			p, err := decodeStrategy(params, "num_particles", "base")
			if err != nil {
				return search.Config{}, err
			}
			return validated(search.Global(p.NumParticles, p.Base, p.presetOptions()...))
		}).
		MustRegister(MethodDiverseBeam, func(params registry.Params) (search.Config, error) {
			p, err := decodeStrategy(params, "num_particles", "g", "base")
			if err != nil {
				return search.Config{}, err
			}
			return validated(search.DiverseBeam(p.NumParticles, p.G, p.Base, p.presetOptions()...))
		})
}

// ProviderDeps holds the collaborators of the built-in reward providers.
// Providers whose collaborators are nil fail to build.
type ProviderDeps struct {
	// Embedder backs the identity reward.
	Embedder embedding.Embedder

	// Ranker backs the text alignment reward.
	Ranker alignment.Ranker

	// Images and Prompts are the side-information catalogs.
	Images  *reference.Catalog
	Prompts *reference.Catalog

	// Operator is installed on the measurement provider, if set.
	Operator measurement.Operator

	Logger *slog.Logger
}

// Provider names registered by Providers.
const (
	ProviderAdaFace     = embedding.Name
	ProviderEmbedding   = "embedding"
	ProviderMeasurement = measurement.Name
	ProviderAlignment   = alignment.Name
)

// Providers returns a registry of the built-in reward providers. Every
// provider built from it is a fresh instance.
func Providers(deps ProviderDeps) *registry.Registry[reward.Provider] {
	identity := func(params registry.Params) (reward.Provider, error) {
		if deps.Embedder == nil {
			return nil, errors.New("no embedder configured")
		}
		cfg := embedding.DefaultConfig()
		if err := registry.Decode(params, &cfg); err != nil {
			return nil, err
		}
		var optFns []embedding.Option
		if deps.Logger != nil {
			optFns = append(optFns, embedding.WithLogger(deps.Logger))
		}
		p, err := embedding.New(deps.Embedder, deps.Images, cfg, optFns...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	return registry.New[reward.Provider]("reward provider").
		MustRegister(ProviderAdaFace, identity).
		MustRegister(ProviderEmbedding, identity).
		MustRegister(ProviderMeasurement, func(params registry.Params) (reward.Provider, error) {
			cfg := measurement.DefaultConfig()
			if err := registry.Decode(params, &cfg); err != nil {
				return nil, err
			}
			p := measurement.New(cfg)
			if deps.Operator != nil {
				p.SetOperator(deps.Operator)
			}
			return p, nil
		}).
		MustRegister(ProviderAlignment, func(params registry.Params) (reward.Provider, error) {
			if deps.Ranker == nil {
				return nil, errors.New("no ranker configured")
			}
			cfg := alignment.DefaultConfig()
			if err := registry.Decode(params, &cfg); err != nil {
				return nil, err
			}
			p, err := alignment.New(deps.Ranker, deps.Prompts, cfg)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
}
