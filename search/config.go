package search

import "math"

const (
	// DefaultStartStep is the start step recorded by presets when none is given.
	DefaultStartStep = 960

	// DefaultNormalizingFactor is the Gaussian kernel sharpness used by presets.
	DefaultNormalizingFactor = 100.0

	// BestOfNBase is large enough that resampling fires at most once in any
	// realistic sampling schedule.
	BestOfNBase = 1_000_000
)

// Config parameterizes an Engine. It is immutable once passed to New.
type Config struct {
	// NumParticles is the population size N. Must be a power of two.
	NumParticles int

	// Base is the step interval between resampling steps. Group size grows
	// with the lowest set bit of step/Base.
	Base int

	// MinGroup and MaxGroup clamp the group size.
	MinGroup int
	MaxGroup int

	// StartStep is recorded but does not gate resampling.
	StartStep int

	// NormalizingFactor is the sharpness of the Gaussian score kernel.
	NormalizingFactor float64
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.NumParticles <= 0 || c.NumParticles&(c.NumParticles-1) != 0 {
		return &ErrConfigField{Field: "num_particles", Value: c.NumParticles, Reason: "must be a power of 2"}
	}
	if c.Base < 1 {
		return &ErrConfigField{Field: "base", Value: c.Base, Reason: "must be positive"}
	}
	if c.MinGroup < 1 {
		return &ErrConfigField{Field: "min_group", Value: c.MinGroup, Reason: "must be positive"}
	}
	if c.MaxGroup < c.MinGroup {
		return &ErrConfigField{Field: "max_group", Value: c.MaxGroup, Reason: "must be >= min_group"}
	}
	if c.MaxGroup > c.NumParticles {
		return &ErrConfigField{Field: "max_group", Value: c.MaxGroup, Reason: "must be <= num_particles"}
	}
	if c.StartStep < 0 {
		return &ErrConfigField{Field: "start_step", Value: c.StartStep, Reason: "must be non-negative"}
	}
	if !(c.NormalizingFactor > 0) || math.IsInf(c.NormalizingFactor, 0) {
		return &ErrConfigField{Field: "normalizing_factor", Value: c.NormalizingFactor, Reason: "must be a positive finite number"}
	}
	return nil
}
