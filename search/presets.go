package search

// PresetOption adjusts the optional parameters of a preset.
type PresetOption func(*Config)

// WithStartStep records the start step. It does not gate resampling.
func WithStartStep(step int) PresetOption {
	return func(c *Config) {
		c.StartStep = step
	}
}

// WithNormalizingFactor sets the Gaussian kernel sharpness.
func WithNormalizingFactor(f float64) PresetOption {
	return func(c *Config) {
		c.NormalizingFactor = f
	}
}

func applyPreset(c Config, optFns []PresetOption) Config {
	for _, fn := range optFns {
		if fn != nil {
			fn(&c)
		}
	}
	return c
}

// GroupMeeting is the general configuration: group size grows with the
// lowest set bit of step/base, clamped to [minGroup, maxGroup].
func GroupMeeting(numParticles, base, minGroup, maxGroup int, optFns ...PresetOption) Config {
	return applyPreset(Config{
		NumParticles:      numParticles,
		Base:              base,
		MinGroup:          minGroup,
		MaxGroup:          maxGroup,
		StartStep:         DefaultStartStep,
		NormalizingFactor: DefaultNormalizingFactor,
	}, optFns)
}

// BestOfN selects once over the whole population.
func BestOfN(numParticles int) Config {
	return Config{
		NumParticles:      numParticles,
		Base:              BestOfNBase,
		MinGroup:          numParticles,
		MaxGroup:          numParticles,
		StartStep:         1,
		NormalizingFactor: DefaultNormalizingFactor,
	}
}

// Global resamples the whole population every base steps.
func Global(numParticles, base int, optFns ...PresetOption) Config {
	return GroupMeeting(numParticles, base, numParticles, numParticles, optFns...)
}

// DiverseBeam resamples within fixed groups of size g every base steps.
func DiverseBeam(numParticles, g, base int, optFns ...PresetOption) Config {
	return GroupMeeting(numParticles, base, g, g, optFns...)
}
