// Package testutil provides testing utilities for rewardsearch.
//
// This package is intended for use in tests, benchmarks and the simulate
// command only. It provides a seeded random source for particles and
// rewards, and synthetic reward providers with known optima.
//
// # Random Populations
//
//	rng := testutil.NewRNG(seed)
//	batch := rng.Batch(16, particle.Shape{C: 3, H: 8, W: 8}) // uniform [-1, 1)
//	rewards := rng.Rewards(16)                                // standard normal
//
// # Synthetic Rewards
//
//	target := rng.Batch(1, shape)
//	p := testutil.NewTargetProvider(target.At(0), 1)
//
// TargetProvider scores particles by negative squared distance to a fixed
// target, so a guided search should move the population toward it.
package testutil
