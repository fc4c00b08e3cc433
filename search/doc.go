// Package search implements the group-hierarchical resampling engine used for
// reward-guided particle search.
//
// At every step that is a positive multiple of Base, the population is split
// into contiguous groups of size min(lowbit(step/Base)*MinGroup, MaxGroup) and
// each group is resampled independently from its members' rewards. Early
// steps therefore resample small groups often; later steps resample larger
// groups less often.
//
// # Modes
//
//   - Deterministic: every slot takes the group's best particle, except
//     ceil(size/8) slots reserved for the runner-up in groups of 8 or more.
//   - Probabilistic: slots are drawn with replacement from the group's
//     Gaussian-kernel scores exp(-f*d^2), d being the min-max normalized
//     distance from the best reward.
//
// # Presets
//
//	engine, _ := search.New(search.DiverseBeam(16, 4, 10), search.WithSeed(7))
//	idx, err := engine.Search(rewards, step, search.Deterministic)
//
// BestOfN, Global and DiverseBeam are parameter presets of the same engine.
package search
