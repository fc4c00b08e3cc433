// Package rewardsearch provides reward-guided particle search for diffusion
// sampling.
//
// A sampling loop keeps a population of N candidate images ("particles").
// At every denoising step a reward provider scores the population and the
// search engine decides which particles survive, which are duplicated and
// in what proportion. Guide wires the two together.
//
// # Quick Start
//
//	engine, _ := search.New(search.DiverseBeam(16, 4, 10), search.WithSeed(7))
//	guide, _ := rewardsearch.NewGuide(provider, engine,
//	    rewardsearch.WithMode(search.Probabilistic),
//	    rewardsearch.WithLogger(rewardsearch.NewTextLogger(slog.LevelInfo)),
//	)
//
//	for step := 0; step < steps; step++ {
//	    x = denoise(x, step)
//	    res, err := guide.Step(ctx, step, x, nil)
//	    if err != nil {
//	        return err
//	    }
//	    x = res.Particles
//	}
//
// # Selecting Components By Name
//
// DefaultStrategies and Providers return registries of the built-in search
// methods and reward providers. Build them once at startup and resolve names
// from configuration:
//
//	cfg, _ := rewardsearch.DefaultStrategies().Get("global", registry.Params{
//	    "num_particles": 16,
//	    "base":          10,
//	})
//
// # Gradient Guidance
//
// Gradients returns the provider's gradient multiplied by its guidance
// scale. Providers without gradient support report ok == false instead of a
// zero tensor:
//
//	grad, ok, err := guide.Gradients(ctx, x, payload)
//
// # Tracing
//
// WithTrace records every step (rewards, assignment, survivors) to a
// trace.Writer backed by any blobstore.BlobStore. The rewardsearch CLI can
// inspect recorded runs.
//
// # Observability
//
// Logging uses log/slog through Logger; metrics go to a MetricsCollector.
// Both default to no-ops.
package rewardsearch
