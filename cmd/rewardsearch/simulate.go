package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rewardsearch"
	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/codec"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/particle"
	"github.com/hupe1980/rewardsearch/reference"
	"github.com/hupe1980/rewardsearch/registry"
	"github.com/hupe1980/rewardsearch/reward"
	"github.com/hupe1980/rewardsearch/reward/alignment/remote"
	"github.com/hupe1980/rewardsearch/reward/measurement"
	"github.com/hupe1980/rewardsearch/search"
	"github.com/hupe1980/rewardsearch/testutil"
	"github.com/hupe1980/rewardsearch/trace"
)

// providerTarget scores particles by distance to a random target image.
const providerTarget = "target"

type simulateOptions struct {
	steps      int
	particles  int
	provider   string
	scale      float64
	noise      float32
	guidance   float32
	run        string
	reference  int
	params     map[string]string
	resolution int
}

func newSimulateCmd(a *app) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a guided search against a synthetic reward",
		Long: `simulate perturbs a random particle population with Gaussian noise at every
step and lets the configured search method resample it. The default "target"
reward is the negative squared distance to a random target image, so the best
reward should rise over the run.

The "measurement" provider observes the target through a box mask. The
"text-alignment" provider scores particles with the remote ranker against the
prompts stored under "prompts/" in the configured storage.`,
		Example: `  rewardsearch simulate --method global --param base=5 --steps 50
  rewardsearch simulate --method diverse-beam-search --param g=4 --param base=2 --mode probabilistic --trace`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.simulate(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("method", "", "search method (group-meeting, best-of-n, global, diverse-beam-search)")
	cmd.Flags().String("mode", "", "selection mode (deterministic, probabilistic)")
	cmd.Flags().Uint64("seed", 0, "random seed for particles and probabilistic draws")
	cmd.Flags().Bool("trace", false, "record the run to the configured storage")
	cmd.Flags().Bool("ledger", false, "register the run in the DynamoDB ledger")
	cmd.Flags().String("ranker-endpoint", "", "remote ranker URL for the text-alignment provider")

	cmd.Flags().IntVar(&opts.steps, "steps", 100, "number of denoising steps")
	cmd.Flags().IntVar(&opts.particles, "particles", 0, "population size, overrides search.params.num_particles")
	cmd.Flags().StringVar(&opts.provider, "provider", providerTarget, "reward provider (target, measurement, text-alignment)")
	cmd.Flags().Float64Var(&opts.scale, "scale", 1, "guidance scale of the reward provider")
	cmd.Flags().Float32Var(&opts.noise, "noise", 0.05, "standard deviation of the per-step perturbation")
	cmd.Flags().Float32Var(&opts.guidance, "guidance", 0, "gradient step size, 0 disables gradient guidance")
	cmd.Flags().StringVar(&opts.run, "run", "", "run id (default sim-<timestamp>)")
	cmd.Flags().IntVar(&opts.reference, "reference", 0, "side-information index passed to the provider")
	cmd.Flags().StringToStringVar(&opts.params, "param", nil, "search parameter override, e.g. base=5")
	cmd.Flags().IntVar(&opts.resolution, "resolution", 8, "particle side length")
	return cmd
}

func (a *app) simulate(ctx context.Context, opts simulateOptions, out io.Writer) error {
	cfg := a.cfg

	params := registry.Params(maps.Clone(cfg.Search.Params))
	if params == nil {
		params = registry.Params{}
	}
	for k, v := range opts.params {
		params[k] = v
	}
	if opts.particles > 0 {
		params["num_particles"] = opts.particles
	}
	scfg, err := rewardsearch.DefaultStrategies().Get(cfg.Search.Method, params)
	if err != nil {
		return err
	}
	mode, err := search.ParseMode(cfg.Search.Mode)
	if err != nil {
		return err
	}
	engine, err := search.New(scfg, search.WithSeed(cfg.Search.Seed), search.WithLogger(a.logger.Logger))
	if err != nil {
		return err
	}

	rng := testutil.NewRNG(cfg.Search.Seed)
	shape := particle.Shape{C: 3, H: opts.resolution, W: opts.resolution}
	target := rng.Batch(1, shape)
	rc := newResourceController(cfg.Resources)

	provider, payload, err := a.buildProvider(ctx, opts, target, rc)
	if err != nil {
		return err
	}

	run := opts.run
	if run == "" {
		run = "sim-" + time.Now().UTC().Format("20060102T150405")
	}

	mc := &rewardsearch.BasicMetricsCollector{}
	guideOpts := []rewardsearch.Option{
		rewardsearch.WithMode(mode),
		rewardsearch.WithMethod(cfg.Search.Method),
		rewardsearch.WithRunID(run),
		rewardsearch.WithLogger(a.logger),
		rewardsearch.WithMetricsCollector(mc),
	}

	var writer *trace.Writer
	if cfg.Trace.Enabled {
		writer, err = a.traceWriter(ctx, run)
		if err != nil {
			return err
		}
		defer writer.Close(context.WithoutCancel(ctx))
		guideOpts = append(guideOpts, rewardsearch.WithTrace(writer))
	}

	ledger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	if ledger != nil {
		if err := ledger.Register(ctx, run, cfg.Search.Method, mode.String(), scfg.NumParticles); err != nil {
			return err
		}
	}

	guide, err := rewardsearch.NewGuide(provider, engine, guideOpts...)
	if err != nil {
		return err
	}
	if err := guide.SetSideInfo(ctx, reward.Reference{Index: opts.reference}); err != nil {
		return err
	}

	batch := rng.Batch(scfg.NumParticles, shape)
	records := make([]trace.Record, 0, opts.steps+1)

	for step := 0; step <= opts.steps; step++ {
		rng.Perturb(batch, opts.noise)

		if opts.guidance > 0 {
			grad, ok, err := guide.Gradients(ctx, batch, payload)
			if err != nil {
				return err
			}
			if ok {
				for i, g := range grad.Data {
					batch.Data[i] = min(max(batch.Data[i]-opts.guidance*g, -1), 1)
				}
			}
		}

		res, err := guide.Step(ctx, step, batch, payload)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		batch = res.Particles
		records = append(records, trace.NewRecord(run, step, cfg.Search.Method, mode, res.GroupSize, res.Rewards, res.Assignment))

		if res.Resampled() {
			a.logger.Info("resampled",
				"step", step,
				"group_size", res.GroupSize,
				"best_reward", res.BestReward,
				"survivors", res.Survivors,
			)
		}
	}

	if err := guide.Flush(ctx); err != nil {
		return err
	}

	summary := trace.Summarize(records)
	if ledger != nil {
		if err := ledger.Finish(ctx, summary); err != nil {
			return err
		}
	}

	stats := mc.GetStats()
	return printSummary(out, summary, mode, &stats)
}

func (a *app) traceWriter(ctx context.Context, run string) (*trace.Writer, error) {
	cfg := a.cfg.Trace

	store, err := openStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	comp, err := trace.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	cd, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown trace codec %q", cfg.Codec)
	}
	return trace.NewWriter(ctx, blobstore.WithPrefix(store, cfg.Prefix), run,
		trace.WithCompression(comp),
		trace.WithCodec(cd),
		trace.WithSegmentRecords(cfg.SegmentRecords),
		trace.WithLogger(a.logger.Logger),
	)
}

// buildProvider resolves the reward provider and the payload it needs.
func (a *app) buildProvider(ctx context.Context, opts simulateOptions, target *particle.Batch, rc *resource.Controller) (reward.Provider, reward.Payload, error) {
	if opts.provider == providerTarget {
		return testutil.NewTargetProvider(target.At(0), opts.scale), nil, nil
	}

	deps := rewardsearch.ProviderDeps{Logger: a.logger.Logger}
	var payload reward.Payload

	switch opts.provider {
	case rewardsearch.ProviderMeasurement:
		h, w := max(target.Shape.H/2, 1), max(target.Shape.W/2, 1)
		op := measurement.NewBoxMask(target.Shape, target.Shape.H/4, target.Shape.W/4, h, w, 0.05)
		y, err := op.Measure(ctx, target)
		if err != nil {
			return nil, nil, err
		}
		deps.Operator = op
		payload = reward.Payload{reward.PayloadMeasurements: y}
	case rewardsearch.ProviderAlignment:
		rcfg := a.cfg.Ranker
		if rcfg.Endpoint == "" {
			return nil, nil, errors.New("text-alignment needs ranker.endpoint")
		}
		store, err := openStore(ctx, a.cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		prompts, err := reference.NewCatalog(ctx, store, "prompts/", reference.TextExtensions,
			reference.WithCacheBytes(a.cfg.Resources.CacheBytes),
			reference.WithResourceController(rc),
		)
		if err != nil {
			return nil, nil, err
		}
		cb := rcfg.CircuitBreaker
		deps.Prompts = prompts
		deps.Ranker = remote.New(rcfg.Endpoint,
			remote.WithHTTPClient(&http.Client{Timeout: rcfg.Timeout}),
			remote.WithResourceController(rc),
			remote.WithAPIKey(rcfg.APIKey),
			remote.WithLogger(a.logger.Logger),
			remote.WithBreaker(remote.BreakerConfig{
				MaxRequests:  cb.MaxRequests,
				Interval:     cb.Interval,
				Timeout:      cb.Timeout,
				MinRequests:  cb.MinRequests,
				FailureRatio: cb.FailureRatio,
			}),
		)
	default:
		return nil, nil, fmt.Errorf("provider %q is not available in simulate", opts.provider)
	}

	p, err := rewardsearch.Providers(deps).Get(opts.provider, registry.Params{"scale": opts.scale})
	if err != nil {
		return nil, nil, err
	}
	return p, payload, nil
}

// printSummary writes s. Metrics lines are omitted when stats is nil.
func printSummary(out io.Writer, s trace.Summary, mode search.Mode, stats *rewardsearch.BasicMetricsStats) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", s.Run)
	fmt.Fprintf(w, "method\t%s\n", s.Method)
	fmt.Fprintf(w, "mode\t%s\n", mode)
	fmt.Fprintf(w, "steps\t%d\n", s.Steps)
	fmt.Fprintf(w, "resamples\t%d\n", s.Resamples)
	fmt.Fprintf(w, "best step\t%d\n", s.BestStep)
	fmt.Fprintf(w, "best reward\t%.6g\n", s.BestReward)
	if stats != nil {
		fmt.Fprintf(w, "avg survivors\t%d\n", stats.ResampleAvgSurvivors)
		fmt.Fprintf(w, "avg reward time\t%s\n", time.Duration(stats.RewardAvgNanos))
		fmt.Fprintf(w, "avg search time\t%s\n", time.Duration(stats.SearchAvgNanos))
	}
	return w.Flush()
}
