package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rewardsearch/blobstore"
	"github.com/hupe1980/rewardsearch/codec"
	"github.com/hupe1980/rewardsearch/trace"
)

func newTraceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recorded runs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				reader, err := a.traceReader(cmd.Context())
				if err != nil {
					return err
				}
				runs, err := reader.Runs(cmd.Context())
				if err != nil {
					return err
				}
				for _, run := range runs {
					fmt.Fprintln(cmd.OutOrStdout(), run)
				}
				return nil
			},
		},
		newTraceInspectCmd(a),
	)
	return cmd
}

func newTraceInspectCmd(a *app) *cobra.Command {
	var (
		run     string
		asJSON  bool
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the decoded records of a run",
		Example: `  rewardsearch trace inspect --run sim-20250101T120000
  rewardsearch trace inspect --run sim-20250101T120000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reader, err := a.traceReader(ctx)
			if err != nil {
				return err
			}
			records, err := reader.Records(ctx, run)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no records for run %q", run)
			}

			out := cmd.OutOrStdout()
			switch {
			case summary:
				if err := printSummary(out, trace.Summarize(records), records[0].Mode, nil); err != nil {
					return err
				}
			case asJSON:
				if err := printRecordsJSON(out, records); err != nil {
					return err
				}
			default:
				if err := printRecords(out, records); err != nil {
					return err
				}
			}

			return a.printLedgerEntry(ctx, out, run)
		},
	}

	cmd.Flags().StringVar(&run, "run", "", "run id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per record")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the run summary")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func (a *app) traceReader(ctx context.Context) (*trace.Reader, error) {
	store, err := openStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	return trace.NewReader(blobstore.WithPrefix(store, a.cfg.Trace.Prefix)), nil
}

func (a *app) printLedgerEntry(ctx context.Context, out io.Writer, run string) error {
	ledger, err := openLedger(ctx, a.cfg.Ledger)
	if err != nil || ledger == nil {
		return err
	}
	e, err := ledger.Get(ctx, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nledger: status=%s particles=%d created=%s finished=%s\n",
		e.Status, e.Particles, e.CreatedAt.Format(time.RFC3339), e.FinishedAt.Format(time.RFC3339))
	return nil
}

func printRecords(out io.Writer, records []trace.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tMETHOD\tMODE\tGROUP SIZE\tRESAMPLED\tBEST\tBEST REWARD\tSURVIVORS")
	for _, r := range records {
		best, val := r.Best()
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\t%d\t%.6g\t%d\n",
			r.Step, r.Method, r.Mode, r.GroupSize, r.Resampled(), best, val, r.Survivors.GetCardinality())
	}
	return w.Flush()
}

// recordView is the JSON shape printed by "trace inspect --json".
type recordView struct {
	Step       int      `json:"step"`
	Method     string   `json:"method,omitempty"`
	Mode       string   `json:"mode"`
	GroupSize  int      `json:"group_size"`
	Assignment []int    `json:"assignment"`
	Survivors  []uint32 `json:"survivors"`
	Best       int      `json:"best"`
	Time       string   `json:"time"`
}

func printRecordsJSON(out io.Writer, records []trace.Record) error {
	for _, r := range records {
		best, _ := r.Best()
		line, err := codec.Default.Marshal(recordView{
			Step:       r.Step,
			Method:     r.Method,
			Mode:       r.Mode.String(),
			GroupSize:  r.GroupSize,
			Assignment: r.Assignment,
			Survivors:  r.Survivors.ToArray(),
			Best:       best,
			Time:       r.Time.Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
