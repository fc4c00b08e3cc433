package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rewardsearch/search"
)

func newScheduleCmd() *cobra.Command {
	var (
		particles int
		base      int
		minGroup  int
		maxGroup  int
		steps     int
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the group size of every resampling step",
		Example: `  rewardsearch schedule --particles 16 --base 10 --min-group 2 --max-group 16 --steps 200
  rewardsearch schedule --particles 8 --base 1 --min-group 8 --max-group 8 --steps 4 --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := search.New(search.GroupMeeting(particles, base, minGroup, maxGroup))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tK\tGROUP SIZE\tGROUPS\tRUNNER-UP SLOTS")
			for step := 0; step <= steps; step++ {
				if !engine.Resamples(step) {
					if all {
						fmt.Fprintf(w, "%d\t-\t-\t-\t-\n", step)
					}
					continue
				}
				gs := engine.GroupSize(step)
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", step, step/base, gs, len(engine.Groups(step)), runnerUpSlots(gs))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&particles, "particles", 16, "population size (power of two)")
	cmd.Flags().IntVar(&base, "base", 10, "steps between resampling")
	cmd.Flags().IntVar(&minGroup, "min-group", 2, "minimum group size")
	cmd.Flags().IntVar(&maxGroup, "max-group", 16, "maximum group size")
	cmd.Flags().IntVar(&steps, "steps", 100, "last step to print")
	cmd.Flags().BoolVar(&all, "all", false, "also print steps that do not resample")
	return cmd
}

// runnerUpSlots is the per-group runner-up quota of deterministic mode.
func runnerUpSlots(groupSize int) int {
	if groupSize < 8 {
		return 0
	}
	return (groupSize + 7) / 8
}
