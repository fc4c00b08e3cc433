// Command rewardsearch inspects search schedules, simulates guided runs
// against a synthetic reward and reads recorded traces.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
