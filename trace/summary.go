package trace

import (
	"math"
	"time"
)

// Summary aggregates the records of a run.
type Summary struct {
	Run        string
	Method     string
	Steps      int
	Resamples  int
	FirstStep  int
	LastStep   int
	BestStep   int
	BestReward float64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summarize aggregates records. BestStep is -1 if no finite reward exists.
func Summarize(records []Record) Summary {
	s := Summary{BestStep: -1, BestReward: math.Inf(-1)}
	for i, r := range records {
		if i == 0 {
			s.Run, s.Method = r.Run, r.Method
			s.FirstStep, s.StartedAt = r.Step, r.Time
		}
		s.Steps++
		s.LastStep, s.FinishedAt = r.Step, r.Time
		if r.Resampled() {
			s.Resamples++
		}
		if idx, v := r.Best(); idx >= 0 && v > s.BestReward {
			s.BestStep, s.BestReward = r.Step, v
		}
	}
	return s
}
