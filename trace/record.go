package trace

import (
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rewardsearch/search"
)

// Record is the journal entry for one guided step.
type Record struct {
	Run        string
	Step       int
	Method     string
	Mode       search.Mode
	GroupSize  int
	Rewards    []float64
	Assignment []int
	Survivors  *roaring.Bitmap
	Time       time.Time
}

// NewRecord builds a record and derives Survivors from assignment.
func NewRecord(run string, step int, method string, mode search.Mode, groupSize int, rewards []float64, assignment []int) Record {
	return Record{
		Run:        run,
		Step:       step,
		Method:     method,
		Mode:       mode,
		GroupSize:  groupSize,
		Rewards:    rewards,
		Assignment: assignment,
		Survivors:  Survivors(assignment),
		Time:       time.Now().UTC(),
	}
}

// Survivors returns the set of particle indices referenced by assignment.
func Survivors(assignment []int) *roaring.Bitmap {
	bm := roaring.New()
	for _, idx := range assignment {
		if idx >= 0 {
			bm.Add(uint32(idx))
		}
	}
	return bm
}

// Resampled reports whether the assignment changed the population.
func (r Record) Resampled() bool {
	for i, v := range r.Assignment {
		if v != i {
			return true
		}
	}
	return false
}

// Best returns the index and value of the highest finite reward, or -1.
func (r Record) Best() (int, float64) {
	best, val := -1, math.Inf(-1)
	for i, v := range r.Rewards {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if best < 0 || v > val {
			best, val = i, v
		}
	}
	return best, val
}

// wireRecord is the codec representation of a Record.
type wireRecord struct {
	Run        string     `json:"run"`
	Step       int        `json:"step"`
	Method     string     `json:"method,omitempty"`
	Mode       string     `json:"mode"`
	GroupSize  int        `json:"group_size"`
	Rewards    []*float64 `json:"rewards"`
	Assignment []int      `json:"assignment"`
	Survivors  []byte     `json:"survivors"`
	Time       time.Time  `json:"time"`
}

func toWire(r Record) (wireRecord, error) {
	w := wireRecord{
		Run:        r.Run,
		Step:       r.Step,
		Method:     r.Method,
		Mode:       r.Mode.String(),
		GroupSize:  r.GroupSize,
		Rewards:    make([]*float64, len(r.Rewards)),
		Assignment: r.Assignment,
		Time:       r.Time,
	}
	// Non-finite rewards are not representable in JSON and are stored as null.
	for i, v := range r.Rewards {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			w.Rewards[i] = &v
		}
	}

	survivors := r.Survivors
	if survivors == nil {
		survivors = Survivors(r.Assignment)
	}
	b, err := survivors.ToBytes()
	if err != nil {
		return wireRecord{}, fmt.Errorf("encode survivors of step %d: %w", r.Step, err)
	}
	w.Survivors = b
	return w, nil
}

func fromWire(w wireRecord) (Record, error) {
	mode, err := search.ParseMode(w.Mode)
	if err != nil {
		return Record{}, err
	}
	r := Record{
		Run:        w.Run,
		Step:       w.Step,
		Method:     w.Method,
		Mode:       mode,
		GroupSize:  w.GroupSize,
		Rewards:    make([]float64, len(w.Rewards)),
		Assignment: w.Assignment,
		Survivors:  roaring.New(),
		Time:       w.Time,
	}
	for i, v := range w.Rewards {
		if v == nil {
			r.Rewards[i] = math.NaN()
		} else {
			r.Rewards[i] = *v
		}
	}
	if len(w.Survivors) > 0 {
		if err := r.Survivors.UnmarshalBinary(w.Survivors); err != nil {
			return Record{}, fmt.Errorf("decode survivors of step %d: %w", w.Step, err)
		}
	}
	return r, nil
}
