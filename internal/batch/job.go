// Package batch runs the normalization pipeline over a set of clips with a
// bounded worker pool.
package batch

import (
	"time"

	"github.com/earpeace/earpeace/internal/dsp"
	"github.com/earpeace/earpeace/internal/source"
)

// State tracks a job through the pipeline.
type State int

const (
	StatePending State = iota
	StateFetching
	StateDecoding
	StateMeasuring
	StatePlanning
	StateApplying
	StateEncoding
	StateUploading
	StateDone
	StateUnchanged
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateDecoding:
		return "decoding"
	case StateMeasuring:
		return "measuring"
	case StatePlanning:
		return "planning"
	case StateApplying:
		return "applying"
	case StateEncoding:
		return "encoding"
	case StateUploading:
		return "uploading"
	case StateDone:
		return "done"
	case StateUnchanged:
		return "unchanged"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the final record for one clip.
type Result struct {
	Clip     source.Clip
	State    State
	Before   dsp.Measurement
	Plan     dsp.Plan
	After    dsp.Measurement
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Summary aggregates a finished batch. Skipped counts clips that never
// started because the run was cancelled or stopped by strict mode.
type Summary struct {
	Done      int
	Unchanged int
	Skipped   int
	Failed    int
	Results   []Result
}

// Total is the number of clips the batch processed.
func (s Summary) Total() int { return len(s.Results) }

// Event reports a job state change. Events for one clip arrive in order;
// events across clips interleave.
type Event struct {
	Clip   source.Clip
	State  State
	Result *Result // set on terminal states
}
