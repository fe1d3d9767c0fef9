package dsp

import (
	"fmt"
	"math"
)

// Planning constants. Gains inside the dead band are not worth a re-encode.
const (
	// DeadBandDB is the minimum gain magnitude that triggers processing.
	DeadBandDB = 0.1

	maxTargetLUFS  = -10.0
	maxCeilingDBFS = -0.1
)

// Plan describes the gain to apply to one clip.
type Plan struct {
	// GainDB is the gain to apply in decibels, after any ceiling clamp.
	GainDB float64
	// Linear is GainDB converted to a linear multiplier.
	Linear float64
	// Limited is set when the ceiling clamped the gain below what the
	// loudness target asked for.
	Limited bool
	// Unchanged is set when the gain falls inside the dead band and the
	// clip should pass through untouched.
	Unchanged bool
}

// Planner turns a measurement into a gain plan against a loudness target
// and a peak ceiling.
type Planner struct {
	// TargetLUFS is the integrated loudness to aim for.
	TargetLUFS float64
	// CeilingDBFS is the peak level the output must not exceed.
	CeilingDBFS float64
}

// NewPlanner validates the target and ceiling. Both must be negative;
// targets above -10 LUFS or ceilings above -0.1 dBFS leave no useful
// headroom and are rejected.
func NewPlanner(targetLUFS, ceilingDBFS float64) (Planner, error) {
	if targetLUFS >= 0 {
		return Planner{}, fmt.Errorf("target loudness must be negative, got %.1f LUFS", targetLUFS)
	}
	if targetLUFS > maxTargetLUFS {
		return Planner{}, fmt.Errorf("target loudness must be at most %.0f LUFS, got %.1f", maxTargetLUFS, targetLUFS)
	}
	if ceilingDBFS >= 0 {
		return Planner{}, fmt.Errorf("peak ceiling must be negative, got %.1f dBFS", ceilingDBFS)
	}
	if ceilingDBFS > maxCeilingDBFS {
		return Planner{}, fmt.Errorf("peak ceiling must be at most %.1f dBFS, got %.1f", maxCeilingDBFS, ceilingDBFS)
	}
	return Planner{TargetLUFS: targetLUFS, CeilingDBFS: ceilingDBFS}, nil
}

// PlanFor computes the gain that moves the measured loudness to the target,
// clamped so the projected peak stays under the ceiling.
func (p Planner) PlanFor(m Measurement) Plan {
	gain := p.TargetLUFS - m.Integrated
	limited := false
	if projected := m.Peak + gain; projected > p.CeilingDBFS {
		gain = p.CeilingDBFS - m.Peak
		limited = true
	}
	if math.Abs(gain) < DeadBandDB {
		return Plan{Unchanged: true, Linear: 1}
	}
	return Plan{
		GainDB:  gain,
		Linear:  math.Pow(10, gain/20),
		Limited: limited,
	}
}
