package dsp

import (
	"math"

	"github.com/earpeace/earpeace/internal/audio"
)

// Limiter timing. Release is long enough to avoid pumping on speech and
// short clips; lookahead covers the attack so transients never overshoot.
const (
	limiterReleaseMs   = 50
	limiterLookaheadMs = 5

	// DefaultSafetyMarginDB is extra attenuation applied to clamped gains
	// when the peak was measured per-sample, covering inter-sample
	// overshoot.
	DefaultSafetyMarginDB = 0.1
)

// Applier scales buffers by a planned gain and enforces the ceiling with a
// lookahead limiter.
type Applier struct {
	// CeilingDBFS is the limiter threshold.
	CeilingDBFS float64
	// SafetyMarginDB is subtracted from clamped gains measured with plain
	// sample peak. Zero means DefaultSafetyMarginDB.
	SafetyMarginDB float64
}

// Apply returns a new buffer scaled by the planned gain with the ceiling
// enforced. Buffers with an Unchanged plan are returned as is.
func (a Applier) Apply(buf *audio.Buffer, plan Plan, truePeak bool) *audio.Buffer {
	if plan.Unchanged {
		return buf
	}
	margin := a.SafetyMarginDB
	if margin == 0 {
		margin = DefaultSafetyMarginDB
	}
	gain := plan.GainDB
	if plan.Limited && !truePeak {
		gain -= margin
	}
	linear := float32(math.Pow(10, gain/20))

	out := &audio.Buffer{
		Samples:    make([]float32, len(buf.Samples)),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	for i, s := range buf.Samples {
		out.Samples[i] = s * linear
	}
	limit(out, a.CeilingDBFS)
	return out
}

// limit runs a two-pass lookahead limiter over buf so no frame peak
// exceeds the threshold. Pass one computes the per-frame gain reduction,
// pulled forward across the lookahead window; pass two smooths releases
// with a one-pole envelope while keeping attacks instantaneous.
func limit(buf *audio.Buffer, thresholdDBFS float64) {
	threshold := math.Pow(10, thresholdDBFS/20)
	frames := buf.Frames()
	lookahead := buf.SampleRate * limiterLookaheadMs / 1000
	releaseSamples := float64(buf.SampleRate) * limiterReleaseMs / 1000
	releaseCoeff := math.Exp(-1 / releaseSamples)

	reduction := make([]float64, frames)
	for i := range reduction {
		reduction[i] = 1
	}
	for i := 0; i < frames; i++ {
		var peak float64
		for c := 0; c < buf.Channels; c++ {
			if a := math.Abs(float64(buf.Samples[i*buf.Channels+c])); a > peak {
				peak = a
			}
		}
		if peak <= threshold {
			continue
		}
		needed := threshold / peak
		start := i - lookahead
		if start < 0 {
			start = 0
		}
		for j := start; j <= i; j++ {
			if needed < reduction[j] {
				reduction[j] = needed
			}
		}
	}

	env := 1.0
	for i := 0; i < frames; i++ {
		if reduction[i] < env {
			env = reduction[i]
		} else {
			env = reduction[i] + releaseCoeff*(env-reduction[i])
		}
		if env >= 1 {
			continue
		}
		g := float32(env)
		for c := 0; c < buf.Channels; c++ {
			buf.Samples[i*buf.Channels+c] *= g
		}
	}
}
