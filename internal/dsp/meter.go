package dsp

import (
	"errors"
	"math"

	"github.com/earpeace/earpeace/internal/audio"
)

// ErrInsufficientAudio is returned when a clip is too short to form a
// single gating block, or when every block falls below the gates (silence).
var ErrInsufficientAudio = errors.New("not enough audio to measure loudness")

// Measurement is the result of metering one clip.
type Measurement struct {
	// Integrated is the gated integrated loudness in LUFS.
	Integrated float64
	// Peak is the highest absolute sample value in dBFS. With true-peak
	// metering enabled it is the 4x oversampled inter-sample peak.
	Peak float64
	// TruePeak records whether Peak was measured with oversampling.
	TruePeak bool
	// Blocks is the number of 400 ms gating blocks that survived gating.
	Blocks int
}

// Meter measures integrated loudness per ITU-R BS.1770-4.
type Meter struct {
	// UseTruePeak enables 4x oversampled peak detection in place of the
	// plain sample peak.
	UseTruePeak bool
}

// Gating block geometry and thresholds from BS.1770-4.
const (
	blockMs = 400
	hopMs   = 100

	absoluteGateLUFS = -70.0
	relativeGateLU   = -10.0

	// The -0.691 offset calibrates the K-weighted power sum to LUFS.
	loudnessOffset = -0.691
)

// Measure computes the integrated loudness and peak of buf.
func (m Meter) Measure(buf *audio.Buffer) (Measurement, error) {
	blockFrames := buf.SampleRate * blockMs / 1000
	hopFrames := buf.SampleRate * hopMs / 1000
	frames := buf.Frames()
	if frames < blockFrames {
		return Measurement{}, ErrInsufficientAudio
	}

	// K-weight each channel once, accumulating per-frame weighted power.
	// Mono and stereo channels all carry unit weight.
	power := make([]float64, frames)
	for c := 0; c < buf.Channels; c++ {
		kw := newKWeight(buf.SampleRate)
		for i := 0; i < frames; i++ {
			y := kw.process(float64(buf.Samples[i*buf.Channels+c]))
			power[i] += y * y
		}
	}

	// Mean square over each 400 ms block, advancing by the 100 ms hop.
	var blocks []float64
	for start := 0; start+blockFrames <= frames; start += hopFrames {
		var sum float64
		for i := start; i < start+blockFrames; i++ {
			sum += power[i]
		}
		blocks = append(blocks, sum/float64(blockFrames))
	}

	// Stage one: absolute gate at -70 LUFS.
	var gated []float64
	for _, p := range blocks {
		if blockLoudness(p) > absoluteGateLUFS {
			gated = append(gated, p)
		}
	}
	if len(gated) == 0 {
		return Measurement{}, ErrInsufficientAudio
	}

	// Stage two: relative gate 10 LU below the mean of surviving blocks.
	relGate := blockLoudness(mean(gated)) + relativeGateLU
	var final []float64
	for _, p := range gated {
		if blockLoudness(p) > relGate {
			final = append(final, p)
		}
	}
	if len(final) == 0 {
		return Measurement{}, ErrInsufficientAudio
	}

	peak, isTrue := m.peak(buf)
	return Measurement{
		Integrated: blockLoudness(mean(final)),
		Peak:       peak,
		TruePeak:   isTrue,
		Blocks:     len(final),
	}, nil
}

func (m Meter) peak(buf *audio.Buffer) (float64, bool) {
	if m.UseTruePeak {
		return truePeakDB(buf), true
	}
	return SamplePeakDB(buf.Samples), false
}

// SamplePeakDB returns the largest absolute sample value in dBFS.
func SamplePeakDB(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(peak)
}

func blockLoudness(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return math.Inf(-1)
	}
	return loudnessOffset + 10*math.Log10(meanSquare)
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
