package dsp

import (
	"math"

	"github.com/earpeace/earpeace/internal/audio"
)

// True peak estimation per BS.1770-4 annex 2: upsample by four with a
// polyphase windowed-sinc interpolator and take the largest magnitude.
const (
	oversample = 4
	// Taps per polyphase phase; 12 taps (48 total) matches the reference
	// filter length closely enough for limiter headroom decisions.
	phaseTaps = 12
)

var tpPhases = buildPolyphase()

func buildPolyphase() [oversample][phaseTaps]float64 {
	var phases [oversample][phaseTaps]float64
	total := oversample * phaseTaps
	center := float64(total-1) / 2
	for i := 0; i < total; i++ {
		x := (float64(i) - center) / oversample
		// sinc low pass at the original Nyquist, Hann windowed.
		var s float64
		if x == 0 {
			s = 1
		} else {
			s = math.Sin(math.Pi*x) / (math.Pi * x)
		}
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(total-1)))
		// Interleave taps across phases so phase p sees every fourth tap.
		phases[i%oversample][i/oversample] = s * w
	}
	return phases
}

// truePeakDB returns the 4x oversampled peak of buf in dBFS.
func truePeakDB(buf *audio.Buffer) float64 {
	var peak float64
	for c := 0; c < buf.Channels; c++ {
		n := buf.Frames()
		for i := 0; i < n; i++ {
			for p := 0; p < oversample; p++ {
				var acc float64
				for t := 0; t < phaseTaps; t++ {
					j := i - t
					if j < 0 {
						break
					}
					acc += float64(buf.Samples[j*buf.Channels+c]) * tpPhases[p][t]
				}
				if a := math.Abs(acc); a > peak {
					peak = a
				}
			}
		}
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(peak)
}
