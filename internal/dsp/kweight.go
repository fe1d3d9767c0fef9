// Package dsp implements ITU-R BS.1770-4 loudness measurement, gain
// planning and lookahead peak limiting over float32 PCM buffers.
package dsp

import "math"

// biquad is a direct form I second order IIR section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// kWeight holds the two-stage K-weighting chain for one channel: the
// head-diffraction high shelf followed by the RLB high pass.
type kWeight struct {
	shelf    biquad
	highpass biquad
}

func (k *kWeight) process(x float64) float64 {
	return k.highpass.process(k.shelf.process(x))
}

// BS.1770-4 defines the filters at 48 kHz by their analogue prototype
// parameters; deriving the coefficients from those parameters gives the
// correct response at any sample rate.
const (
	shelfFreq = 1681.9744509555319
	shelfGain = 3.999843853973347
	shelfQ    = 0.7071752369554193

	highpassFreq = 38.13547087613982
	highpassQ    = 0.5003270373253953
)

func newKWeight(sampleRate int) kWeight {
	return kWeight{
		shelf:    shelfFilter(float64(sampleRate)),
		highpass: highpassFilter(float64(sampleRate)),
	}
}

func shelfFilter(rate float64) biquad {
	k := math.Tan(math.Pi * shelfFreq / rate)
	vh := math.Pow(10, shelfGain/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/shelfQ + k*k
	return biquad{
		b0: (vh + vb*k/shelfQ + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/shelfQ + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/shelfQ + k*k) / a0,
	}
}

func highpassFilter(rate float64) biquad {
	k := math.Tan(math.Pi * highpassFreq / rate)
	a0 := 1 + k/highpassQ + k*k
	return biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/highpassQ + k*k) / a0,
	}
}
