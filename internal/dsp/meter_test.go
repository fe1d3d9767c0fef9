package dsp

import (
	"errors"
	"math"
	"testing"

	"github.com/earpeace/earpeace/internal/audio"
)

// sine builds a mono sine buffer for calibration tests.
func sine(t *testing.T, freq float64, rate int, dur float64, amp float64) *audio.Buffer {
	t.Helper()
	frames := int(float64(rate) * dur)
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return &audio.Buffer{Samples: samples, SampleRate: rate, Channels: 1}
}

// A full-scale 997 Hz sine reads -3.01 LUFS on a BS.1770 meter; scaling
// the amplitude shifts the reading by 20*log10(amp).
func TestMeterSineCalibration(t *testing.T) {
	cases := []struct {
		name string
		rate int
		amp  float64
		want float64
	}{
		{"full scale 48k", 48000, 1.0, -3.01},
		{"full scale 44.1k", 44100, 1.0, -3.01},
		{"quarter scale 48k", 48000, 0.25, 20*math.Log10(0.25) - 3.01},
		{"-20 dB 48k", 48000, 0.1, -23.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := sine(t, 997, tc.rate, 3, tc.amp)
			m, err := Meter{}.Measure(buf)
			if err != nil {
				t.Fatalf("measure: %v", err)
			}
			if math.Abs(m.Integrated-tc.want) > 0.5 {
				t.Errorf("integrated = %.2f LUFS, want %.2f +/- 0.5", m.Integrated, tc.want)
			}
			wantPeak := 20 * math.Log10(tc.amp)
			if math.Abs(m.Peak-wantPeak) > 0.1 {
				t.Errorf("peak = %.2f dBFS, want %.2f", m.Peak, wantPeak)
			}
		})
	}
}

func TestMeterStereoMatchesMonoPlusThree(t *testing.T) {
	mono := sine(t, 997, 48000, 3, 0.5)
	stereo := &audio.Buffer{SampleRate: 48000, Channels: 2,
		Samples: make([]float32, len(mono.Samples)*2)}
	for i, s := range mono.Samples {
		stereo.Samples[2*i] = s
		stereo.Samples[2*i+1] = s
	}
	mm, err := Meter{}.Measure(mono)
	if err != nil {
		t.Fatal(err)
	}
	ms, err := Meter{}.Measure(stereo)
	if err != nil {
		t.Fatal(err)
	}
	// Correlated channels sum in power, 3 dB louder than one of them.
	if diff := ms.Integrated - mm.Integrated; math.Abs(diff-3.01) > 0.1 {
		t.Errorf("stereo - mono = %.2f LU, want 3.01", diff)
	}
}

func TestMeterRejectsShortAndSilentInput(t *testing.T) {
	cases := []struct {
		name string
		buf  *audio.Buffer
	}{
		{"too short", sine(t, 997, 48000, 0.2, 1.0)},
		{"silence", &audio.Buffer{Samples: make([]float32, 48000), SampleRate: 48000, Channels: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (Meter{}).Measure(tc.buf); !errors.Is(err, ErrInsufficientAudio) {
				t.Fatalf("got %v, want ErrInsufficientAudio", err)
			}
		})
	}
}

func TestTruePeakAtLeastSamplePeak(t *testing.T) {
	buf := sine(t, 997, 48000, 1, 0.8)
	m, err := Meter{UseTruePeak: true}.Measure(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !m.TruePeak {
		t.Fatal("TruePeak not set")
	}
	sp := SamplePeakDB(buf.Samples)
	if m.Peak < sp-0.05 {
		t.Errorf("true peak %.2f dBFS below sample peak %.2f", m.Peak, sp)
	}
	if m.Peak > sp+1.0 {
		t.Errorf("true peak %.2f dBFS implausibly above sample peak %.2f", m.Peak, sp)
	}
}
