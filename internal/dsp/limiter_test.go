package dsp

import (
	"math"
	"testing"

	"github.com/earpeace/earpeace/internal/audio"
)

func TestApplyUnchangedReturnsSameBuffer(t *testing.T) {
	buf := sine(t, 440, 48000, 1, 0.5)
	a := Applier{CeilingDBFS: -1}
	out := a.Apply(buf, Plan{Unchanged: true, Linear: 1}, false)
	if out != buf {
		t.Fatal("unchanged plan should pass the buffer through")
	}
}

func TestApplyProducesNewBuffer(t *testing.T) {
	buf := sine(t, 440, 48000, 1, 0.1)
	before := append([]float32(nil), buf.Samples...)
	a := Applier{CeilingDBFS: -1}
	out := a.Apply(buf, Plan{GainDB: 5, Linear: math.Pow(10, 5.0/20)}, false)
	if out == buf {
		t.Fatal("apply must not return the input buffer")
	}
	for i := range before {
		if buf.Samples[i] != before[i] {
			t.Fatalf("input sample %d mutated", i)
		}
	}
	if out.SampleRate != buf.SampleRate || out.Channels != buf.Channels {
		t.Fatalf("output geometry %d/%d", out.SampleRate, out.Channels)
	}
}

func TestApplyHitsTarget(t *testing.T) {
	p, err := NewPlanner(-18, -1)
	if err != nil {
		t.Fatal(err)
	}
	// -20 dBFS sine measures around -23 LUFS, leaving room for a clean
	// +5 dB boost with no limiting.
	buf := sine(t, 997, 48000, 3, 0.1)
	m, err := Meter{}.Measure(buf)
	if err != nil {
		t.Fatal(err)
	}
	plan := p.PlanFor(m)
	if plan.Limited || plan.Unchanged {
		t.Fatalf("unexpected plan %+v", plan)
	}
	out := Applier{CeilingDBFS: p.CeilingDBFS}.Apply(buf, plan, m.TruePeak)

	after, err := Meter{}.Measure(out)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(after.Integrated-(-18)) > 0.5 {
		t.Errorf("after apply integrated = %.2f LUFS, want -18 +/- 0.5", after.Integrated)
	}
}

func TestApplyRespectsCeilingWhenLimited(t *testing.T) {
	p, err := NewPlanner(-18, -1)
	if err != nil {
		t.Fatal(err)
	}
	// Quiet loudness but a hot peak forces a clamped gain.
	buf := sine(t, 997, 48000, 3, 0.05)
	// Spike one sample so the peak, not the loudness, drives the clamp.
	buf.Samples[48000] = 0.3
	m, err := Meter{}.Measure(buf)
	if err != nil {
		t.Fatal(err)
	}
	plan := p.PlanFor(m)
	if !plan.Limited {
		t.Fatalf("expected limited plan, got %+v", plan)
	}
	out := Applier{CeilingDBFS: p.CeilingDBFS}.Apply(buf, plan, m.TruePeak)

	if peak := SamplePeakDB(out.Samples); peak > p.CeilingDBFS+0.01 {
		t.Errorf("output peak = %.3f dBFS, ceiling %.1f", peak, p.CeilingDBFS)
	}
}

func TestLimitPullsOvershootDown(t *testing.T) {
	rate := 48000
	buf := &audio.Buffer{SampleRate: rate, Channels: 1, Samples: make([]float32, rate)}
	for i := range buf.Samples {
		buf.Samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	// Burst well above the threshold mid-clip.
	for i := rate / 2; i < rate/2+480; i++ {
		buf.Samples[i] *= 3
	}
	limit(buf, -1)
	threshold := math.Pow(10, -1.0/20)
	for i, s := range buf.Samples {
		if math.Abs(float64(s)) > threshold+1e-4 {
			t.Fatalf("sample %d = %v exceeds threshold %v", i, s, threshold)
		}
	}
	// Samples far from the burst keep their level.
	if a := math.Abs(float64(buf.Samples[1000])); a > 0.5+1e-3 {
		t.Errorf("early sample boosted to %v", a)
	}
}
