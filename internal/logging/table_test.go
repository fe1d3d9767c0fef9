package logging

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/earpeace/earpeace/internal/batch"
	"github.com/earpeace/earpeace/internal/dsp"
	"github.com/earpeace/earpeace/internal/source"
)

func TestResultTableRendersAllStates(t *testing.T) {
	results := []batch.Result{
		{
			Clip:   source.Clip{Name: "airhorn.ogg"},
			State:  batch.StateDone,
			Before: dsp.Measurement{Integrated: -24.2, Peak: -6.1},
			After:  dsp.Measurement{Integrated: -19.1, Peak: -1.2},
			Plan:   dsp.Plan{GainDB: 5.0, Limited: true},
		},
		{
			Clip:   source.Clip{Name: "chime.ogg"},
			State:  batch.StateUnchanged,
			Before: dsp.Measurement{Integrated: -18.0, Peak: -4.0},
			After:  dsp.Measurement{Integrated: -18.0, Peak: -4.0},
		},
		{
			Clip:  source.Clip{Name: "broken.ogg"},
			State: batch.StateFailed,
			Err:   fmt.Errorf("decode: %w", errors.New("corrupt audio input")),
		},
	}
	out := (&ResultTable{Results: results}).String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Clip") {
		t.Errorf("missing header: %q", lines[0])
	}
	checks := map[int][]string{
		1: {"airhorn.ogg", "-24.2 > -19.1 LUFS", "+5.0 dB", "normalized (limited)"},
		2: {"chime.ogg", "-18.0 LUFS", "unchanged"},
		3: {"broken.ogg", "failed: corrupt audio input"},
	}
	for i, wants := range checks {
		for _, w := range wants {
			if !strings.Contains(lines[i], w) {
				t.Errorf("line %d missing %q: %q", i, w, lines[i])
			}
		}
	}
}

func TestResultTableEmpty(t *testing.T) {
	if out := (&ResultTable{}).String(); out != "" {
		t.Errorf("empty table rendered %q", out)
	}
}

func TestClipTable(t *testing.T) {
	out := (&ClipTable{Clips: []source.Clip{
		{Name: "airhorn.ogg", Format: "ogg", ID: "111"},
		{Name: "a-very-long-clip-name.wav", Format: "wav", ID: "/tmp/a.wav"},
	}}).String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "airhorn.ogg") || !strings.Contains(lines[2], "/tmp/a.wav") {
		t.Errorf("rows wrong:\n%s", out)
	}
}
