package audio

import (
	"errors"
	"math"
	"testing"
)

// sineBuffer builds an interleaved sine wave for round-trip tests.
func sineBuffer(t *testing.T, freq float64, rate, channels, frames int, amp float64) *Buffer {
	t.Helper()
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return &Buffer{Samples: samples, SampleRate: rate, Channels: channels}
}

func TestWAVRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		rate     int
		channels int
	}{
		{"mono 48k", 48000, 1},
		{"stereo 48k", 48000, 2},
		{"stereo 44.1k", 44100, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sineBuffer(t, 440, tc.rate, tc.channels, tc.rate/2, 0.5)
			data, err := EncodeWAV(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := DecodeWAV(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.SampleRate != tc.rate || out.Channels != tc.channels {
				t.Fatalf("got %d Hz %d ch, want %d Hz %d ch",
					out.SampleRate, out.Channels, tc.rate, tc.channels)
			}
			if len(out.Samples) != len(in.Samples) {
				t.Fatalf("got %d samples, want %d", len(out.Samples), len(in.Samples))
			}
			// 16-bit quantisation keeps samples within one LSB.
			for i := range in.Samples {
				if diff := math.Abs(float64(in.Samples[i] - out.Samples[i])); diff > 1.0/32767 {
					t.Fatalf("sample %d differs by %g", i, diff)
				}
			}
		})
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RIFF")},
		{"not riff", make([]byte, 64)},
		{"no data chunk", append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 8)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeWAV(tc.data); !errors.Is(err, ErrCorruptInput) {
				t.Fatalf("got %v, want ErrCorruptInput", err)
			}
		})
	}
}

func TestFormatFromName(t *testing.T) {
	cases := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"clip.wav", FormatWAV, false},
		{"clip.mp3", FormatMP3, false},
		{"clip.ogg", FormatOggOpus, false},
		{"CLIP.WAV", FormatWAV, false},
		{"clip.flac", "", true},
		{"noext", "", true},
	}
	for _, tc := range cases {
		got, err := FormatFromName(tc.name)
		if tc.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("FormatFromName(%q) err = %v, want ErrUnsupportedFormat", tc.name, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("FormatFromName(%q) = %v, %v; want %v", tc.name, got, err, tc.want)
		}
	}
}

func TestEncodeFormatFallsBackToWAV(t *testing.T) {
	c := DefaultCodec{}
	if got := c.EncodeFormat(FormatMP3); got != FormatWAV {
		t.Errorf("mp3 encode format = %v, want wav", got)
	}
	if got := c.EncodeFormat(FormatOggOpus); got != FormatOggOpus {
		t.Errorf("ogg encode format = %v, want ogg", got)
	}
}
