// Package audio provides PCM buffers and codec adapters for the clip
// formats earpeace handles (WAV, MP3, Ogg Opus).
package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for codec failures. Decode errors are deterministic and
// must not be retried by callers.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptInput      = errors.New("corrupt audio input")
	ErrEncode            = errors.New("audio encoding failed")
)

// Buffer holds decoded PCM audio as interleaved float32 samples in [-1, 1].
// Buffers are treated as immutable once decoded; gain application writes
// into a fresh Buffer.
type Buffer struct {
	Samples    []float32 // interleaved
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Format identifies the encoded container/codec of a clip.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOggOpus Format = "ogg"
)

// FormatFromName derives the Format from a file name or bare extension.
// Discord serves soundboard clips as Ogg Opus regardless of their original
// upload format, so ".ogg" maps to FormatOggOpus.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(name)
	if i := strings.LastIndex(ext, "."); i >= 0 {
		ext = ext[i+1:]
	}
	switch ext {
	case "wav", "wave":
		return FormatWAV, nil
	case "mp3":
		return FormatMP3, nil
	case "ogg", "oga", "opus":
		return FormatOggOpus, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// ContentType returns the MIME type used when uploading clips of this format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mp3"
	case FormatOggOpus:
		return "audio/ogg"
	}
	return "application/octet-stream"
}

// Extension returns the conventional file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}
