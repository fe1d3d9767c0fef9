package audio

import "fmt"

// Codec decodes encoded clip bytes to PCM and encodes PCM back to bytes.
// The normalization core depends only on this contract; the concrete codecs
// live in this package.
type Codec interface {
	Decode(data []byte, format Format) (*Buffer, error)
	Encode(buf *Buffer, format Format) ([]byte, error)
	// EncodeFormat reports the format a clip decoded from the given format
	// will be re-encoded to. Formats we cannot write fall back to WAV.
	EncodeFormat(format Format) Format
}

// DefaultCodec dispatches to the built-in WAV, MP3 and Ogg Opus codecs.
type DefaultCodec struct{}

// NewCodec returns the default codec adapter.
func NewCodec() DefaultCodec {
	return DefaultCodec{}
}

func (DefaultCodec) Decode(data []byte, format Format) (*Buffer, error) {
	switch format {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return DecodeMP3(data)
	case FormatOggOpus:
		return DecodeOggOpus(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (c DefaultCodec) Encode(buf *Buffer, format Format) ([]byte, error) {
	switch c.EncodeFormat(format) {
	case FormatWAV:
		return EncodeWAV(buf)
	case FormatOggOpus:
		return EncodeOggOpus(buf)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// EncodeFormat maps MP3 (and anything else without an encoder) to WAV.
// Ogg Opus round-trips so Discord uploads keep their native format.
func (DefaultCodec) EncodeFormat(format Format) Format {
	switch format {
	case FormatOggOpus:
		return FormatOggOpus
	default:
		return FormatWAV
	}
}
