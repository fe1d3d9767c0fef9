package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// wavFormatPCM and wavFormatFloat are the fmt-chunk audio format tags we
// accept. Everything else (ADPCM, a-law, ...) is rejected.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// DecodeWAV parses a RIFF/WAVE file into a Buffer. PCM 16/24/32-bit integer
// and 32-bit float payloads are supported, mono or stereo.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("%w: file too small for WAV header", ErrCorruptInput)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a WAV file", ErrCorruptInput)
	}

	offset := 12
	var audioFormat, numChannels, bitsPerSample uint16
	var sampleRate uint32
	foundFmt := false

	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		switch {
		case chunkID == "fmt ":
			if chunkSize < 16 || offset+8+16 > len(data) {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrCorruptInput)
			}
			audioFormat = binary.LittleEndian.Uint16(data[offset+8:])
			numChannels = binary.LittleEndian.Uint16(data[offset+10:])
			sampleRate = binary.LittleEndian.Uint32(data[offset+12:])
			bitsPerSample = binary.LittleEndian.Uint16(data[offset+22:])
			foundFmt = true
		case chunkID == "data" && foundFmt:
			if audioFormat != wavFormatPCM && audioFormat != wavFormatFloat {
				return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedFormat, audioFormat)
			}
			if numChannels == 0 || numChannels > 2 {
				return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, numChannels)
			}
			end := offset + 8 + int(chunkSize)
			if end > len(data) {
				end = len(data)
			}
			samples, err := pcmToFloat32(data[offset+8:end], audioFormat, bitsPerSample)
			if err != nil {
				return nil, err
			}
			return &Buffer{
				Samples:    samples,
				SampleRate: int(sampleRate),
				Channels:   int(numChannels),
			}, nil
		}
		offset += 8 + int(chunkSize)
		// Chunks are word-aligned; odd sizes carry a pad byte.
		if chunkSize%2 == 1 {
			offset++
		}
	}
	return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrCorruptInput)
}

// EncodeWAV writes the buffer as 16-bit PCM WAV, preserving channel count
// and sample rate.
func EncodeWAV(buf *Buffer) ([]byte, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrEncode)
	}
	if buf.Channels < 1 || buf.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrEncode, buf.Channels)
	}

	dataSize := len(buf.Samples) * 2
	fileSize := 36 + dataSize
	out := make([]byte, 0, fileSize+8)
	byteRate := buf.SampleRate * buf.Channels * 2
	blockAlign := buf.Channels * 2

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(fileSize))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, wavFormatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(buf.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(buf.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, 16)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	for _, s := range buf.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s*32767)))
	}
	return out, nil
}

func pcmToFloat32(data []byte, audioFormat, bitsPerSample uint16) ([]float32, error) {
	bytesPerSample := int(bitsPerSample / 8)
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("%w: zero bits per sample", ErrCorruptInput)
	}
	n := len(data) / bytesPerSample
	samples := make([]float32, n)

	switch {
	case audioFormat == wavFormatPCM && bitsPerSample == 16:
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples[i] = float32(s) / 32768.0
		}
	case audioFormat == wavFormatPCM && bitsPerSample == 24:
		for i := 0; i < n; i++ {
			off := i * 3
			s := int32(data[off]) | int32(data[off+1])<<8 | int32(data[off+2])<<16
			// Sign-extend from 24 bits.
			s = s << 8 >> 8
			samples[i] = float32(s) / 8388608.0
		}
	case audioFormat == wavFormatPCM && bitsPerSample == 32:
		for i := 0; i < n; i++ {
			s := int32(binary.LittleEndian.Uint32(data[i*4:]))
			samples[i] = float32(s) / 2147483648.0
		}
	case audioFormat == wavFormatFloat && bitsPerSample == 32:
		for i := 0; i < n; i++ {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit format %d WAV", ErrUnsupportedFormat, bitsPerSample, audioFormat)
	}
	return samples, nil
}
