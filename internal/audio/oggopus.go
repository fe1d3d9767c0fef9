package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hraban/opus"
)

// Opus always runs at 48 kHz internally; Discord serves soundboard clips
// as Ogg Opus at this rate.
const (
	opusRate = 48000
	// 20 ms frames for encoding, the Opus default trade-off.
	opusFrameMs = 20
	// Decoder scratch sized for the largest legal frame (120 ms stereo).
	opusMaxFrame = 5760
	// Encoded frames never exceed this at soundboard bitrates.
	opusMaxPacket = 4000

	opusBitrate = 96000
)

// DecodeOggOpus parses an Ogg container and decodes its Opus packets.
func DecodeOggOpus(data []byte) (*Buffer, error) {
	packets, channels, preSkip, err := readOggOpus(data)
	if err != nil {
		return nil, err
	}

	dec, err := opus.NewDecoder(opusRate, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptInput, err)
	}

	var samples []float32
	pcm := make([]float32, opusMaxFrame*channels)
	for _, pkt := range packets {
		n, err := dec.DecodeFloat32(pkt, pcm)
		if err != nil {
			return nil, fmt.Errorf("%w: opus packet: %v", ErrCorruptInput, err)
		}
		samples = append(samples, pcm[:n*channels]...)
	}

	// Drop the encoder priming samples declared in OpusHead.
	if skip := preSkip * channels; skip < len(samples) {
		samples = samples[skip:]
	} else {
		samples = nil
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples decoded", ErrCorruptInput)
	}

	return &Buffer{Samples: samples, SampleRate: opusRate, Channels: channels}, nil
}

// EncodeOggOpus encodes the buffer as Ogg Opus. The buffer must already be
// at 48 kHz (Opus clips round-trip at their native rate).
func EncodeOggOpus(buf *Buffer) ([]byte, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrEncode)
	}
	if buf.SampleRate != opusRate {
		return nil, fmt.Errorf("%w: opus requires 48 kHz input, got %d Hz", ErrEncode, buf.SampleRate)
	}
	if buf.Channels < 1 || buf.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrEncode, buf.Channels)
	}

	enc, err := opus.NewEncoder(opusRate, buf.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	frameSamples := opusRate / 1000 * opusFrameMs // per channel
	frameLen := frameSamples * buf.Channels
	scratch := make([]byte, opusMaxPacket)

	var frames [][]byte
	for off := 0; off < len(buf.Samples); off += frameLen {
		end := off + frameLen
		frame := buf.Samples[off:min(end, len(buf.Samples))]
		if len(frame) < frameLen {
			// Zero-pad the final partial frame.
			padded := make([]float32, frameLen)
			copy(padded, frame)
			frame = padded
		}
		n, err := enc.EncodeFloat32(frame, scratch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		frames = append(frames, append([]byte(nil), scratch[:n]...))
	}

	return writeOggOpus(frames, buf.Channels, frameSamples), nil
}

// readOggOpus extracts Opus packets from an Ogg container, returning the
// audio packets (OpusHead and OpusTags removed), the channel count and the
// pre-skip sample count.
func readOggOpus(data []byte) (packets [][]byte, channels, preSkip int, err error) {
	offset := 0
	var partial []byte
	headerPackets := 0
	channels = 0

	for offset+27 <= len(data) {
		if string(data[offset:offset+4]) != "OggS" {
			return nil, 0, 0, fmt.Errorf("%w: bad Ogg page capture", ErrCorruptInput)
		}
		segCount := int(data[offset+26])
		tableEnd := offset + 27 + segCount
		if tableEnd > len(data) {
			return nil, 0, 0, fmt.Errorf("%w: truncated Ogg page header", ErrCorruptInput)
		}
		segTable := data[offset+27 : tableEnd]

		body := tableEnd
		for _, lace := range segTable {
			segEnd := body + int(lace)
			if segEnd > len(data) {
				return nil, 0, 0, fmt.Errorf("%w: truncated Ogg page body", ErrCorruptInput)
			}
			partial = append(partial, data[body:segEnd]...)
			body = segEnd
			if lace < 255 {
				// Packet complete.
				pkt := partial
				partial = nil
				if headerPackets < 2 {
					if headerPackets == 0 {
						channels, preSkip, err = parseOpusHead(pkt)
						if err != nil {
							return nil, 0, 0, err
						}
					}
					// OpusTags is skipped unparsed.
					headerPackets++
					continue
				}
				packets = append(packets, pkt)
			}
		}
		offset = body
	}

	if headerPackets < 2 || len(packets) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: not an Ogg Opus stream", ErrCorruptInput)
	}
	return packets, channels, preSkip, nil
}

func parseOpusHead(pkt []byte) (channels, preSkip int, err error) {
	if len(pkt) < 19 || string(pkt[:8]) != "OpusHead" {
		return 0, 0, fmt.Errorf("%w: missing OpusHead", ErrCorruptInput)
	}
	channels = int(pkt[9])
	if channels < 1 || channels > 2 {
		return 0, 0, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	preSkip = int(binary.LittleEndian.Uint16(pkt[10:12]))
	return channels, preSkip, nil
}

// writeOggOpus wraps encoded Opus frames in a minimal Ogg container:
// OpusHead page, OpusTags page, then audio pages of up to ten frames.
func writeOggOpus(frames [][]byte, channels, samplesPerFrame int) []byte {
	var buf bytes.Buffer
	serial := uint32(0x45505045) // "EPPE"

	writeOggPage(&buf, serial, 0, 0, 2, [][]byte{makeOpusHead(channels)})
	writeOggPage(&buf, serial, 0, 1, 0, [][]byte{makeOpusTags()})

	var pageFrames [][]byte
	var granule uint64
	seq := uint32(2)
	for i, frame := range frames {
		pageFrames = append(pageFrames, frame)
		granule += uint64(samplesPerFrame)
		if len(pageFrames) >= 10 || i == len(frames)-1 {
			flags := byte(0)
			if i == len(frames)-1 {
				flags = 4 // EOS
			}
			writeOggPage(&buf, serial, granule, seq, flags, pageFrames)
			seq++
			pageFrames = nil
		}
	}
	return buf.Bytes()
}

func makeOpusHead(channels int) []byte {
	var buf bytes.Buffer
	buf.WriteString("OpusHead")
	buf.WriteByte(1) // version
	buf.WriteByte(byte(channels))
	binary.Write(&buf, binary.LittleEndian, uint16(0))        // pre-skip
	binary.Write(&buf, binary.LittleEndian, uint32(opusRate)) // input sample rate
	binary.Write(&buf, binary.LittleEndian, int16(0))         // output gain
	buf.WriteByte(0)                                          // channel mapping family
	return buf.Bytes()
}

func makeOpusTags() []byte {
	var buf bytes.Buffer
	buf.WriteString("OpusTags")
	vendor := "earpeace"
	binary.Write(&buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // no user comments
	return buf.Bytes()
}

// writeOggPage writes a single Ogg page.
// flags: 0=none, 2=BOS (beginning of stream), 4=EOS (end of stream)
func writeOggPage(buf *bytes.Buffer, serial uint32, granule uint64, seqNo uint32, flags byte, segments [][]byte) {
	var segTable []byte
	for _, seg := range segments {
		n := len(seg)
		for n >= 255 {
			segTable = append(segTable, 255)
			n -= 255
		}
		segTable = append(segTable, byte(n))
	}

	var hdr bytes.Buffer
	hdr.WriteString("OggS")
	hdr.WriteByte(0)     // version
	hdr.WriteByte(flags) // header type
	binary.Write(&hdr, binary.LittleEndian, granule)
	binary.Write(&hdr, binary.LittleEndian, serial)
	binary.Write(&hdr, binary.LittleEndian, seqNo)
	binary.Write(&hdr, binary.LittleEndian, uint32(0)) // CRC placeholder
	hdr.WriteByte(byte(len(segTable)))
	hdr.Write(segTable)

	page := hdr.Bytes()
	for _, seg := range segments {
		page = append(page, seg...)
	}

	// Patch the page CRC (offset 22).
	crc := crc32Ogg(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	buf.Write(page)
}

// Ogg uses CRC-32 with polynomial 0x04C11DB7, no bit reversal, zero initial
// value and no final XOR.
var oggCRCTable [256]uint32

func init() {
	for i := range oggCRCTable {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		oggCRCTable[i] = r
	}
}

func crc32Ogg(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}
