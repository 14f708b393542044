// Package audio measures MPEG audio files by reading frame headers directly.
package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	id3HeaderSize = 10
	headerSize    = 4
	// syncSearchWindow bounds how far past the tag the first frame is looked for.
	syncSearchWindow = 8 * 1024
)

type mpegVersion int

const (
	mpeg25 mpegVersion = iota
	mpegReserved
	mpeg2
	mpeg1
)

type layer int

const (
	layerReserved layer = iota
	layer3
	layer2
	layer1
)

// Bitrates in kbps, indexed by bitrate index. Index 0 (free) and 15 are invalid.
var (
	bitratesV1L1 = [16]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}
	bitratesV1L2 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0}
	bitratesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitratesV2L1 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}
	bitratesV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

var sampleRates = map[mpegVersion][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

// frameHeader holds the fields decoded from a 4-byte frame header.
type frameHeader struct {
	version    mpegVersion
	layer      layer
	bitrate    int // kbps
	sampleRate int
	padding    int
	mono       bool
}

func parseHeader(b []byte) (frameHeader, bool) {
	if len(b) < headerSize || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return frameHeader{}, false
	}
	h := frameHeader{
		version: mpegVersion((b[1] >> 3) & 0x03),
		layer:   layer((b[1] >> 1) & 0x03),
		padding: int((b[2] >> 1) & 0x01),
		mono:    (b[3]>>6)&0x03 == 3,
	}
	if h.version == mpegReserved || h.layer == layerReserved {
		return frameHeader{}, false
	}

	bitrateIndex := (b[2] >> 4) & 0x0F
	sampleRateIndex := (b[2] >> 2) & 0x03
	if sampleRateIndex == 3 {
		return frameHeader{}, false
	}
	h.bitrate = bitrateTable(h.version, h.layer)[bitrateIndex]
	if h.bitrate == 0 {
		return frameHeader{}, false
	}
	h.sampleRate = sampleRates[h.version][sampleRateIndex]
	return h, true
}

func bitrateTable(v mpegVersion, l layer) [16]int {
	if v == mpeg1 {
		switch l {
		case layer1:
			return bitratesV1L1
		case layer2:
			return bitratesV1L2
		default:
			return bitratesV1L3
		}
	}
	if l == layer1 {
		return bitratesV2L1
	}
	return bitratesV2L3
}

func (h frameHeader) samplesPerFrame() int {
	switch {
	case h.layer == layer1:
		return 384
	case h.layer == layer3 && h.version != mpeg1:
		return 576
	default:
		return 1152
	}
}

func (h frameHeader) frameSize() int {
	if h.layer == layer1 {
		return (12000*h.bitrate/h.sampleRate + h.padding) * 4
	}
	return h.samplesPerFrame()*125*h.bitrate/h.sampleRate + h.padding
}

// sideInfoSize is the length of the Layer III side information that
// precedes a Xing/Info header inside the first frame.
func (h frameHeader) sideInfoSize() int {
	switch {
	case h.version == mpeg1 && h.mono:
		return 17
	case h.version == mpeg1:
		return 32
	case h.mono:
		return 9
	default:
		return 17
	}
}

func (h frameHeader) sameStream(o frameHeader) bool {
	return h.version == o.version && h.layer == o.layer && h.sampleRate == o.sampleRate
}

// Duration returns the length of the MPEG audio in buf in whole seconds,
// floored. It returns 0 when no confirmed frame can be found.
func Duration(buf []byte) int {
	start := skipID3(buf)
	if start >= len(buf) {
		return 0
	}

	offset, h, ok := findFirstFrame(buf, start)
	if !ok {
		return 0
	}

	if frames, ok := vbrFrameCount(buf[offset:], h); ok {
		return int(int64(frames) * int64(h.samplesPerFrame()) / int64(h.sampleRate))
	}

	audioBytes := int64(len(buf) - offset)
	return int(audioBytes * 8 / int64(h.bitrate*1000))
}

func skipID3(buf []byte) int {
	if len(buf) < id3HeaderSize || !bytes.HasPrefix(buf, []byte("ID3")) {
		return 0
	}
	size := int(buf[6]&0x7F)<<21 | int(buf[7]&0x7F)<<14 | int(buf[8]&0x7F)<<7 | int(buf[9]&0x7F)
	skip := id3HeaderSize + size
	if buf[5]&0x10 != 0 {
		// footer present
		skip += id3HeaderSize
	}
	return skip
}

// findFirstFrame scans for a frame header whose successor begins exactly
// one frame later with the same version, layer and sample rate.
func findFirstFrame(buf []byte, start int) (int, frameHeader, bool) {
	end := min(start+syncSearchWindow, len(buf)-headerSize+1)
	for i := start; i < end; i++ {
		if buf[i] != 0xFF {
			continue
		}
		h, ok := parseHeader(buf[i:])
		if !ok {
			continue
		}
		size := h.frameSize()
		if size <= headerSize {
			continue
		}
		next := i + size
		if next+headerSize > len(buf) {
			continue
		}
		h2, ok := parseHeader(buf[next:])
		if ok && h.sameStream(h2) {
			return i, h, true
		}
	}
	return 0, frameHeader{}, false
}

const (
	xingFlagFrames = 0x1
	vbriOffset     = headerSize + 32
)

// vbrFrameCount reads the total frame count from a Xing/Info or VBRI
// header in the first frame, if one is present.
func vbrFrameCount(frame []byte, h frameHeader) (uint32, bool) {
	xingAt := headerSize + h.sideInfoSize()
	if len(frame) >= xingAt+12 {
		magic := frame[xingAt : xingAt+4]
		if bytes.Equal(magic, []byte("Xing")) || bytes.Equal(magic, []byte("Info")) {
			flags := binary.BigEndian.Uint32(frame[xingAt+4:])
			if flags&xingFlagFrames == 0 {
				return 0, false
			}
			frames := binary.BigEndian.Uint32(frame[xingAt+8:])
			return frames, frames > 0
		}
	}

	if len(frame) >= vbriOffset+18 && bytes.Equal(frame[vbriOffset:vbriOffset+4], []byte("VBRI")) {
		frames := binary.BigEndian.Uint32(frame[vbriOffset+14:])
		return frames, frames > 0
	}
	return 0, false
}
