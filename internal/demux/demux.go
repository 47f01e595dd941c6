// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package demux extracts animation frames from WebP extended-format
// containers.
//
// The demuxer walks the RIFF chunk structure, collecting canvas
// features, the animation background color and the per-frame ANMF
// metadata and bitstreams. Frame pixel decoding reassembles each
// frame's bitstream into a standalone WebP file and hands it to
// golang.org/x/image/webp, so no VP8 or VP8L knowledge lives here.
//
// ANMF frame offsets are stored by the container at half resolution.
// The demuxer exposes the stored values unscaled; doubling to true
// pixel coordinates is owned by the compositing canvas.
package demux

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"golang.org/x/image/webp"

	"github.com/zoetrope-dev/zoetrope/internal/animation"
)

const (
	fccVP8X = "VP8X"
	fccANIM = "ANIM"
	fccANMF = "ANMF"
	fccVP8  = "VP8 "
	fccVP8L = "VP8L"
	fccALPH = "ALPH"
)

// VP8X feature flags.
const (
	flagAnimation = 0x02
	flagAlpha     = 0x10
)

// ANMF frame flags.
const (
	flagDispose = 0x01 // dispose to background after display
	flagNoBlend = 0x02 // overwrite instead of alpha blending
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	vp8xPayloadSize = 10
	animPayloadSize = 6
	anmfHeaderSize  = 16
)

// File is the demuxed structure of a WebP container.
type File struct {
	// Width and Height are the canvas dimensions. They are only
	// populated for extended-format files.
	Width  int
	Height int

	// Animated indicates the container carries an animation.
	Animated bool

	// Background is the canvas background color. It defaults to
	// opaque white when the container does not declare one.
	Background color.NRGBA

	// LoopCount is the declared animation loop count, zero for
	// infinite looping.
	LoopCount int

	frames []frameData
}

// frameData is one undecoded ANMF frame.
type frameData struct {
	offsetX, offsetY int // stored half-resolution coordinates
	width, height    int
	duration         time.Duration
	blend, dispose   bool
	alpha            []byte // raw ALPH payload, nil if absent
	fourCC           string // bitstream chunk type, VP8 or VP8L
	bitstream        []byte
}

type chunk struct {
	fourCC string
	data   []byte
}

// Is returns whether data starts with a RIFF/WEBP container signature.
func Is(data []byte) bool {
	return hasMagic("RIFF????WEBP", data)
}

// hasMagic returns whether b starts with the provided magic bytes.
func hasMagic(magic string, b []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != b[i] && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Demux parses the chunk structure of the WebP container held in
// data. No bitstream decoding is performed. A structurally malformed
// container is a terminal error; an animated container with no frames
// is malformed.
func Demux(data []byte) (*File, error) {
	if !Is(data) {
		return nil, fmt.Errorf("not a webp container")
	}
	size := int64(le32(data[4:8]))
	if size < 4 || int64(len(data)) < size+chunkHeaderSize {
		return nil, fmt.Errorf("truncated container: declared %d bytes, have %d", size+chunkHeaderSize, len(data))
	}
	chunks, err := readChunks(data[riffHeaderSize : size+chunkHeaderSize])
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty container")
	}

	f := &File{Background: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}
	if chunks[0].fourCC != fccVP8X {
		// Simple format file, a bare still image.
		return f, nil
	}
	p := chunks[0].data
	if len(p) != vp8xPayloadSize {
		return nil, fmt.Errorf("invalid VP8X payload size: %d", len(p))
	}
	f.Width = le24(p[4:7]) + 1
	f.Height = le24(p[7:10]) + 1
	f.Animated = p[0]&flagAnimation != 0
	if !f.Animated {
		return f, nil
	}

	for _, c := range chunks[1:] {
		switch c.fourCC {
		case fccANIM:
			if len(c.data) != animPayloadSize {
				return nil, fmt.Errorf("invalid ANIM payload size: %d", len(c.data))
			}
			// Background color is stored in BGRA byte order.
			f.Background = color.NRGBA{R: c.data[2], G: c.data[1], B: c.data[0], A: c.data[3]}
			f.LoopCount = int(c.data[4]) | int(c.data[5])<<8
		case fccANMF:
			fd, err := readFrame(c.data)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(f.frames), err)
			}
			f.frames = append(f.frames, fd)
		}
	}
	if len(f.frames) == 0 {
		return nil, fmt.Errorf("animated container with no frames")
	}
	return f, nil
}

// readFrame parses a single ANMF chunk payload.
func readFrame(p []byte) (frameData, error) {
	if len(p) < anmfHeaderSize {
		return frameData{}, fmt.Errorf("invalid ANMF payload size: %d", len(p))
	}
	fd := frameData{
		offsetX:  le24(p[0:3]),
		offsetY:  le24(p[3:6]),
		width:    le24(p[6:9]) + 1,
		height:   le24(p[9:12]) + 1,
		duration: time.Duration(le24(p[12:15])) * time.Millisecond,
		blend:    p[15]&flagNoBlend == 0,
		dispose:  p[15]&flagDispose != 0,
	}
	sub, err := readChunks(p[anmfHeaderSize:])
	if err != nil {
		return frameData{}, err
	}
	for _, c := range sub {
		switch c.fourCC {
		case fccALPH:
			fd.alpha = c.data
		case fccVP8, fccVP8L:
			fd.fourCC = c.fourCC
			fd.bitstream = c.data
		}
	}
	if fd.bitstream == nil {
		return frameData{}, fmt.Errorf("no image bitstream")
	}
	return fd, nil
}

// readChunks walks a sequence of RIFF chunks. Chunks with odd payload
// sizes are padded to even length in the container.
func readChunks(data []byte) ([]chunk, error) {
	var chunks []chunk
	for len(data) != 0 {
		if len(data) < chunkHeaderSize {
			return nil, fmt.Errorf("truncated chunk header: %d bytes", len(data))
		}
		size := le32(data[4:8])
		pad := size & 1
		if int64(len(data)) < chunkHeaderSize+int64(size)+int64(pad) {
			return nil, fmt.Errorf("truncated %q chunk: declared %d bytes, have %d", data[:4], size, len(data)-chunkHeaderSize)
		}
		chunks = append(chunks, chunk{
			fourCC: string(data[:4]),
			data:   data[chunkHeaderSize : chunkHeaderSize+size],
		})
		data = data[chunkHeaderSize+size+pad:]
	}
	return chunks, nil
}

// NumFrames returns the number of animation frames in the file.
func (f *File) NumFrames() int { return len(f.frames) }

// Frames decodes all frame bitstreams and returns the ordered frame
// sequence for compositing.
func (f *File) Frames() ([]animation.Frame, error) {
	frames := make([]animation.Frame, len(f.frames))
	for i, fd := range f.frames {
		img, err := webp.Decode(bytes.NewReader(standalone(fd)))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		b := img.Bounds()
		if b.Dx() != fd.width || b.Dy() != fd.height {
			return nil, fmt.Errorf("frame %d: bitstream dimensions %dx%d do not match declared %dx%d",
				i, b.Dx(), b.Dy(), fd.width, fd.height)
		}
		frames[i] = animation.Frame{
			Image:   animation.ToNRGBA(img),
			OffsetX: fd.offsetX,
			OffsetY: fd.offsetY,
			Blend:   fd.blend,
			Dispose: fd.dispose,
			Delay:   fd.duration,
		}
	}
	return frames, nil
}

// standalone reassembles a frame's bitstream into a complete simple or
// extended WebP file that a whole-image decoder will accept.
func standalone(fd frameData) []byte {
	if fd.fourCC == fccVP8L || fd.alpha == nil {
		return riffFile(chunk{fourCC: fd.fourCC, data: fd.bitstream})
	}
	vp8x := make([]byte, vp8xPayloadSize)
	vp8x[0] = flagAlpha
	putLE24(vp8x[4:7], fd.width-1)
	putLE24(vp8x[7:10], fd.height-1)
	return riffFile(
		chunk{fourCC: fccVP8X, data: vp8x},
		chunk{fourCC: fccALPH, data: fd.alpha},
		chunk{fourCC: fd.fourCC, data: fd.bitstream},
	)
}

// riffFile serializes chunks into a RIFF/WEBP file.
func riffFile(chunks ...chunk) []byte {
	size := 4
	for _, c := range chunks {
		size += chunkHeaderSize + len(c.data) + len(c.data)&1
	}
	buf := make([]byte, 0, chunkHeaderSize+size)
	buf = append(buf, "RIFF"...)
	buf = appendLE32(buf, uint32(size))
	buf = append(buf, "WEBP"...)
	for _, c := range chunks {
		buf = append(buf, c.fourCC...)
		buf = appendLE32(buf, uint32(len(c.data)))
		buf = append(buf, c.data...)
		if len(c.data)&1 != 0 {
			buf = append(buf, 0)
		}
	}
	return buf
}

func le24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func appendLE32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
