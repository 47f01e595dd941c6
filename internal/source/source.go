// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source normalizes raster image inputs into an ordered frame
// sequence for compositing.
//
// Animated WebP containers are demuxed into their frame sequences.
// Any other decodable still image, including the first frame of an
// animated GIF, is treated as a single synthetic whole-canvas frame
// that overwrites the canvas, so every input yields at least one
// frame.
package source

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/zoetrope-dev/zoetrope/internal/animation"
	"github.com/zoetrope-dev/zoetrope/internal/demux"
)

// Input is a decoded conversion input.
type Input struct {
	// Width and Height are the canvas dimensions.
	Width  int
	Height int

	// Background is the canvas background color, opaque white
	// unless the container declares otherwise.
	Background color.NRGBA

	// Animated indicates the input carried more than container
	// metadata for a single still image.
	Animated bool

	// Frames is the ordered frame sequence. It is never empty.
	Frames []animation.Frame
}

// Read decodes the image data held by r. A structurally malformed
// animated container is a terminal error; it is not demoted to the
// still-image path.
func Read(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if demux.Is(data) {
		f, err := demux.Demux(data)
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		if f.Animated {
			frames, err := f.Frames()
			if err != nil {
				return nil, fmt.Errorf("decode webp: %w", err)
			}
			return &Input{
				Width:      f.Width,
				Height:     f.Height,
				Background: f.Background,
				Animated:   true,
				Frames:     frames,
			}, nil
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return &Input{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Background: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Frames:     []animation.Frame{{Image: animation.ToNRGBA(img)}},
	}, nil
}
