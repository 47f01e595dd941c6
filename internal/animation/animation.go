// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation reconstructs the full-canvas frame sequence of an
// animated raster image from its stored frames.
//
// Animated containers store each frame as a sparse positioned patch
// that is composited onto a persistent canvas. The package owns the
// canvas and the per-frame blend and dispose semantics; it has no
// knowledge of any container's chunk layout. Frame offsets are held in
// stored container coordinates, which are half of true canvas pixel
// coordinates; the canvas applies the doubling.
package animation

import (
	"image"
	"math"
	"time"
)

// DefaultDelay is the display duration assumed for frames that do not
// declare one.
const DefaultDelay = 100 * time.Millisecond

// Frame is one decoded animation frame and its compositing metadata.
type Frame struct {
	// Image is the frame's pixel data. It is read-only to the
	// canvas and may be released after the frame is applied.
	Image *image.NRGBA

	// OffsetX and OffsetY are the frame's canvas position in
	// stored container coordinates. The true pixel position is
	// twice the stored value.
	OffsetX int
	OffsetY int

	// Blend indicates the frame is alpha-composited over the
	// canvas. If false the frame overwrites its region outright,
	// including alpha.
	Blend bool

	// Dispose indicates the frame's region is reset to the
	// background color after its snapshot is taken. Disposal is
	// only visible to subsequent frames.
	Dispose bool

	// Delay is the frame's nominal display duration.
	Delay time.Duration
}

// Bounds returns the frame's true pixel rectangle on the canvas.
func (f *Frame) Bounds() image.Rectangle {
	x := f.OffsetX * 2
	y := f.OffsetY * 2
	var w, h int
	if f.Image != nil {
		b := f.Image.Bounds()
		w = b.Dx()
		h = b.Dy()
	}
	return image.Rect(x, y, x+w, y+h)
}

// Rate returns the output frame rate for the sequence, derived from
// the first frame's delay as round(1000/delay_ms). A delay of zero or
// less is treated as absent and replaced with DefaultDelay. Variable
// per-frame delay is not honored; the first frame's delay governs the
// whole sequence. Honoring per-frame delay would need per-frame
// timestamps at the encoder interface.
func Rate(frames []Frame) int {
	delay := DefaultDelay
	if len(frames) != 0 && frames[0].Delay > 0 {
		delay = frames[0].Delay
	}
	return int(math.Round(1000 / float64(delay.Milliseconds())))
}
