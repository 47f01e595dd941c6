// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
)

// maxDim is the maximum acceptable canvas dimension. It matches the
// canvas size limit of the WebP extended file format.
const maxDim = 1 << 14

// progressEvery is the frame interval between progress notifications.
const progressEvery = 50

// Canvas is the persistent pixel accumulator for one conversion job.
// It is initialized from the background color, mutated in place once
// per frame and must not be shared between jobs or goroutines.
type Canvas struct {
	img        *image.NRGBA
	background color.NRGBA
}

// NewCanvas returns a canvas of the given dimensions filled with the
// background color. Dimensions outside (0, maxDim] are rejected before
// any allocation is made.
func NewCanvas(width, height int, background color.NRGBA) (*Canvas, error) {
	if width <= 0 || height <= 0 || width > maxDim || height > maxDim {
		return nil, fmt.Errorf("invalid canvas dimensions: %dx%d", width, height)
	}
	c := &Canvas{
		img:        image.NewNRGBA(image.Rect(0, 0, width, height)),
		background: background,
	}
	c.fill(c.img.Rect)
	return c, nil
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Rect }

// fill sets every pixel of r, which must be within the canvas bounds,
// to the background color.
func (c *Canvas) fill(r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := c.img.PixOffset(r.Min.X, y)
		for x := 0; x < r.Dx(); x++ {
			c.img.Pix[i] = c.background.R
			c.img.Pix[i+1] = c.background.G
			c.img.Pix[i+2] = c.background.B
			c.img.Pix[i+3] = c.background.A
			i += 4
		}
	}
}

// Snapshot returns an independent copy of the current canvas state.
// The returned image does not alias the canvas buffer.
func (c *Canvas) Snapshot() *image.NRGBA {
	return &image.NRGBA{
		Pix:    slices.Clone(c.img.Pix),
		Stride: c.img.Stride,
		Rect:   c.img.Rect,
	}
}

// Apply composites f onto the canvas and returns the frame's snapshot.
// The frame's stored offsets are doubled to true pixel coordinates and
// the frame region is clipped to the canvas bounds; out-of-range
// containers render partially rather than writing out of bounds. If
// the frame disposes, its region is reset to the background color
// after the snapshot is taken, so disposal is seen only by subsequent
// frames.
func (c *Canvas) Apply(f Frame) *image.NRGBA {
	b := f.Bounds()
	r := b.Intersect(c.img.Rect)
	if f.Image != nil && !r.Empty() {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			si := f.Image.PixOffset(f.Image.Rect.Min.X+r.Min.X-b.Min.X, f.Image.Rect.Min.Y+y-b.Min.Y)
			di := c.img.PixOffset(r.Min.X, y)
			if !f.Blend {
				copy(c.img.Pix[di:di+r.Dx()*4], f.Image.Pix[si:si+r.Dx()*4])
				continue
			}
			for x := 0; x < r.Dx(); x++ {
				sourceOver(c.img.Pix[di:di+4], f.Image.Pix[si:si+4])
				si += 4
				di += 4
			}
		}
	}
	snap := c.Snapshot()
	if f.Dispose && !r.Empty() {
		c.fill(r)
	}
	return snap
}

// Render folds the ordered frames over the canvas, calling fn with
// each frame's index and snapshot in frame order. The first error
// aborts the sequence; a partially rendered sequence is not a valid
// result and the canvas must be discarded. If progress is non-nil it
// is called every progressEvery frames and on the last frame.
func (c *Canvas) Render(ctx context.Context, frames []Frame, progress func(frame, total int), fn func(i int, snap *image.NRGBA) error) error {
	if len(frames) == 0 {
		return errors.New("no frames")
	}
	for i, f := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		err := fn(i, c.Apply(f))
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if progress != nil && (i%progressEvery == 0 || i == len(frames)-1) {
			progress(i, len(frames))
		}
	}
	return nil
}
