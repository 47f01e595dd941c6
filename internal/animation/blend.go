// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

// sourceOver composites the non-premultiplied RGBA source pixel src
// over dst in place, following the Porter-Duff source-over rule with
// truncating 8-bit integer arithmetic.
//
//	outA = sa + da*(255-sa)/255
//	outC = (sc*sa + dc*da*(255-sa)/255) / outA
//
// A fully opaque source overwrites the destination and a fully
// transparent source leaves it unchanged; both agree exactly with the
// general formula. When outA is zero the color channels are left
// unchanged since the pixel is visually inert.
func sourceOver(dst, src []uint8) {
	sa := int(src[3])
	switch sa {
	case 0xff:
		copy(dst[:4], src[:4])
		return
	case 0:
		return
	}
	da := int(dst[3])
	outA := sa + da*(255-sa)/255
	if outA == 0 {
		return
	}
	for i := 0; i < 3; i++ {
		c := (int(src[i])*sa + int(dst[i])*da*(255-sa)/255) / outA
		// Truncation in outA can push the quotient past the
		// 8-bit range for nearly transparent pixels.
		if c > 0xff {
			c = 0xff
		}
		dst[i] = uint8(c)
	}
	dst[3] = uint8(outA)
}
