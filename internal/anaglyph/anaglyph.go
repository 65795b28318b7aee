// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Red/cyan anaglyph combination of stereo image pairs.
//
// Output red channel is taken from the left eye image, green and blue
// channels from the right eye image, alpha is always opaque. Decoded video
// frames are opaque, so premultiplied and straight alpha representations of
// input pixels coincide.
package anaglyph

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

var ErrSizeMismatch = errors.New("image sizes differ")

// Combine writes anaglyph of left and right images into dst.
//
// All three images must be of equal size; each is addressed relative to its
// own Rect.Min so sub-images are sampled over the identical region.
func Combine(dst, left, right *image.RGBA) error {
	if err := checkSizes(dst, left, right); err != nil {
		return err
	}
	combineRows(dst, left, right, 0, left.Rect.Dy())
	return nil
}

// Combiner splits combination of a single image pair across row workers.
type Combiner struct {
	// Number of goroutines to use, values below 2 run inline.
	Workers int
}

// Combine is a parallel version of package level Combine, with identical
// output.
func (c Combiner) Combine(dst, left, right *image.RGBA) error {
	if err := checkSizes(dst, left, right); err != nil {
		return err
	}
	rows := left.Rect.Dy()
	workers := c.Workers
	if workers > rows {
		workers = rows
	}
	if workers < 2 {
		combineRows(dst, left, right, 0, rows)
		return nil
	}

	var wg sync.WaitGroup
	band := (rows + workers - 1) / workers
	for y0 := 0; y0 < rows; y0 += band {
		y1 := y0 + band
		if y1 > rows {
			y1 = rows
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			combineRows(dst, left, right, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
	return nil
}

func checkSizes(dst, left, right *image.RGBA) error {
	if dst == nil || left == nil || right == nil {
		return fmt.Errorf("%w: nil image", ErrSizeMismatch)
	}
	size := left.Rect.Size()
	if right.Rect.Size() != size || dst.Rect.Size() != size {
		return fmt.Errorf("%w: left %v, right %v, output %v",
			ErrSizeMismatch, size, right.Rect.Size(), dst.Rect.Size())
	}
	return nil
}

// combineRows processes rows [y0, y1) relative to image origins.
func combineRows(dst, left, right *image.RGBA, y0, y1 int) {
	n := 4 * left.Rect.Dx()
	for y := y0; y < y1; y++ {
		lo := left.PixOffset(left.Rect.Min.X, left.Rect.Min.Y+y)
		ro := right.PixOffset(right.Rect.Min.X, right.Rect.Min.Y+y)
		do := dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y)
		l := left.Pix[lo : lo+n : lo+n]
		r := right.Pix[ro : ro+n : ro+n]
		d := dst.Pix[do : do+n : do+n]
		for i := 0; i < n; i += 4 {
			d[i+0] = l[i+0]
			d[i+1] = r[i+1]
			d[i+2] = r[i+2]
			d[i+3] = 0xff
		}
	}
}
