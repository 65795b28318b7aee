// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Stereo sample and frame abstractions shared by frame source, combiner and
// frame sink.
package stereo

import (
	"fmt"
	"image"
	"time"
)

// Eye identifies the stereo view role of a decoded image.
type Eye int

const (
	UnknownEye Eye = iota
	LeftEye
	RightEye
)

func (e Eye) String() string {
	switch e {
	case LeftEye:
		return "left"
	case RightEye:
		return "right"
	default:
		return "unknown"
	}
}

// View requests a single decoder layer and tags it with a stereo role.
type View struct {
	LayerID int
	Eye     Eye
}

// DefaultViews are the two MV-HEVC layers of a spatial video.
var DefaultViews = []View{
	{LayerID: 0, Eye: LeftEye},
	{LayerID: 1, Eye: RightEye},
}

// TaggedBuffer is a decoded image annotated with the view it belongs to.
type TaggedBuffer struct {
	LayerID int
	Eye     Eye
	Image   *image.RGBA
}

// Sample is a single decoded access unit, it may carry any number of tagged
// buffers.
type Sample struct {
	PTS   time.Duration
	Parts []TaggedBuffer
}

// Frame is a sample reduced to its left and right eye images.
//
// Left and Right have identical bounds when produced by Classify.
type Frame struct {
	PTS   time.Duration
	Left  *image.RGBA
	Right *image.RGBA
	// Hands image buffers back to their owner.
	release func()
}

// NewFrame creates Frame with a release hook.
func NewFrame(pts time.Duration, left, right *image.RGBA, release func()) Frame {
	return Frame{PTS: pts, Left: left, Right: right, release: release}
}

// Release returns frame images to their owner. Images must not be used after
// Release. Calling it more than once is a no-op.
func (f *Frame) Release() {
	if f.release != nil {
		f.release()
		f.release = nil
	}
	f.Left, f.Right = nil, nil
}

// Classify partitions sample parts by eye tag in a single pass.
//
// Reports false if either eye is missing, such sample should be dropped. The
// first buffer of each eye wins. Left and right images of mismatching size
// are reported as error.
func Classify(s Sample) (Frame, bool, error) {
	f := Frame{PTS: s.PTS}
	for i := range s.Parts {
		p := &s.Parts[i]
		if p.Image == nil {
			continue
		}
		switch p.Eye {
		case LeftEye:
			if f.Left == nil {
				f.Left = p.Image
			}
		case RightEye:
			if f.Right == nil {
				f.Right = p.Image
			}
		}
	}

	if f.Left == nil || f.Right == nil {
		return Frame{PTS: s.PTS}, false, nil
	}
	if f.Left.Rect.Size() != f.Right.Rect.Size() {
		return Frame{PTS: s.PTS}, false, fmt.Errorf(
			"%w: left %v right %v", ErrViewMismatch, f.Left.Rect.Size(), f.Right.Rect.Size())
	}
	return f, true, nil
}
