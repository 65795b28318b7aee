// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Video track related constructs.

package video

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Track type contains video stream metadata needed to decode and re-encode it.
type Track struct {
	// Index is the absolute stream index within the container.
	Index     int      `json:"index"`
	CodecName string   `json:"codec_name"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	FrameRate Rational `json:"frame_rate"`
	TimeBase  Rational `json:"time_base"`
	// StartTime is the presentation timestamp of the first frame.
	StartTime time.Duration `json:"start_time"`
	// Rotation is the display matrix rotation in degrees, counter-clockwise.
	Rotation float64 `json:"rotation"`
}

// Size returns the natural size of track frames.
func (t Track) Size() image.Point {
	return image.Pt(t.Width, t.Height)
}

// FrameSize returns the number of bytes in a single RGBA frame of the track.
func (t Track) FrameSize() int {
	return t.Width * t.Height * 4
}

// FrameInterval returns nominal duration of a single frame.
func (t Track) FrameInterval() time.Duration {
	if t.FrameRate.IsZero() {
		return 0
	}
	return Rational{Num: t.FrameRate.Den, Den: t.FrameRate.Num}.Duration(1)
}

// Validate checks that track metadata is usable for raw frame transport.
func (t Track) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("invalid track dimensions %dx%d", t.Width, t.Height)
	}
	if t.FrameRate.IsZero() {
		return fmt.Errorf("unknown frame rate for stream #%d", t.Index)
	}
	if t.TimeBase.IsZero() {
		return fmt.Errorf("unknown time base for stream #%d", t.Index)
	}
	return nil
}

func (t Track) String() string {
	return fmt.Sprintf("#%d %s %dx%d @ %s fps", t.Index, t.CodecName, t.Width, t.Height, t.FrameRate)
}

// TrackProber is the interface that wraps ProbeVideoTrack method.
type TrackProber interface {
	ProbeVideoTrack(ctx context.Context, videoFile string) (Track, error)
}
