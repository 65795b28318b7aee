// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stereo

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImage(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestClassify(t *testing.T) {
	left, right := newImage(4, 2), newImage(4, 2)
	other := newImage(4, 2)

	tests := map[string]struct {
		given     []TaggedBuffer
		wantOK    bool
		wantLeft  *image.RGBA
		wantRight *image.RGBA
	}{
		"Both eyes": {
			given: []TaggedBuffer{
				{LayerID: 0, Eye: LeftEye, Image: left},
				{LayerID: 1, Eye: RightEye, Image: right},
			},
			wantOK:    true,
			wantLeft:  left,
			wantRight: right,
		},
		"Reversed order": {
			given: []TaggedBuffer{
				{LayerID: 1, Eye: RightEye, Image: right},
				{LayerID: 0, Eye: LeftEye, Image: left},
			},
			wantOK:    true,
			wantLeft:  left,
			wantRight: right,
		},
		"Duplicate tag, first wins": {
			given: []TaggedBuffer{
				{Eye: LeftEye, Image: left},
				{Eye: LeftEye, Image: other},
				{Eye: RightEye, Image: right},
			},
			wantOK:    true,
			wantLeft:  left,
			wantRight: right,
		},
		"Untagged part is ignored": {
			given: []TaggedBuffer{
				{Eye: UnknownEye, Image: other},
				{Eye: LeftEye, Image: left},
				{Eye: RightEye, Image: right},
			},
			wantOK:    true,
			wantLeft:  left,
			wantRight: right,
		},
		"Right eye missing": {
			given:  []TaggedBuffer{{Eye: LeftEye, Image: left}},
			wantOK: false,
		},
		"Left eye missing": {
			given:  []TaggedBuffer{{Eye: RightEye, Image: right}},
			wantOK: false,
		},
		"Tagged but no image": {
			given: []TaggedBuffer{
				{Eye: LeftEye, Image: left},
				{Eye: RightEye},
			},
			wantOK: false,
		},
		"No parts": {
			wantOK: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			pts := 42 * time.Millisecond
			got, ok, err := Classify(Sample{PTS: pts, Parts: tc.given})
			require.NoError(t, err, "Missing views must not be an error")
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, pts, got.PTS)
			assert.Same(t, tc.wantLeft, got.Left)
			assert.Same(t, tc.wantRight, got.Right)
		})
	}
}

func TestClassify_SizeMismatch(t *testing.T) {
	_, ok, err := Classify(Sample{Parts: []TaggedBuffer{
		{Eye: LeftEye, Image: newImage(4, 2)},
		{Eye: RightEye, Image: newImage(2, 4)},
	}})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrViewMismatch)
}

func TestFrame_Release(t *testing.T) {
	calls := 0
	f := NewFrame(0, newImage(1, 1), newImage(1, 1), func() { calls++ })
	f.Release()
	f.Release()
	assert.Equal(t, 1, calls, "Release hook should run exactly once")
	assert.Nil(t, f.Left)
	assert.Nil(t, f.Right)

	// Zero Frame is safe to release.
	var zero Frame
	zero.Release()
}

func TestEye_String(t *testing.T) {
	assert.Equal(t, "left", LeftEye.String())
	assert.Equal(t, "right", RightEye.String())
	assert.Equal(t, "unknown", Eye(17).String())
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	tests := map[string]error{
		"InputValidationError": &InputValidationError{Path: "in.mov", Err: cause},
		"DecodeError":          &DecodeError{Err: cause},
		"EncodeError":          &EncodeError{Err: cause},
		"ResourceError":        &ResourceError{Err: cause},
	}
	for name, err := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, err, cause)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}
