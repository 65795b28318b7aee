// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package video

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRational(t *testing.T) {
	tests := map[string]struct {
		given string
		want  Rational
	}{
		"NTSC frame rate": {given: "30000/1001", want: Rational{30000, 1001}},
		"Integer":         {given: "24", want: Rational{24, 1}},
		"Time base":       {given: "1/600", want: Rational{1, 600}},
		"Unknown":         {given: "0/0", want: Rational{0, 0}},
		"Whitespace":      {given: " 25/1 ", want: Rational{25, 1}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseRational(tc.given)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRational_Negative(t *testing.T) {
	for _, given := range []string{"", "abc", "1/x", "5/0"} {
		t.Run(given, func(t *testing.T) {
			_, err := ParseRational(given)
			assert.ErrorIs(t, err, ErrInvalidRational)
		})
	}
}

func TestRational_Duration(t *testing.T) {
	tb := Rational{1, 600}
	assert.Equal(t, time.Second, tb.Duration(600))
	assert.Equal(t, 50*time.Millisecond, tb.Duration(30))
	assert.Equal(t, time.Duration(0), Rational{}.Duration(30))
	assert.Equal(t, -1500*time.Millisecond, Rational{1, 1000}.Duration(-1500))

	// MPEG-TS timestamps near 2^33 ticks, ticks*1e9 alone exceeds int64.
	assert.Equal(t, time.Duration(95443717688888), Rational{1, 90000}.Duration(1<<33))
	assert.Equal(t, time.Duration(95443717688888), Rational{2, 180000}.Duration(1<<33))
}

func TestTrack_FrameInterval(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, Track{FrameRate: Rational{25, 1}}.FrameInterval())
	assert.Equal(t, time.Duration(33366666), Track{FrameRate: Rational{30000, 1001}}.FrameInterval())
	assert.Zero(t, Track{}.FrameInterval())
}

func TestRational_JSON(t *testing.T) {
	var got struct {
		R Rational `json:"r"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"r": "30/1"}`), &got))
	assert.Equal(t, Rational{30, 1}, got.R)
	assert.InDelta(t, 30.0, got.R.Float64(), 1e-9)

	b, err := json.Marshal(got.R)
	require.NoError(t, err)
	assert.Equal(t, `"30/1"`, string(b))
}

func TestTrack_Validate(t *testing.T) {
	valid := Track{Width: 1920, Height: 1080, FrameRate: Rational{30, 1}, TimeBase: Rational{1, 600}}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, 1920*1080*4, valid.FrameSize())

	noSize := valid
	noSize.Width = 0
	assert.Error(t, noSize.Validate())

	noRate := valid
	noRate.FrameRate = Rational{}
	assert.Error(t, noRate.Validate())

	noTimeBase := valid
	noTimeBase.TimeBase = Rational{0, 0}
	assert.Error(t, noTimeBase.Validate())
}
