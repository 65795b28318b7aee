// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Test fixtures of anaglyph application.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path"
	"testing"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/mkv"
	"github.com/stretchr/testify/require"
)

// Fake ffmpeg: decoding when view pipes are requested, encoding otherwise.
// Decoder emits given left and right view streams, encoder stores its input
// into output file given as last argument.
const fakeFfmpegScript = `#!/bin/sh
for last; do :; done
case "$*" in
*pipe:3*)
	cat '%s' >&3; cat '%s' >&4
	;;
*)
	cat > "$last"
	;;
esac
`

// writeViewStream stores 2x2 frames of colour c timestamped the way decoder
// does, in milliseconds.
func writeViewStream(t *testing.T, p string, c color.RGBA, pts ...time.Duration) {
	t.Helper()
	var buf bytes.Buffer
	w, err := mkv.NewWriter(&buf, mkv.Video{
		Width: 2, Height: 2, FourCC: "RGBA", TimestampScale: time.Millisecond,
	})
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	for _, ts := range pts {
		require.NoError(t, w.WriteFrame(ts, img.Pix))
	}
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
}

const fakeStreamsJSON = `{"streams": [
  {"index": 0, "codec_type": "video", "codec_name": "hevc", "width": 2, "height": 2,
   "r_frame_rate": "30/1", "avg_frame_rate": "30/1", "time_base": "1/600", "start_pts": 0,
   "side_data_list": [{"side_data_type": "Display Matrix", "rotation": -90}]},
  {"index": 1, "codec_type": "audio", "codec_name": "aac"}
]}`

const fakeAudioOnlyJSON = `{"streams": [{"index": 0, "codec_type": "audio", "codec_name": "aac"}]}`

const fakePacketsJSON = `{"packets": [{"pts": 20}, {"pts": 0}]}`

func writeExecutable(t *testing.T, p, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
}

// fixFakeTools fixture creates fake ffmpeg and ffprobe and makes default
// configuration pick them up. Returned paths are ffmpeg and ffprobe.
func fixFakeTools(t *testing.T, streamsJSON string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ffmpeg := path.Join(dir, "ffmpeg")
	ffprobe := path.Join(dir, "ffprobe")

	// Red left and blue right view, two frames each.
	left := path.Join(dir, "left.mkv")
	right := path.Join(dir, "right.mkv")
	writeViewStream(t, left, color.RGBA{R: 255, A: 255}, 0, 33*time.Millisecond)
	writeViewStream(t, right, color.RGBA{B: 255, A: 255}, 0, 33*time.Millisecond)

	writeExecutable(t, ffmpeg, fmt.Sprintf(fakeFfmpegScript, left, right))
	writeExecutable(t, ffprobe, fmt.Sprintf(`#!/bin/sh
case "$*" in
*packet*) cat <<'JSON'
%s
JSON
;;
*) cat <<'JSON'
%s
JSON
;;
esac
`, fakePacketsJSON, streamsJSON))

	t.Setenv("ANAGLYPH_FFMPEG", ffmpeg)
	t.Setenv("ANAGLYPH_FFPROBE", ffprobe)
	return ffmpeg, ffprobe
}

// fixInputVideo fixture creates a stand-in spatial video file.
func fixInputVideo(t *testing.T) string {
	t.Helper()
	p := path.Join(t.TempDir(), "spatial.mov")
	require.NoError(t, os.WriteFile(p, []byte("not really a movie"), 0o644))
	return p
}
