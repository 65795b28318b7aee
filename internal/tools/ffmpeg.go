// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffmpeg family related tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/lw"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

var (
	ffprobeCmd = "ffprobe"
	ffmpegCmd  = "ffmpeg"
	// Environment variables that take precedence over $PATH lookup.
	ffmpegEnvVar  = "ANAGLYPH_FFMPEG"
	ffprobeEnvVar = "ANAGLYPH_FFPROBE"
	// How much of ffprobe stderr to keep for error reporting.
	stderrLimit uint = 4 * 1024
)

// ErrNoVideoTrack is returned when container has no stream classified as video.
var ErrNoVideoTrack = errors.New("no video track")

// FfmpegPath will return path to ffmpeg binary and error if path is not found.
func FfmpegPath() (string, error) {
	p, err := FindTool(ffmpegCmd, ffmpegEnvVar)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return p, nil
}

// FfprobePath will return path to ffprobe binary and error if path is not found.
func FfprobePath() (string, error) {
	p, err := FindTool(ffprobeCmd, ffprobeEnvVar)
	if err != nil {
		return "", fmt.Errorf("ffprobe not found: %w", err)
	}
	return p, nil
}

// Ffprobe runs ffprobe queries against media files.
type Ffprobe struct {
	// Path to ffprobe executable
	ExePath string
}

// ProbeVideoTrack will query metadata of the first video stream in videoFile.
//
// Returns error wrapping ErrNoVideoTrack when container has no video streams.
func (f Ffprobe) ProbeVideoTrack(ctx context.Context, videoFile string) (video.Track, error) {
	if _, err := os.Stat(videoFile); err != nil {
		return video.Track{}, fmt.Errorf("ProbeVideoTrack() os.Stat: %w", err)
	}

	out, err := f.run(ctx,
		"-v", "error",
		"-of", "json",
		"-show_streams",
		videoFile,
	)
	if err != nil {
		return video.Track{}, fmt.Errorf("ProbeVideoTrack() %w", err)
	}

	track, err := parseFirstVideoStream(out)
	if err != nil {
		return track, fmt.Errorf("%s: %w", videoFile, err)
	}
	logging.Debugf("%s %+v", videoFile, track)

	return track, nil
}

// PacketTimestamps will return presentation timestamps of all packets of given
// track in presentation order.
//
// For a multi-view stream a single packet (access unit) carries all views of a
// frame, so packets map one to one onto stereo frames.
func (f Ffprobe) PacketTimestamps(ctx context.Context, videoFile string, track video.Track) ([]time.Duration, error) {
	out, err := f.run(ctx,
		"-v", "error",
		"-select_streams", strconv.Itoa(track.Index),
		"-show_entries", "packet=pts",
		"-of", "json=compact=1",
		videoFile,
	)
	if err != nil {
		return nil, fmt.Errorf("PacketTimestamps() %w", err)
	}

	return parsePacketTimestamps(out, track.TimeBase)
}

func (f Ffprobe) run(ctx context.Context, args ...string) ([]byte, error) {
	stderr := lw.LimitWriter(stderrLimit)
	cmd := exec.CommandContext(ctx, f.ExePath, args...) //#nosec G204
	cmd.Stderr = stderr
	logging.Debugf("Running: %s", cmd)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exec error: %w: %s", err, stderr.String())
	}
	return out, nil
}

// A temporary structures to unmarshal JSON from ffprobe output.
type ffprobeSideData struct {
	Type     string  `json:"side_data_type"`
	Rotation float64 `json:"rotation"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	TimeBase     string            `json:"time_base"`
	StartPts     *int64            `json:"start_pts"`
	SideData     []ffprobeSideData `json:"side_data_list"`
}

// parseFirstVideoStream picks the first stream classified as video from
// ffprobe -show_streams JSON output.
func parseFirstVideoStream(out []byte) (video.Track, error) {
	var track video.Track
	meta := &struct {
		Streams []ffprobeStream
	}{}
	if err := json.Unmarshal(out, meta); err != nil {
		return track, fmt.Errorf("ffprobe json.Unmarshal: %w", err)
	}

	for i := range meta.Streams {
		s := &meta.Streams[i]
		if s.CodecType != "video" {
			continue
		}
		return newTrack(s)
	}

	return track, ErrNoVideoTrack
}

func newTrack(s *ffprobeStream) (video.Track, error) {
	t := video.Track{
		Index:     s.Index,
		CodecName: s.CodecName,
		Width:     s.Width,
		Height:    s.Height,
	}

	var err error
	// Prefer real base frame rate, fall back to average for streams that do
	// not report one.
	rate := s.RFrameRate
	if r, _ := video.ParseRational(rate); r.IsZero() {
		rate = s.AvgFrameRate
	}
	if t.FrameRate, err = video.ParseRational(rate); err != nil {
		return t, fmt.Errorf("stream #%d frame rate: %w", s.Index, err)
	}
	if t.TimeBase, err = video.ParseRational(s.TimeBase); err != nil {
		return t, fmt.Errorf("stream #%d time base: %w", s.Index, err)
	}
	if s.StartPts != nil {
		t.StartTime = t.TimeBase.Duration(*s.StartPts)
	}
	for _, sd := range s.SideData {
		if sd.Type == "Display Matrix" {
			t.Rotation = sd.Rotation
		}
	}

	return t, nil
}

// parsePacketTimestamps converts ffprobe packet=pts JSON output into sorted
// presentation timestamps. Packets without PTS are skipped.
func parsePacketTimestamps(out []byte, timeBase video.Rational) ([]time.Duration, error) {
	if timeBase.IsZero() {
		return nil, fmt.Errorf("parsePacketTimestamps() undefined time base %s", timeBase)
	}
	packets := &struct {
		Packets []struct {
			Pts *int64 `json:"pts"`
		}
	}{}
	if err := json.Unmarshal(out, packets); err != nil {
		return nil, fmt.Errorf("parsePacketTimestamps() json.Unmarshal: %w", err)
	}

	ts := make([]time.Duration, 0, len(packets.Packets))
	for _, p := range packets.Packets {
		if p.Pts == nil {
			continue
		}
		ts = append(ts, timeBase.Duration(*p.Pts))
	}
	// Packets come in decode order, which differs from presentation order for
	// streams with B-frames.
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	return ts, nil
}
