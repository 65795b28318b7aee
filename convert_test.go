// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// End-to-end tests of anaglyph application commands with fake ffmpeg and ffprobe.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/mkv"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type encodedFrame struct {
	PTS time.Duration
	Pix []byte
}

// readEncoded returns frames fake encoder stored into output file.
func readEncoded(t *testing.T, file string) []encodedFrame {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	var got []encodedFrame
	r := mkv.NewReader(f)
	for {
		pix := make([]byte, 2*2*4)
		pts, err := r.ReadFrame(pix)
		if errors.Is(err, io.EOF) {
			return got
		}
		require.NoError(t, err)
		got = append(got, encodedFrame{PTS: pts, Pix: pix})
	}
}

// magentaOutput is what fake encoder receives for two red/blue frame pairs,
// timestamped exactly as input packets at 0 and 20/600 s.
func magentaOutput() []encodedFrame {
	magenta := bytes.Repeat([]byte{255, 0, 255, 255}, 2*2)
	return []encodedFrame{
		{PTS: 0, Pix: magenta},
		{PTS: 33333333, Pix: magenta},
	}
}

func requireExitCode(t *testing.T, err error, want int) *AppError {
	t.Helper()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, want, appErr.ExitCode())
	return appErr
}

func TestConvert(t *testing.T) {
	tests := map[string]func(input string) []string{
		"Default command":  func(input string) []string { return []string{input} },
		"Explicit command": func(input string) []string { return []string{"convert", "-workers", "2", input} },
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			fixFakeTools(t, fakeStreamsJSON)
			input := fixInputVideo(t)

			err := root(args(input))
			require.NoError(t, err)

			got := readEncoded(t, path.Join(path.Dir(input), "spatial Anaglyph.mov"))
			if diff := cmp.Diff(magentaOutput(), got); diff != "" {
				t.Errorf("Encoder input mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvert_ReportAndPlot(t *testing.T) {
	fixFakeTools(t, fakeStreamsJSON)
	input := fixInputVideo(t)
	dir := t.TempDir()
	report := path.Join(dir, "frames.csv")
	plot := path.Join(dir, "frames.png")

	err := CreateConvertCommand().Run([]string{"-report", report, "-plot", plot, input})
	require.NoError(t, err)

	b, err := os.ReadFile(report)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,pts_ns,combine_ns,write_ns", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,0,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,33333333,"), lines[2])

	png, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestConvert_Negative(t *testing.T) {
	t.Run("Audio only input", func(t *testing.T) {
		fixFakeTools(t, fakeAudioOnlyJSON)
		input := fixInputVideo(t)

		err := root([]string{input})
		appErr := requireExitCode(t, err, 1)
		assert.Contains(t, appErr.Error(), "cannot convert")
		assert.NoFileExists(t, path.Join(path.Dir(input), "spatial Anaglyph.mov"))
	})

	t.Run("Missing input", func(t *testing.T) {
		fixFakeTools(t, fakeStreamsJSON)
		input := path.Join(t.TempDir(), "missing.mov")

		err := root([]string{input})
		appErr := requireExitCode(t, err, 1)
		assert.Contains(t, appErr.Error(), "cannot convert")
	})

	t.Run("Existing output", func(t *testing.T) {
		fixFakeTools(t, fakeStreamsJSON)
		input := fixInputVideo(t)
		output := path.Join(path.Dir(input), "spatial Anaglyph.mov")
		require.NoError(t, os.WriteFile(output, []byte("keep me"), 0o644))

		err := root([]string{input})
		appErr := requireExitCode(t, err, 1)
		assert.Contains(t, appErr.Error(), "-force")
		got, _ := os.ReadFile(output)
		assert.Equal(t, []byte("keep me"), got)

		// With -force output gets replaced.
		require.NoError(t, root([]string{"convert", "-force", input}))
		assert.Equal(t, magentaOutput(), readEncoded(t, output))
	})
}

func TestConvert_UsageErrors(t *testing.T) {
	fixFakeTools(t, fakeStreamsJSON)
	input := fixInputVideo(t)

	tests := map[string][]string{
		"No arguments":   {},
		"Two inputs":     {"convert", input, input},
		"Zero workers":   {"convert", "-workers", "0", input},
		"Unknown flag":   {"convert", "-bogus", input},
		"Help requested": {"-h"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			requireExitCode(t, root(args), 2)
		})
	}
}

func TestProbe(t *testing.T) {
	fixFakeTools(t, fakeStreamsJSON)
	input := fixInputVideo(t)
	out := &bytes.Buffer{}

	cmd := CreateProbeCommand()
	cmd.out = out
	require.NoError(t, cmd.Run([]string{input}))

	var got struct {
		File       string `json:"file"`
		OutputFile string `json:"output_file"`
		Track      struct {
			Index     int     `json:"index"`
			Width     int     `json:"width"`
			FrameRate string  `json:"frame_rate"`
			Rotation  float64 `json:"rotation"`
		} `json:"track"`
		Packets int   `json:"packets"`
		LastPTS int64 `json:"last_pts"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, input, got.File)
	assert.Equal(t, path.Join(path.Dir(input), "spatial Anaglyph.mov"), got.OutputFile)
	assert.Equal(t, 0, got.Track.Index)
	assert.Equal(t, 2, got.Track.Width)
	assert.Equal(t, "30/1", got.Track.FrameRate)
	assert.Equal(t, -90.0, got.Track.Rotation)
	assert.Equal(t, 2, got.Packets)
	assert.Equal(t, int64(33333333), got.LastPTS)
}

func TestProbe_Negative(t *testing.T) {
	fixFakeTools(t, fakeAudioOnlyJSON)
	input := fixInputVideo(t)

	cmd := CreateProbeCommand()
	cmd.out = &bytes.Buffer{}
	appErr := requireExitCode(t, cmd.Run([]string{input}), 1)
	assert.Contains(t, appErr.Error(), "no video track")

	requireExitCode(t, CreateProbeCommand().Run(nil), 2)
}

func TestVersion(t *testing.T) {
	assert.NoError(t, root([]string{"version"}))
}

func Test_readVersionInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.21.0",
		Main:      debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-02-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	read := func() (*debug.BuildInfo, bool) { return bi, true }

	got := readVersionInfo("", read)
	assert.Equal(t, "v0.3.0 abc123-dirty 2024-02-01 go1.21.0", got.String())

	// Injected version wins over module version.
	got = readVersionInfo("v1.0.0", read)
	assert.Equal(t, "v1.0.0", got.version)

	got = readVersionInfo("v1.0.0", func() (*debug.BuildInfo, bool) { return nil, false })
	assert.Equal(t, "v1.0.0", got.String())
}
