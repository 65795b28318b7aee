// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// anaglyph tool's probe subcommand implementation.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/naming"
	"github.com/evolution-gaming/anaglyph/internal/stereo"
	"github.com/evolution-gaming/anaglyph/internal/tools"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

// CreateProbeCommand will create Commander instance from ProbeApp.
func CreateProbeCommand() *ProbeApp {
	longHelp := `Subcommand "probe" will print metadata of the first video track of given file
as JSON, which is the track "convert" would use.

Examples:

  anaglyph probe path/to/video.mov`

	app := &ProbeApp{
		fs:  flag.NewFlagSet("probe", flag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// Make sure ProbeApp implements Commander interface.
var _ Commander = (*ProbeApp)(nil)

// ProbeApp is subcommand application context that implements Commander interface.
type ProbeApp struct {
	out io.Writer
	fs  *flag.FlagSet
	gf  globalFlags
}

// probeReport is the probe subcommand output.
type probeReport struct {
	File       string      `json:"file"`
	OutputFile string      `json:"output_file"`
	Track      video.Track `json:"track"`
	Packets    int         `json:"packets"`
	// First and last packet presentation timestamps.
	FirstPTS time.Duration `json:"first_pts"`
	LastPTS  time.Duration `json:"last_pts"`
}

func (p *ProbeApp) Name() string {
	return p.fs.Name()
}

func (p *ProbeApp) Help() {
	p.fs.Usage()
}

// Run is main entry point into ProbeApp execution.
func (p *ProbeApp) Run(args []string) error {
	if err := p.fs.Parse(args); err != nil {
		return usageError(fmt.Sprintf("%s usage error", p.Name()))
	}
	p.gf.Apply()
	if p.fs.NArg() != 1 {
		p.Help()
		return usageError("please, specify a single video file")
	}
	videoFile := p.fs.Arg(0)

	cfg, err := LoadConfig(p.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	ctx := context.Background()
	probe := tools.Ffprobe{ExePath: cfg.FfprobePath.Value()}
	track, err := probe.ProbeVideoTrack(ctx, videoFile)
	if errors.Is(err, tools.ErrNoVideoTrack) {
		return runtimeError(&stereo.InputValidationError{Path: videoFile, Err: err})
	}
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	report := probeReport{
		File:       videoFile,
		OutputFile: naming.OutputPath(videoFile),
		Track:      track,
	}
	// Packet timestamps need a usable time base.
	if !track.TimeBase.IsZero() {
		ts, err := probe.PacketTimestamps(ctx, videoFile, track)
		if err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
		report.Packets = len(ts)
		if len(ts) > 0 {
			report.FirstPTS = ts[0]
			report.LastPTS = ts[len(ts)-1]
		}
	}

	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if err := track.Validate(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("track is not convertible: %s", err)}
	}
	return nil
}
