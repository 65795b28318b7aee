// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// anaglyph tool's convert subcommand implementation.

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/evolution-gaming/anaglyph/internal/analysis"
	"github.com/evolution-gaming/anaglyph/internal/anaglyph"
	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/metric"
	"github.com/evolution-gaming/anaglyph/internal/naming"
	"github.com/evolution-gaming/anaglyph/internal/pipeline"
	"github.com/evolution-gaming/anaglyph/internal/sink"
	"github.com/evolution-gaming/anaglyph/internal/source"
	"github.com/evolution-gaming/anaglyph/internal/video"
	"github.com/jszwec/csvutil"
)

// CreateConvertCommand will create Commander instance from ConvertApp.
func CreateConvertCommand() *ConvertApp {
	longHelp := `Subcommand "convert" will render a spatial (MV-HEVC stereo) video as a red/cyan
anaglyph video. Result is written next to the input as "<name> Anaglyph.<ext>".

Examples:

  anaglyph convert path/to/video.mov
  anaglyph convert -report frames.csv -plot frames.png path/to/video.mov`

	app := &ConvertApp{
		fs: flag.NewFlagSet("convert", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flReport, "report", "", "Write per-frame CSV report to file (optional)")
	app.fs.StringVar(&app.flPlot, "plot", "", "Write per-frame timing plot PNG to file (optional)")
	app.fs.IntVar(&app.flWorkers, "workers", 1, "Number of goroutines combining rows of a frame")
	app.fs.BoolVar(&app.flForce, "force", false, "Overwrite existing output file")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// Make sure ConvertApp implements Commander interface.
var _ Commander = (*ConvertApp)(nil)

// ConvertApp is subcommand application context that implements Commander interface.
type ConvertApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Global flags
	gf globalFlags
	// Per-frame CSV report file flag
	flReport string
	// Per-frame timing plot file flag
	flPlot string
	// Combiner row workers flag
	flWorkers int
	// Overwrite output flag
	flForce bool
	// Input spatial video
	inputFile string
	// Derived anaglyph output
	outputFile string
	// Metrics of last run
	mStore *metric.Store
}

func (a *ConvertApp) Name() string {
	return a.fs.Name()
}

func (a *ConvertApp) Help() {
	a.fs.Usage()
}

// init will do ConvertApp state initialization.
func (a *ConvertApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return usageError(fmt.Sprintf("%s usage error", a.Name()))
	}

	a.gf.Apply()

	// Exactly one input file is expected.
	if a.fs.NArg() != 1 {
		a.Help()
		return usageError("please, specify a single spatial video file")
	}
	if a.flWorkers < 1 {
		a.Help()
		return usageError("-workers should be at least 1")
	}

	input, err := filepath.Abs(a.fs.Arg(0))
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.inputFile = input
	a.outputFile = naming.OutputPath(input)

	if !a.flForce {
		if _, err := os.Stat(a.outputFile); err == nil {
			return &AppError{
				exitCode: 1,
				msg:      fmt.Sprintf("output file already exists: %s (use -force to overwrite)", a.outputFile),
			}
		}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	return nil
}

// newDriver wires source, combiner and sink into pipeline Driver.
func (a *ConvertApp) newDriver() *pipeline.Driver {
	return &pipeline.Driver{
		OpenSource: func(ctx context.Context) (pipeline.FrameSource, error) {
			src, err := source.Open(ctx, source.Config{
				FfmpegPath:     a.cfg.FfmpegPath.Value(),
				FfprobePath:    a.cfg.FfprobePath.Value(),
				InputFile:      a.inputFile,
				DecodeTemplate: a.cfg.FfmpegDecodeTemplate.Value(),
			})
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		OpenSink: func(ctx context.Context, track video.Track) (pipeline.FrameSink, error) {
			snk, err := sink.Open(ctx, sink.Config{
				FfmpegPath:     a.cfg.FfmpegPath.Value(),
				OutputFile:     a.outputFile,
				Track:          track,
				EncodeTemplate: a.cfg.FfmpegEncodeTemplate.Value(),
				PoolSize:       a.cfg.PoolSize.Value(),
			})
			if err != nil {
				return nil, err
			}
			return snk, nil
		},
		Combiner: anaglyph.Combiner{Workers: a.flWorkers},
		Metrics:  a.mStore,
	}
}

// saveReport writes per-frame records to CSV report file.
func (a *ConvertApp) saveReport() error {
	reportOut, err := os.Create(a.flReport)
	if err != nil {
		return fmt.Errorf("creating CSV report file: %w", err)
	}
	defer reportOut.Close()

	w := csv.NewWriter(reportOut)
	if err := csvutil.NewEncoder(w).Encode(a.mStore.Records()); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	w.Flush()

	return w.Error()
}

// Run is main entry point into ConvertApp execution.
func (a *ConvertApp) Run(args []string) error {
	logging.Infof("anaglyph version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	// Interrupt cancels conversion, partial output is removed by the pipeline.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.mStore = metric.NewStore()
	res, err := a.newDriver().Run(ctx)
	if err != nil {
		return runtimeError(err)
	}
	logging.Infof("Summary: %s", formatSummary(metric.Summarize(a.mStore)))

	if a.flReport != "" && a.mStore.Len() > 0 {
		if err := a.saveReport(); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
		logging.Infof("Per-frame report done: %s", a.flReport)
	}

	if a.flPlot != "" && a.mStore.Len() > 0 {
		title := filepath.Base(res.OutputFile)
		if err := analysis.MultiPlotTiming(a.mStore, title, a.flPlot); err != nil {
			return &AppError{exitCode: 1, msg: fmt.Sprintf("creating timing plot: %s", err)}
		}
		logging.Infof("Timing plot done: %s", a.flPlot)
	}

	logging.Infof("Done: %s", res.OutputFile)
	return nil
}

func formatSummary(s metric.Summary) string {
	if s.Frames == 0 {
		return "no frames written"
	}
	return fmt.Sprintf("%d frames, combine %s, write %s, frame interval %s",
		s.Frames, s.Combine, s.Write, s.Interval)
}
