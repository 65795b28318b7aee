// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame sink encoding combined frames into an output video file.
package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/ffcmd"
	"github.com/evolution-gaming/anaglyph/internal/framepool"
	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/mkv"
	"github.com/evolution-gaming/anaglyph/internal/stereo"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

// DefaultEncodeTemplate encodes timestamped raw RGBA frames from stdin into
// HEVC in a QuickTime container. Every frame keeps its presentation timestamp,
// display rotation of the input track is carried over.
var DefaultEncodeTemplate = "-hide_banner -loglevel error -nostdin -y " +
	"-f matroska -display_rotation {{.Rotation}} -i pipe:0 " +
	"-fps_mode passthrough -enc_time_base 1:{{.Timescale}} " +
	"-c:v libx265 -tag:v hvc1 -pix_fmt yuv420p " +
	"-video_track_timescale {{.Timescale}} -f mov {{quote .OutputFile}}"

// DefaultPoolSize is the number of output buffers when not configured.
const DefaultPoolSize = 3

var (
	ErrOutOfOrder = errors.New("presentation timestamp out of order")
	ErrFinished   = errors.New("sink already finished")
)

// Config exposes parameters for Sink creation.
type Config struct {
	FfmpegPath string
	OutputFile string
	// Track of the input, output inherits its geometry and timing.
	Track video.Track
	// Encode command template, DefaultEncodeTemplate if empty.
	EncodeTemplate string
	// Output buffer count, DefaultPoolSize if zero.
	PoolSize int
}

// Template requires a struct with exported fields.
type encodeContext struct {
	OutputFile string
	Width      int
	Height     int
	FrameRate  string
	Rotation   string
	// Ticks per second of the input time base.
	Timescale int64
}

// Sink is an ffmpeg encoder fed with timestamped raw frames over stdin.
type Sink struct {
	cfg       Config
	proc      *ffcmd.Process
	stdin     io.WriteCloser
	stream    *mkv.Writer
	pool      *framepool.Pool
	frameSize int

	written int
	lastPTS time.Duration

	finished bool
	aborted  bool
}

// Open starts encoder writing into cfg.OutputFile.
func Open(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.EncodeTemplate == "" {
		cfg.EncodeTemplate = DefaultEncodeTemplate
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if err := cfg.Track.Validate(); err != nil {
		return nil, &stereo.EncodeError{Err: err}
	}

	pool, err := framepool.New(cfg.Track.Size(), cfg.PoolSize)
	if err != nil {
		return nil, &stereo.ResourceError{Err: err}
	}

	args, err := ffcmd.Render("encode", cfg.EncodeTemplate, newEncodeContext(cfg))
	if err != nil {
		return nil, &stereo.EncodeError{Err: err}
	}

	proc := ffcmd.Command(ctx, "ffmpeg encode", cfg.FfmpegPath, args)
	stdin, err := proc.Cmd().StdinPipe()
	if err != nil {
		return nil, &stereo.EncodeError{Err: err}
	}
	if err := proc.Start(); err != nil {
		return nil, &stereo.EncodeError{Err: err}
	}
	logging.Infof("Writing %s", cfg.OutputFile)

	s := &Sink{
		cfg:       cfg,
		proc:      proc,
		stdin:     stdin,
		pool:      pool,
		frameSize: cfg.Track.FrameSize(),
	}
	s.stream, err = mkv.NewWriter(stdin, mkv.Video{
		Width:         cfg.Track.Width,
		Height:        cfg.Track.Height,
		FourCC:        "RGBA",
		FrameDuration: cfg.Track.FrameInterval(),
	})
	if err != nil {
		err = s.fail(fmt.Errorf("writing stream header: %w", err))
		os.Remove(cfg.OutputFile)
		return nil, err
	}
	return s, nil
}

func newEncodeContext(cfg Config) encodeContext {
	t := cfg.Track
	return encodeContext{
		OutputFile: cfg.OutputFile,
		Width:      t.Width,
		Height:     t.Height,
		FrameRate:  t.FrameRate.String(),
		Rotation:   strconv.FormatFloat(t.Rotation, 'f', -1, 64),
		Timescale:  timescale(t.TimeBase),
	}
}

// timescale returns tick rate at which every timestamp of time base tb is a
// whole number of ticks.
func timescale(tb video.Rational) int64 {
	if tb.Den < 0 {
		return -tb.Den
	}
	return tb.Den
}

// OutputFile returns path of file being written.
func (s *Sink) OutputFile() string {
	return s.cfg.OutputFile
}

// Written returns number of frames handed to encoder.
func (s *Sink) Written() int {
	return s.written
}

// Acquire returns a free output buffer. Buffer goes back to the pool on
// Append.
func (s *Sink) Acquire(ctx context.Context) (*image.RGBA, error) {
	if s.finished || s.aborted {
		return nil, ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.pool.TryGet()
	if err != nil {
		return nil, &stereo.ResourceError{Err: err}
	}
	return img, nil
}

// Append writes img as frame with presentation timestamp pts. Timestamps must
// be non-decreasing. Append blocks while encoder is not consuming input.
func (s *Sink) Append(ctx context.Context, pts time.Duration, img *image.RGBA) error {
	defer s.release(img)

	if s.finished || s.aborted {
		return ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.written > 0 && pts < s.lastPTS {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, pts, s.lastPTS)
	}
	if img.Rect.Size() != s.pool.Size() || len(img.Pix) != s.frameSize {
		return &stereo.EncodeError{
			Err: fmt.Errorf("frame size %v, encoder expects %v", img.Rect.Size(), s.pool.Size()),
		}
	}
	if pts < 0 {
		return &stereo.EncodeError{Err: fmt.Errorf("frame #%d: %w", s.written, mkv.ErrNegativeTimestamp)}
	}

	if err := s.stream.WriteFrame(pts, img.Pix); err != nil {
		return s.fail(fmt.Errorf("writing frame at %s: %w", pts, err))
	}

	s.lastPTS = pts
	s.written++
	return nil
}

func (s *Sink) release(img *image.RGBA) {
	if img == nil {
		return
	}
	if err := s.pool.Put(img); err != nil {
		logging.Debugf("Releasing output buffer: %s", err)
	}
}

// fail collects encoder exit status after a failed write.
func (s *Sink) fail(err error) error {
	s.stdin.Close()
	var runErr *ffcmd.RunError
	if errors.As(s.proc.Wait(), &runErr) {
		return &stereo.EncodeError{Err: fmt.Errorf("%w: %s", err, runErr)}
	}
	return &stereo.EncodeError{Err: err}
}

// Finish marks input as complete and waits for encoder to finalize output.
// Finish may be called only once, it is valid without any frames written.
func (s *Sink) Finish() error {
	if s.finished || s.aborted {
		return ErrFinished
	}
	s.finished = true

	if err := s.stdin.Close(); err != nil {
		logging.Debugf("Closing encoder input: %s", err)
	}
	if err := s.proc.Wait(); err != nil {
		return &stereo.EncodeError{Err: err}
	}
	usage := s.proc.Stats()
	logging.Infof("Encoded %d frames in %s (CPU %.0f%%)", s.written, usage.HElapsed, usage.CPUPercent())
	return nil
}

// Abort kills encoder and removes output file. Abort after Finish removes
// the finished output.
func (s *Sink) Abort() error {
	if s.aborted {
		return nil
	}
	s.aborted = true
	if !s.finished {
		s.stdin.Close()
		s.proc.Kill()
	}
	err := os.Remove(s.cfg.OutputFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing partial output: %w", err)
	}
	logging.Debugf("Removed partial output %s", s.cfg.OutputFile)
	return nil
}

// Stats returns encoder resource usage, valid after Finish.
func (s *Sink) Stats() ffcmd.UsageStat {
	return s.proc.Stats()
}
