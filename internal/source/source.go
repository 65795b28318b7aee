// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame source producing stereo frames from a multi-view video file.

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/stereo"
	"github.com/evolution-gaming/anaglyph/internal/tools"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

var (
	ErrClosed = errors.New("source closed")
	// ErrUnmatchedTimestamp is returned for a decoded frame which has no
	// packet with a close enough presentation timestamp.
	ErrUnmatchedTimestamp = errors.New("no packet for decoded frame")
)

// Decoder reports timestamps with millisecond precision, exact values are
// taken from packet nearest to the reported one within this tolerance.
const matchTolerance = time.Millisecond

// Prober provides stream metadata of input file.
type Prober interface {
	video.TrackProber
	// PacketTimestamps returns sorted presentation timestamps of track packets.
	PacketTimestamps(ctx context.Context, videoFile string, track video.Track) ([]time.Duration, error)
}

// Config exposes parameters for Source creation.
type Config struct {
	FfmpegPath  string
	FfprobePath string
	InputFile   string
	// Decode command template, DefaultDecodeTemplate if empty.
	DecodeTemplate string
	// Views to request from decoder, stereo.DefaultViews if empty.
	Views []stereo.View
	// Prober queries input metadata, ffprobe at FfprobePath if nil.
	Prober Prober
}

// sampleReader is implemented by decoders delivering tagged buffers of one
// access unit at a time.
type sampleReader interface {
	// ReadSample returns io.EOF after the last sample.
	ReadSample(ctx context.Context) (stereo.Sample, error)
	// Release hands buffers of a sample back to decoder.
	Release(parts []stereo.TaggedBuffer)
	Close() error
}

// Source is a lazy, finite, non-restartable sequence of stereo frames.
type Source struct {
	cfg        Config
	track      video.Track
	timestamps []time.Duration
	// Index of first packet not yet matched to a decoded frame.
	next int
	// Packets without a decoded frame.
	skipped int
	dropped int
	closed  bool

	dec        sampleReader
	newDecoder func(ctx context.Context) (sampleReader, error)
}

// Open will probe input file and prepare Source. No decoding is started
// until first call to Next.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.DecodeTemplate == "" {
		cfg.DecodeTemplate = DefaultDecodeTemplate
	}
	if len(cfg.Views) == 0 {
		cfg.Views = stereo.DefaultViews
	}

	if cfg.Prober == nil {
		cfg.Prober = tools.Ffprobe{ExePath: cfg.FfprobePath}
	}
	probe := cfg.Prober
	track, err := probe.ProbeVideoTrack(ctx, cfg.InputFile)
	switch {
	case errors.Is(err, tools.ErrNoVideoTrack), errors.Is(err, fs.ErrNotExist):
		return nil, &stereo.InputValidationError{Path: cfg.InputFile, Err: err}
	case err != nil:
		return nil, &stereo.DecodeError{Err: err}
	}
	if err := track.Validate(); err != nil {
		return nil, &stereo.InputValidationError{Path: cfg.InputFile, Err: err}
	}

	timestamps, err := probe.PacketTimestamps(ctx, cfg.InputFile, track)
	if err != nil {
		return nil, &stereo.DecodeError{Err: err}
	}
	logging.Infof("Video track %s, %d frames", track, len(timestamps))

	s := &Source{
		cfg:        cfg,
		track:      track,
		timestamps: timestamps,
	}
	s.newDecoder = func(ctx context.Context) (sampleReader, error) {
		return startDecoder(ctx, s.cfg, s.track)
	}
	return s, nil
}

// Track returns probed video track metadata.
func (s *Source) Track() video.Track {
	return s.track
}

// Dropped returns number of samples dropped due to missing views.
func (s *Source) Dropped() int {
	return s.dropped
}

// Next returns next stereo frame or io.EOF when stream is exhausted.
// Samples missing either view are skipped silently. Frame timestamps are the
// exact packet timestamps of the input track.
//
// Caller must Release returned frame before the one after next is requested.
func (s *Source) Next(ctx context.Context) (stereo.Frame, error) {
	if s.closed {
		return stereo.Frame{}, ErrClosed
	}
	if s.dec == nil {
		dec, err := s.newDecoder(ctx)
		if err != nil {
			return stereo.Frame{}, &stereo.DecodeError{Err: err}
		}
		s.dec = dec
	}

	for {
		if err := ctx.Err(); err != nil {
			return stereo.Frame{}, err
		}

		smp, err := s.dec.ReadSample(ctx)
		if errors.Is(err, io.EOF) {
			s.skipped += len(s.timestamps) - s.next
			s.next = len(s.timestamps)
		}
		if err != nil {
			return stereo.Frame{}, err
		}

		pts, ok := s.match(smp.PTS)
		if !ok {
			s.dec.Release(smp.Parts)
			return stereo.Frame{}, &stereo.DecodeError{
				Err: fmt.Errorf("%w at %s", ErrUnmatchedTimestamp, smp.PTS),
			}
		}
		parts := smp.Parts

		f, ok, err := stereo.Classify(stereo.Sample{PTS: pts, Parts: parts})
		if err != nil {
			s.dec.Release(parts)
			return stereo.Frame{}, &stereo.DecodeError{Err: fmt.Errorf("frame at %s: %w", pts, err)}
		}
		if !ok {
			s.dropped++
			logging.Debugf("Dropping sample at %s: %d of %d views present", pts, len(parts), len(s.cfg.Views))
			s.dec.Release(parts)
			continue
		}

		dec := s.dec
		return stereo.NewFrame(f.PTS, f.Left, f.Right, func() { dec.Release(parts) }), nil
	}
}

// match returns packet timestamp nearest to decoded one. Packets passed over
// were not decoded and are counted as skipped.
func (s *Source) match(decoded time.Duration) (time.Duration, bool) {
	for s.next < len(s.timestamps) && s.timestamps[s.next] < decoded-matchTolerance {
		s.next++
		s.skipped++
	}
	if s.next == len(s.timestamps) || s.timestamps[s.next] > decoded+matchTolerance {
		return 0, false
	}
	// Next packet may be even closer.
	for s.next+1 < len(s.timestamps) &&
		absDiff(s.timestamps[s.next+1], decoded) < absDiff(s.timestamps[s.next], decoded) {
		s.next++
		s.skipped++
	}
	pts := s.timestamps[s.next]
	s.next++
	return pts, true
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}

// Skipped returns number of packets for which decoder produced no frame.
func (s *Source) Skipped() int {
	return s.skipped
}

// Close stops decoding and releases decoder resources. Close is idempotent.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.dropped > 0 {
		logging.Infof("Dropped %d samples with missing views", s.dropped)
	}
	if s.skipped > 0 {
		logging.Infof("Decoder skipped %d of %d packets", s.skipped, len(s.timestamps))
	}
	if s.dec == nil {
		return nil
	}
	return s.dec.Close()
}

// Make sure ffmpegDecoder satisfies sampleReader.
var _ sampleReader = (*ffmpegDecoder)(nil)
