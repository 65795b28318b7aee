// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Pipeline driving frames from a stereo source through the anaglyph combiner
// into an encoding sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/anaglyph"
	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/metric"
	"github.com/evolution-gaming/anaglyph/internal/stereo"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

// DefaultProgressEvery is the number of frames between progress log lines.
const DefaultProgressEvery = 100

var ErrAlreadyRun = errors.New("pipeline already run")

// FrameSource is a finite sequence of stereo frames. Next returns io.EOF
// after the last frame.
type FrameSource interface {
	Track() video.Track
	Next(ctx context.Context) (stereo.Frame, error)
	// Dropped returns number of samples skipped for missing views.
	Dropped() int
	Close() error
}

// FrameSink consumes combined frames in presentation order.
type FrameSink interface {
	OutputFile() string
	Acquire(ctx context.Context) (*image.RGBA, error)
	Append(ctx context.Context, pts time.Duration, img *image.RGBA) error
	Finish() error
	Abort() error
}

type (
	SourceOpener func(ctx context.Context) (FrameSource, error)
	// SinkOpener gets track of opened source, sink output mirrors it.
	SinkOpener func(ctx context.Context, track video.Track) (FrameSink, error)
)

// State of pipeline Driver.
type State int

const (
	Idle State = iota
	Reading
	Writing
	Draining
	Finished
	// Failed is terminal state of an aborted run.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Writing:
		return "writing"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result of a pipeline run.
type Result struct {
	// Frames written to sink.
	Frames int
	// Samples dropped by source.
	Dropped    int
	OutputFile string
	Metrics    *metric.Store
}

// Driver runs the pipeline once.
type Driver struct {
	OpenSource SourceOpener
	OpenSink   SinkOpener
	Combiner   anaglyph.Combiner
	// Metrics receives a record per written frame, a new store is created if
	// nil.
	Metrics *metric.Store
	// OnTransition is called on every state change when set.
	OnTransition func(from, to State)
	// ProgressEvery sets progress logging period, DefaultProgressEvery if
	// zero.
	ProgressEvery int

	state State
}

// State returns current state of driver.
func (d *Driver) State() State {
	return d.state
}

func (d *Driver) transition(to State) {
	from := d.state
	d.state = to
	logging.Debugf("Pipeline %s -> %s", from, to)
	if d.OnTransition != nil {
		d.OnTransition(from, to)
	}
}

// Run pulls all frames from source, combines and pushes them to sink, then
// finishes sink exactly once.
//
// On failure sink is aborted, so no partial output is left behind, and the
// first error is returned.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var res Result
	if d.state != Idle {
		return res, ErrAlreadyRun
	}
	if d.Metrics == nil {
		d.Metrics = metric.NewStore()
	}
	res.Metrics = d.Metrics

	src, err := d.OpenSource(ctx)
	if err != nil {
		d.transition(Failed)
		return res, err
	}
	snk, err := d.OpenSink(ctx, src.Track())
	if err != nil {
		d.closeSource(src)
		d.transition(Failed)
		return res, err
	}
	res.OutputFile = snk.OutputFile()

	d.transition(Reading)
	err = d.loop(ctx, src, snk, &res)
	res.Dropped = src.Dropped()
	if err != nil {
		d.abort(src, snk)
		return res, err
	}

	d.transition(Draining)
	if err := snk.Finish(); err != nil {
		d.abort(src, snk)
		return res, err
	}
	d.transition(Finished)
	logging.Infof("Wrote %d frames to %s, dropped %d samples", res.Frames, res.OutputFile, res.Dropped)

	if err := src.Close(); err != nil {
		return res, fmt.Errorf("releasing source: %w", err)
	}
	return res, nil
}

func (d *Driver) loop(ctx context.Context, src FrameSource, snk FrameSink, res *Result) error {
	every := d.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		d.transition(Writing)
		if err := d.write(ctx, snk, frame, res.Frames); err != nil {
			return err
		}
		res.Frames++
		if res.Frames%every == 0 {
			elapsed := time.Since(start)
			logging.Infof("Processed %d frames in %s (%.1f fps)",
				res.Frames, elapsed.Round(time.Millisecond), float64(res.Frames)/elapsed.Seconds())
		}
		d.transition(Reading)
	}
}

// write combines frame into a sink buffer and appends it. Frame is released
// in any case.
func (d *Driver) write(ctx context.Context, snk FrameSink, frame stereo.Frame, index int) error {
	pts := frame.PTS
	dst, err := snk.Acquire(ctx)
	if err != nil {
		frame.Release()
		return err
	}

	start := time.Now()
	err = d.Combiner.Combine(dst, frame.Left, frame.Right)
	combineTime := time.Since(start)
	frame.Release()
	if err != nil {
		return fmt.Errorf("combining frame at %s: %w", pts, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	start = time.Now()
	if err := snk.Append(ctx, pts, dst); err != nil {
		return err
	}

	d.Metrics.Insert(metric.Record{
		Index:       index,
		PTS:         pts,
		CombineTime: combineTime,
		WriteTime:   time.Since(start),
	})
	return nil
}

// abort tears down after a failure. Teardown errors are logged, they must
// not mask the error that caused the abort.
func (d *Driver) abort(src FrameSource, snk FrameSink) {
	if err := snk.Abort(); err != nil {
		logging.Warnf("Aborting sink: %s", err)
	}
	d.closeSource(src)
	d.transition(Failed)
}

func (d *Driver) closeSource(src FrameSource) {
	if err := src.Close(); err != nil {
		logging.Warnf("Closing source: %s", err)
	}
}
