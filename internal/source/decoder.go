// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/ffcmd"
	"github.com/evolution-gaming/anaglyph/internal/framepool"
	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/mkv"
	"github.com/evolution-gaming/anaglyph/internal/stereo"
	"github.com/evolution-gaming/anaglyph/internal/video"
)

// DefaultDecodeTemplate decodes both views of the first video stream into
// separate pipes, one per view. Views are selected by their view ID, frames
// travel as raw RGBA in Matroska so that each keeps its own timestamp.
var DefaultDecodeTemplate = "-hide_banner -loglevel error -nostdin -autorotate 0 -copyts " +
	"-i {{quote .InputFile}} " +
	`-filter_complex "{{range $i, $v := .Views}}{{if $i}};{{end}}` +
	`[0:v:view:{{$v.LayerID}}]format=rgba[{{$v.Eye}}]{{end}}" ` +
	"{{range .Views}}-map [{{.Eye}}] -fps_mode passthrough " +
	"-c:v rawvideo -pix_fmt rgba -f matroska pipe:{{.FD}} {{end}}"

const (
	// Buffers per view: one handed to caller, one pending or being filled.
	viewPoolSize = 2
	// First file descriptor available to child process via ExtraFiles.
	firstExtraFD = 3
)

// Template requires a struct with exported fields.
type decodeContext struct {
	InputFile   string
	StreamIndex int
	Width       int
	Height      int
	Views       []viewContext
}

type viewContext struct {
	LayerID int
	Eye     string
	FD      int
}

type readResult struct {
	img *image.RGBA
	pts time.Duration
	err error
}

// viewPipe is the parent side of one view's frame pipe.
type viewPipe struct {
	view   stereo.View
	r      *os.File
	pool   *framepool.Pool
	frames chan readResult

	// Frame read ahead, waiting for a sample with its timestamp.
	head  *readResult
	ended bool
}

// ffmpegDecoder reads frames of all views from a single ffmpeg process.
type ffmpegDecoder struct {
	proc   *ffcmd.Process
	views  []*viewPipe
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	finished  bool
}

// startDecoder starts ffmpeg decoding given track of cfg.InputFile.
func startDecoder(ctx context.Context, cfg Config, track video.Track) (*ffmpegDecoder, error) {
	ctx, cancel := context.WithCancel(ctx)
	d := &ffmpegDecoder{cancel: cancel}

	tplContext := decodeContext{
		InputFile:   cfg.InputFile,
		StreamIndex: track.Index,
		Width:       track.Width,
		Height:      track.Height,
	}
	childEnds := make([]*os.File, 0, len(cfg.Views))
	closeAll := func(files []*os.File) {
		for _, f := range files {
			f.Close()
		}
	}
	for i, v := range cfg.Views {
		pool, err := framepool.New(track.Size(), viewPoolSize)
		if err != nil {
			cancel()
			return nil, err
		}
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(childEnds)
			d.closePipes()
			cancel()
			return nil, fmt.Errorf("creating %s view pipe: %w", v.Eye, err)
		}
		childEnds = append(childEnds, w)
		d.views = append(d.views, &viewPipe{
			view:   v,
			r:      r,
			pool:   pool,
			frames: make(chan readResult, 1),
		})
		tplContext.Views = append(tplContext.Views, viewContext{
			LayerID: v.LayerID,
			Eye:     v.Eye.String(),
			FD:      firstExtraFD + i,
		})
	}

	args, err := ffcmd.Render("decode", cfg.DecodeTemplate, tplContext)
	if err != nil {
		closeAll(childEnds)
		d.closePipes()
		cancel()
		return nil, err
	}

	d.proc = ffcmd.Command(ctx, "ffmpeg decode", cfg.FfmpegPath, args)
	d.proc.Cmd().ExtraFiles = childEnds
	err = d.proc.Start()
	// Child has its own copies now, parent must drop write ends in order to
	// observe EOF.
	closeAll(childEnds)
	if err != nil {
		d.closePipes()
		cancel()
		return nil, err
	}

	for _, v := range d.views {
		d.wg.Add(1)
		go func(v *viewPipe) {
			defer d.wg.Done()
			v.read(ctx)
		}(v)
	}
	return d, nil
}

// read fills pool buffers with timestamped frames until EOF, error or
// cancellation.
func (v *viewPipe) read(ctx context.Context) {
	defer close(v.frames)
	stream := mkv.NewReader(v.r)
	for {
		img, err := v.pool.Get(ctx)
		if err != nil {
			return
		}
		pts, err := stream.ReadFrame(img.Pix)
		if err == io.EOF {
			_ = v.pool.Put(img)
			return
		}
		if err != nil {
			_ = v.pool.Put(img)
			err = fmt.Errorf("reading %s view frame: %w", v.view.Eye, err)
			select {
			case v.frames <- readResult{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case v.frames <- readResult{img: img, pts: pts}:
		case <-ctx.Done():
			return
		}
	}
}

// ReadSample implements sampleReader. A sample collects frames of all views
// sharing the earliest pending timestamp, views without a frame at that
// timestamp are absent from it.
func (d *ffmpegDecoder) ReadSample(ctx context.Context) (stereo.Sample, error) {
	if d.finished {
		return stereo.Sample{}, io.EOF
	}

	var first *viewPipe
	for _, v := range d.views {
		if v.head == nil && !v.ended {
			select {
			case res, ok := <-v.frames:
				if !ok {
					v.ended = true
					break
				}
				if res.err != nil {
					return stereo.Sample{}, d.fail(res.err)
				}
				v.head = &res
			case <-ctx.Done():
				return stereo.Sample{}, ctx.Err()
			}
		}
		if v.head != nil && (first == nil || v.head.pts < first.head.pts) {
			first = v
		}
	}

	if first == nil {
		d.finished = true
		if err := d.proc.Wait(); err != nil {
			return stereo.Sample{}, &stereo.DecodeError{Err: err}
		}
		return stereo.Sample{}, io.EOF
	}

	smp := stereo.Sample{PTS: first.head.pts, Parts: make([]stereo.TaggedBuffer, 0, len(d.views))}
	for _, v := range d.views {
		if v.head == nil || v.head.pts != smp.PTS {
			continue
		}
		smp.Parts = append(smp.Parts, stereo.TaggedBuffer{
			LayerID: v.view.LayerID,
			Eye:     v.view.Eye,
			Image:   v.head.img,
		})
		v.head = nil
	}
	return smp, nil
}

// fail stops decoder after a transport error. Exit status of ffmpeg, when it
// failed, is more informative than the pipe error.
func (d *ffmpegDecoder) fail(err error) error {
	d.finished = true
	// Closing read ends makes a still running ffmpeg exit on EPIPE.
	d.closePipes()
	werr := d.proc.Wait()
	d.cancel()
	var runErr *ffcmd.RunError
	if errors.As(werr, &runErr) && runErr.Stderr != "" {
		return &stereo.DecodeError{Err: fmt.Errorf("%w: %s", err, runErr)}
	}
	return &stereo.DecodeError{Err: err}
}

// Release implements sampleReader.
func (d *ffmpegDecoder) Release(parts []stereo.TaggedBuffer) {
	for _, p := range parts {
		for _, v := range d.views {
			if v.view.LayerID == p.LayerID && v.view.Eye == p.Eye {
				if err := v.pool.Put(p.Image); err != nil {
					logging.Debugf("Releasing %s view buffer: %s", p.Eye, err)
				}
				break
			}
		}
	}
}

// Close implements sampleReader. A decoder that has not reached end of stream
// is killed. Outcome of decoding is reported by ReadSample, so Close itself
// does not fail.
func (d *ffmpegDecoder) Close() error {
	d.closeOnce.Do(func() {
		if !d.finished {
			d.proc.Kill()
		}
		d.cancel()
		d.closePipes()
		d.wg.Wait()
	})
	return nil
}

func (d *ffmpegDecoder) closePipes() {
	for _, v := range d.views {
		v.r.Close()
	}
}
