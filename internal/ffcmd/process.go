// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ffcmd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/evolution-gaming/anaglyph/internal/logging"
	"github.com/evolution-gaming/anaglyph/internal/lw"
)

// How much of subprocess stderr output to retain.
const stderrBufferSize = 64 * 1024

var ErrNotStarted = errors.New("process not started")

// RunError is returned when subprocess fails, it carries the tail of
// subprocess stderr output.
type RunError struct {
	Name   string
	Err    error
	Stderr string
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Name, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ":\n" + s
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Process is a single ffmpeg family subprocess.
type Process struct {
	name   string
	cmd    *exec.Cmd
	stderr *lw.LimitedWriter
	start  time.Time

	waitOnce sync.Once
	waitErr  error
	stats    UsageStat
}

// Command prepares Process for execution. Returned Process's Cmd() can be
// used to attach pipes before Start().
func Command(ctx context.Context, name, exePath string, args []string) *Process {
	p := &Process{
		name:   name,
		cmd:    exec.CommandContext(ctx, exePath, args...), //#nosec G204
		stderr: lw.LimitWriter(stderrBufferSize),
	}
	p.cmd.Stderr = p.stderr
	return p
}

// Cmd returns underlying command.
func (p *Process) Cmd() *exec.Cmd {
	return p.cmd
}

// Start starts the subprocess.
func (p *Process) Start() error {
	logging.Debugf("Running %s: %s", p.name, p.cmd)
	p.start = time.Now()
	if err := p.cmd.Start(); err != nil {
		return &RunError{Name: p.name, Err: err}
	}
	return nil
}

// Wait waits for subprocess to exit. It is safe to call Wait multiple times,
// subsequent calls return the result of the first one.
func (p *Process) Wait() error {
	if p.cmd.Process == nil {
		return &RunError{Name: p.name, Err: ErrNotStarted}
	}
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if p.cmd.ProcessState != nil {
			usage, _ := p.cmd.ProcessState.SysUsage().(*syscall.Rusage)
			p.stats = NewUsageStat(time.Since(p.start), usage)
		}
		if err != nil {
			p.waitErr = &RunError{Name: p.name, Err: err, Stderr: p.stderr.String()}
			return
		}
		logging.Debugf("%s done in %s", p.name, p.stats.HElapsed)
	})
	return p.waitErr
}

// Kill terminates a running subprocess and reaps it.
func (p *Process) Kill() {
	if p.cmd.Process == nil {
		return
	}
	// Error is irrelevant here: process might have exited already.
	_ = p.cmd.Process.Kill()
	_ = p.Wait()
}

// Stderr returns retained tail of subprocess stderr output.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Stats returns resource usage of exited subprocess.
func (p *Process) Stats() UsageStat {
	return p.stats
}

// UsageStat contains process resource usage stats.
type UsageStat struct {
	// Human friendly representations of time duration
	HStime   string
	HUtime   string
	HElapsed string
	// time.Duration is nanoseconds
	Stime   time.Duration
	Utime   time.Duration
	Elapsed time.Duration
	// MaxRss is KB
	MaxRss int64
}

// NewUsageStat will create UsageStat instance. Rusage may be nil on platforms
// that do not report it.
func NewUsageStat(elapsed time.Duration, rusage *syscall.Rusage) UsageStat {
	s := UsageStat{
		Elapsed:  elapsed,
		HElapsed: elapsed.String(),
	}
	if rusage == nil {
		return s
	}
	s.Stime = time.Duration(syscall.TimevalToNsec(rusage.Stime))
	s.Utime = time.Duration(syscall.TimevalToNsec(rusage.Utime))
	s.HStime = s.Stime.String()
	s.HUtime = s.Utime.String()
	s.MaxRss = rusage.Maxrss
	return s
}

// CPUPercent calculates CPU usage in percent.
func (s *UsageStat) CPUPercent() float64 {
	if s.Elapsed == 0 {
		return 0
	}
	return float64(s.Stime+s.Utime) / float64(s.Elapsed) * 100
}
