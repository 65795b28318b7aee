// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// A naìve LimitedWriter implementation that retains only the most recent N
// bytes written to it.
//
// Subprocess stderr is copied into it: the interesting part of ffmpeg output
// is usually at the end, and a runaway process must not be able to grow
// memory without bound. Unlike io.LimitedReader's counterpart, overflow is not
// an error, since failing a write would stall the subprocess writing into a
// full pipe.
package lw

import (
	"io"
	"sync"
)

type LimitedWriter struct {
	mu sync.Mutex
	// Limit value, zero means nothing is retained
	n   uint
	buf []byte
	// Number of bytes dropped from the front
	dropped uint64
}

// Write implements io.Writer for *LimitedWriter. It never fails.
func (s *LimitedWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == 0 {
		s.dropped += uint64(len(b))
		return len(b), nil
	}

	s.buf = append(s.buf, b...)
	if over := len(s.buf) - int(s.n); over > 0 {
		s.dropped += uint64(over)
		// Shift in place so the backing array does not grow past the limit
		// more than once.
		copy(s.buf, s.buf[over:])
		s.buf = s.buf[:s.n]
	}
	return len(b), nil
}

// Bytes returns a copy of retained data.
func (s *LimitedWriter) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

func (s *LimitedWriter) String() string {
	return string(s.Bytes())
}

// Truncated reports whether any data has been dropped.
func (s *LimitedWriter) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped > 0
}

// LimitWriter returns a LimitedWriter retaining at most n trailing bytes.
func LimitWriter(n uint) *LimitedWriter {
	return &LimitedWriter{n: n}
}

var _ io.Writer = (*LimitedWriter)(nil)
