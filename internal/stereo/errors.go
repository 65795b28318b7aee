// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stereo

import (
	"errors"
	"fmt"
)

var ErrViewMismatch = errors.New("stereo views differ in size")

// InputValidationError is returned when input can not be processed at all,
// e.g. container has no video track. It is reported before any output is
// created.
type InputValidationError struct {
	Path string
	Err  error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Path, e.Err)
}

func (e *InputValidationError) Unwrap() error {
	return e.Err
}

// DecodeError wraps failures of the decoding side: demuxer, decoder or the raw
// frame transport.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError wraps failures of the encoding side: encoder, muxer or the raw
// frame transport.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode: %s", e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// ResourceError is returned when an output pixel buffer can not be obtained.
// It is fatal: skipping a frame would break timestamp continuity.
type ResourceError struct {
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %s", e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
