// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of anaglyph application and subcommand infrastructure.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/evolution-gaming/anaglyph/internal/stereo"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
	Name() string
	Help()
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// usageError creates AppError for command line misuse.
func usageError(msg string) *AppError {
	return &AppError{exitCode: 2, msg: msg}
}

// runtimeError converts failure of a conversion run into AppError with a
// message telling which side of the pipeline failed.
func runtimeError(err error) *AppError {
	var (
		inputErr    *stereo.InputValidationError
		decodeErr   *stereo.DecodeError
		encodeErr   *stereo.EncodeError
		resourceErr *stereo.ResourceError
	)
	var msg string
	switch {
	case errors.As(err, &inputErr):
		msg = fmt.Sprintf("cannot convert %s: %s", inputErr.Path, inputErr.Err)
	case errors.As(err, &decodeErr):
		msg = fmt.Sprintf("reading spatial video failed: %s", decodeErr.Err)
	case errors.As(err, &encodeErr):
		msg = fmt.Sprintf("writing anaglyph video failed: %s", encodeErr.Err)
	case errors.As(err, &resourceErr):
		msg = fmt.Sprintf("out of frame buffers: %s", resourceErr.Err)
	default:
		msg = err.Error()
	}
	return &AppError{exitCode: 1, msg: msg}
}

// printSubCommandUsage helper to format and print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// fileExists checks that regular file exists at path p.
func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
