// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Main entrypoint for anaglyph application

package main

import (
	"fmt"
	"os"

	"github.com/evolution-gaming/anaglyph/internal/logging"
)

const usage = `Anaglyph - spatial video to red/cyan anaglyph converter

Usage:

    anaglyph [command] [arguments] [-h|-help]

The commands are:

    convert     convert spatial video into anaglyph video (default command)
    probe       print metadata of video track used for conversion
    dump-conf   output actual application configuration
    version     print anaglyph version and exit

Use "anaglyph <command> -h|-help" for more information about command.
Without a command, arguments are passed to "convert":

    anaglyph path/to/video.mov`

// root represents top level of anaglyph command, including dispatching to subcommands.
func root(args []string) error {
	if len(args) < 1 {
		fmt.Println(usage)
		return usageError("please, specify spatial video file")
	}

	switch args[0] {
	case "convert":
		return CreateConvertCommand().Run(args[1:])
	case "probe":
		return CreateProbeCommand().Run(args[1:])
	case "dump-conf", "dump":
		return CreateDumpConfCommand().Run(args[1:])
	case "version":
		printVersion(os.Stdout)
		return nil
	case "-h", "-help", "--help", "?", "help":
		fmt.Println(usage)
		return &AppError{
			exitCode: 2,
		}
	default:
		// Anything else is input file or convert flags.
		return CreateConvertCommand().Run(args)
	}
}

func main() {
	// Enable info logger by default and early enough.
	logging.EnableInfoLogger()

	if err := root(os.Args[1:]); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "%v\n", msg)
		}
		switch e := err.(type) {
		case *AppError:
			os.Exit(e.ExitCode())
		default:
			os.Exit(1)
		}
	}
	os.Exit(0)
}
