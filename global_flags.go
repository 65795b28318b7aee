// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/evolution-gaming/anaglyph/internal/logging"
)

// globalFlags are flags shared by all subcommands.
type globalFlags struct {
	ConfFile string
	Debug    bool
}

func (g *globalFlags) Register(fs *flag.FlagSet) {
	fs.BoolVar(&g.Debug, "debug", false, "Enable debug logging (optional)")
	fs.StringVar(&g.ConfFile, "conf", "", "Application configuration file path (optional)")
}

// Apply enables loggers requested by flags. Call after flag parsing.
func (g *globalFlags) Apply() {
	if g.Debug {
		logging.EnableDebugLogger()
	}
}
