// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application version related functionality.
//
// Version either comes from -ldflags="-X main.version={ver}" or, for binaries built with
// "go install", from debug.BuildInfo.

package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Injected during build.
	version string
	vInfo   = readVersionInfo(version, debug.ReadBuildInfo)
)

// versionInfo holds application build identity.
type versionInfo struct {
	time      time.Time
	version   string
	revision  string
	goVersion string
	modified  bool
}

// readVersionInfo merges injected version with what build info reports.
func readVersionInfo(injected string, read func() (*debug.BuildInfo, bool)) versionInfo {
	v := versionInfo{version: injected}
	bi, ok := read()
	if !ok {
		return v
	}
	if v.version == "" {
		v.version = bi.Main.Version
	}
	v.goVersion = bi.GoVersion

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time, _ = time.Parse(time.RFC3339, s.Value)
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

func (v versionInfo) String() string {
	parts := []string{v.version}
	if v.revision != "" {
		rev := v.revision
		if v.modified {
			rev += "-dirty"
		}
		parts = append(parts, rev)
	}
	if !v.time.IsZero() {
		parts = append(parts, v.time.UTC().Format(time.DateOnly))
	}
	if v.goVersion != "" {
		parts = append(parts, v.goVersion)
	}
	return strings.Join(parts, " ")
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, vInfo)
}

