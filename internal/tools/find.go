// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tools

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrToolNotFound is returned when executable is neither overridden nor in $PATH.
var ErrToolNotFound = errors.New("tool not found")

// FindTool looks up exeName in $PATH. A path in overrideEnvVar takes
// precedence, as long as it points to an executable file.
func FindTool(exeName, overrideEnvVar string) (string, error) {
	if overrideEnvVar != "" {
		if p := os.Getenv(overrideEnvVar); p != "" && isExecutable(p) {
			return p, nil
		}
	}

	if p, err := exec.LookPath(exeName); err == nil {
		return p, nil
	}

	if overrideEnvVar == "" {
		return "", fmt.Errorf("%s: %w", exeName, ErrToolNotFound)
	}
	return "", fmt.Errorf("%s: %w (install it or set %s)", exeName, ErrToolNotFound, overrideEnvVar)
}

func isExecutable(p string) bool {
	fi, err := os.Stat(p)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}
