// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tools

import (
	"os"
	"path"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindTool(t *testing.T) {
	binDir := t.TempDir()
	exePath := path.Join(binDir, "fakeprobe")
	require.NoError(t, os.WriteFile(exePath, []byte("#!/bin/sh\n"), 0o755))
	plainPath := path.Join(binDir, "notexecutable")
	require.NoError(t, os.WriteFile(plainPath, []byte("data"), 0o644))

	tests := map[string]struct {
		env     map[string]string
		exeName string
		envVar  string
		want    string
	}{
		"Override via env var": {
			env:     map[string]string{"CUSTOM_EXE_PATH": exePath},
			exeName: "nonexistent-anaglyph-tool",
			envVar:  "CUSTOM_EXE_PATH",
			want:    exePath,
		},
		"Override to missing file falls back to PATH": {
			env:     map[string]string{"CUSTOM_EXE_PATH": path.Join(binDir, "missing"), "PATH": binDir},
			exeName: "fakeprobe",
			envVar:  "CUSTOM_EXE_PATH",
			want:    exePath,
		},
		"Override to non-executable falls back to PATH": {
			env:     map[string]string{"CUSTOM_EXE_PATH": plainPath, "PATH": binDir},
			exeName: "fakeprobe",
			envVar:  "CUSTOM_EXE_PATH",
			want:    exePath,
		},
		"Lookup in PATH": {
			env:     map[string]string{"PATH": binDir + ":" + os.Getenv("PATH")},
			exeName: "fakeprobe",
			want:    exePath,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := FindTool(tt.exeName, tt.envVar)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindTool() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindTool_Negative(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	got, err := FindTool("nonexistent-anaglyph-tool", "")
	assert.Empty(t, got)
	assert.ErrorIs(t, err, ErrToolNotFound)

	t.Setenv("CUSTOM_EXE_PATH", "")
	_, err = FindTool("nonexistent-anaglyph-tool", "CUSTOM_EXE_PATH")
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.ErrorContains(t, err, "set CUSTOM_EXE_PATH")
}
