// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Derivation of output file names from input file names.
package naming

import (
	"path/filepath"
	"strings"
)

// AnaglyphSuffix is appended to input file stem to name the output.
const AnaglyphSuffix = " Anaglyph"

// OutputPath returns path of anaglyph rendition of input, placed next to it:
//
//	<dir>/<stem>.<ext> -> <dir>/<stem> Anaglyph.<ext>
func OutputPath(input string) string {
	return WithSuffix(input, AnaglyphSuffix)
}

// WithSuffix inserts suffix between stem and extension of file path p.
func WithSuffix(p, suffix string) string {
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	// Dot files like ".mov" have no stem, keep whole name as stem.
	if ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+suffix+ext)
}
