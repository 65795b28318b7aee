// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Helpers to build and run ffmpeg family commands.
package ffcmd

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/google/shlex"
)

// Templates may use {{quote .Field}} for values that can contain whitespace or
// quotes, e.g. file paths.
var funcs = template.FuncMap{
	"quote": Quote,
}

// Render executes command template tpl with given context and splits the
// result into command line arguments the way a POSIX shell would.
//
// Template context requires a struct with exported fields.
func Render(name, tpl string, data any) ([]string, error) {
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, fmt.Errorf("Render() parse %s template: %w", name, err)
	}

	var cmd strings.Builder
	if err := t.Execute(&cmd, data); err != nil {
		return nil, fmt.Errorf("Render() execute %s template: %w", name, err)
	}

	args, err := shlex.Split(cmd.String())
	if err != nil {
		return nil, fmt.Errorf("Render() prepare %s command: %w", name, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("Render() %s template produced empty command", name)
	}
	return args, nil
}

// Check reports whether tpl is a syntactically valid command template.
func Check(name, tpl string) error {
	if _, err := template.New(name).Funcs(funcs).Parse(tpl); err != nil {
		return fmt.Errorf("Check() parse %s template: %w", name, err)
	}
	return nil
}

// Quote wraps s in single quotes so that it survives splitting as one
// argument.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
