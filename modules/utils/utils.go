/*
Copyright © 2026 The emk authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package utils is emk's always-available reference module: a small set
// of helpers build descriptions reach for constantly (copy a file,
// register cleanup targets, shell out to a subprocess), grounded on
// original_source/modules/utils.py's copy_rule/clean_rule/call.
package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"emk.build/emk/engine"
)

func init() {
	engine.RegisterModule("utils", func(parent engine.ModuleInstance) engine.ModuleInstance {
		return &Module{}
	})
}

// Module is the utils module instance bound into every scope that
// requires it; it carries no per-scope state of its own, so strong and
// weak binding behave identically.
type Module struct{}

func (m *Module) Name() string { return "utils" }

// Call runs name with args in dir, raising a *BuildError on a nonzero
// exit unless noExit is set — the Go analog of utils.py's call(), using
// os/exec since the core spec deliberately leaves subprocess execution
// unspecified and no example repo in the pack wraps os/exec with a
// third-party process-running library.
func Call(dir string, noExit bool, name string, args ...string) error {
	_, err := CallOutput(dir, noExit, name, args...)
	return err
}

// CallOutput is Call, additionally returning the combined stdout+stderr
// text with surrounding whitespace trimmed — used by modules that need a
// subprocess's output, not just its exit status (modules/revision's git
// rev-parse).
func CallOutput(dir string, noExit bool, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &out)
	cmd.Stderr = io.MultiWriter(os.Stderr, &out)
	err := cmd.Run()
	text := strings.TrimSpace(out.String())
	if err != nil && !noExit {
		return text, &engine.BuildError{
			Kind: engine.ErrRuleExecutionFailure,
			Msg:  fmt.Sprintf("command failed: %s %v: %v\n%s", name, args, err, text),
		}
	}
	return text, nil
}

// CopyFile copies src to dst, touching dst's mtime. If dst already
// exists with identical content, the caller should mark it untouched via
// (*engine.Rule).MarkUntouched so the cache doesn't treat the touch as a
// real change, matching copy_rule's filecmp.cmp-based skip.
func CopyFile(src, dst string) (identical bool, err error) {
	if same, err := sameContent(src, dst); err == nil && same {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return false, err
	}
	return false, nil
}

func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, nil
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}
	af, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	bf, err := os.ReadFile(b)
	if err != nil {
		return false, nil
	}
	return bytes.Equal(af, bf), nil
}

// CopyRule registers a rule copying src to dst within scope s, via the
// engine's Rule API, marking dst untouched when its content didn't
// actually change.
func CopyRule(e *engine.Engine, s *engine.Scope, dst, src string) error {
	return e.Rule(s, []string{dst}, []string{src}, func(ctx *engine.RunContext, produces, requires []string) error {
		identical, err := CopyFile(requires[0], produces[0])
		if err != nil {
			return err
		}
		if identical {
			ctx.MarkUntouched(produces[0])
		}
		return nil
	}, engine.RuleOpts{ThreadSafe: true})
}

// CleanRule attaches a cleanup rule to scope s's "clean" alias that
// removes every path matching any of patterns (doublestar globs,
// resolved relative to s), the Go analog of utils.py's clean_rule using
// doublestar/v4 instead of glob.glob.
func CleanRule(e *engine.Engine, s *engine.Scope, patterns []string) error {
	name := "clean$" + s.Dir
	if err := e.Rule(s, []string{name}, []string{engine.AlwaysBuildPath}, func(ctx *engine.RunContext, produces, requires []string) error {
		ctx.MarkVirtual(produces[0])
		return doCleanup(s.Dir, patterns)
	}, engine.RuleOpts{ThreadSafe: true, ExSafe: true}); err != nil {
		return err
	}
	return e.Attach(s, "clean", []string{name})
}

func doCleanup(dir string, patterns []string) error {
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return err
		}
		for _, m := range matches {
			full := filepath.Join(dir, m)
			if err := os.RemoveAll(full); err != nil {
				return err
			}
		}
	}
	return nil
}
