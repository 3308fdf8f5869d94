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

package engine

import (
	"os"
	"path/filepath"
)

// RulesFileName and the two marker files a directory may carry are fixed
// by convention, matching the original source's emk_rules.py / .emk_proj
// / .emk_subproj.
const (
	RulesFileName  = "emk_rules.go"
	ProjMarkerFile = ".emk_proj"
	SubprojMarker  = ".emk_subproj"
)

// BuildFunc is a directory's build description: the Go analog of an
// emk_rules.py module-level script. Build descriptions register
// themselves against a directory-keyed table (see RegisterRulesFile)
// since this redesign drops dynamic import of arbitrary scripts.
type BuildFunc func(e *Engine, s *Scope) error

var rulesFiles = map[string]BuildFunc{}

// RegisterRulesFile binds a directory's build description. Real projects
// call this from an init() in a small per-directory Go file, the static
// substitute for an importable emk_rules.py (§4.5's "no dynamic import"
// redesign).
func RegisterRulesFile(dir string, fn BuildFunc) {
	rulesFiles[filepath.Clean(dir)] = fn
}

// handleDir is component D: visit dir, binding the scope's modules and
// running its build description if one is registered. dir is a project
// root when it holds ProjMarkerFile itself or has no parent scope;
// ancestors are not searched for markers, and SubprojMarker is not
// checked, so no scope is marked as a subproject root here.
func (e *Engine) handleDir(dir string, parent *Scope) (*Scope, error) {
	dir = filepath.Clean(dir)

	e.mu.Lock()
	if s, ok := e.scopes[dir]; ok {
		e.mu.Unlock()
		return s, nil
	}
	e.mu.Unlock()

	s := newScope(dir, parent)
	s.IsProj = fileExists(filepath.Join(dir, ProjMarkerFile)) || parent == nil
	s.ProjDir = dir
	if parent != nil && !s.IsProj {
		s.ProjDir = parent.ProjDir
	}
	s.BuildDir = dir

	e.mu.Lock()
	e.scopes[dir] = s
	e.knownBuildDirs[dir] = s.BuildDir
	e.mu.Unlock()

	for _, name := range e.opts.ModulePaths {
		if _, err := e.bindModule(s, name, false); err != nil {
			return nil, err
		}
	}

	if build, ok := rulesFiles[dir]; ok {
		if err := build(e, s); err != nil {
			return nil, err
		}
	}

	if err := e.runPostRules(s); err != nil {
		return nil, err
	}

	return s, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
