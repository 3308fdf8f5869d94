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
	"strings"
)

// ProjDirPlaceholder and BuildDirPlaceholder are the two tokens a
// user-supplied path may start with; see component A.
const (
	ProjDirPlaceholder  = "$:proj:$"
	BuildDirPlaceholder = "$:build:$"

	// AlwaysBuildPath is the sentinel dependency value that is always
	// considered changed (the "Always-Build Token").
	AlwaysBuildPath = "\x00emk:always-build\x00"
)

func makeAbspath(relPath string, scope *Scope) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(scope.Dir, relPath)
}

// makeTargetAbspath computes a "target abspath": $:proj:$ and $:build:$ are
// both substituted immediately using the declaring scope's current values,
// the result is joined against the scope dir if relative, and canonicalized.
func makeTargetAbspath(relPath string, scope *Scope) string {
	if relPath == AlwaysBuildPath {
		return AlwaysBuildPath
	}
	if strings.HasPrefix(relPath, ProjDirPlaceholder) {
		relPath = strings.Replace(relPath, ProjDirPlaceholder, scope.ProjDir, 1)
	}
	relPath = strings.ReplaceAll(relPath, BuildDirPlaceholder, scope.BuildDir)
	abs := makeAbspath(relPath, scope)
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return filepath.Clean(abs)
}

// makeRequireAbspath computes a "require abspath": $:build:$ is left in
// place for resolveBuildDirs to expand. RequireRule calls resolveBuildDirs
// right after this, at declaration time, so only directories visited
// before the declaration have a known build dir.
func makeRequireAbspath(relPath string, scope *Scope) string {
	if relPath == AlwaysBuildPath {
		return AlwaysBuildPath
	}
	if strings.HasPrefix(relPath, ProjDirPlaceholder) {
		relPath = strings.Replace(relPath, ProjDirPlaceholder, scope.ProjDir, 1)
	}
	return makeAbspath(relPath, scope)
}

// resolveBuildDirs fixes up any remaining $:build:$ placeholders in a set
// of require-abspaths, using the table of build dirs recorded for each
// directory visited so far. Returns UnresolvedBuildDir if a placeholder's
// directory hasn't been visited (and so has no known build dir) yet.
func (e *Engine) resolveBuildDirs(paths []string) ([]string, error) {
	updated := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == AlwaysBuildPath {
			updated = append(updated, p)
			continue
		}
		idx := strings.Index(p, BuildDirPlaceholder)
		if idx < 0 {
			updated = append(updated, p)
			continue
		}
		begin := p[:idx]
		end := p[idx+len(BuildDirPlaceholder):]
		dir := filepath.Dir(begin)
		buildDir, ok := e.knownBuildDirs[dir]
		if !ok {
			return nil, newBuildError(ErrUnresolvedBuildDir,
				"Could not resolve "+BuildDirPlaceholder+" for path "+p)
		}
		updated = append(updated, begin+buildDir+end)
	}
	return updated, nil
}

// statExists is a small os.Stat wrapper used where the graph only cares
// whether a path exists on disk, not its mtime.
func statExists(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
