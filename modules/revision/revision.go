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

// Package revision is a reference module grounded verbatim on
// original_source/tutorial/5_modules/modules/revision.py: a weak,
// parent-inheriting module that shells out to git to produce a
// revision-header file, demonstrating weak-module promotion (§4.5), the
// per-scope-type LoadScope hook (§4.4), and probing a rule's own cached
// "other" blob with engine.ProbeOther to decide whether the header's
// content actually changed.
package revision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"emk.build/emk/engine"
	"emk.build/emk/modules/utils"
)

func init() {
	engine.RegisterModule("revision", func(parent engine.ModuleInstance) engine.ModuleInstance {
		m := &Module{HeaderName: "revision.h"}
		if p, ok := parent.(*Module); ok {
			m.HeaderName = p.HeaderName
		}
		return m
	})
}

// Module generates a revision.h-style header containing the current git
// revision, regenerated whenever HEAD moves. It inherits its HeaderName
// from a parent scope's binding unless overridden, matching the
// original's class-attribute-inheritance style.
type Module struct {
	HeaderName string
	scope      *engine.Scope
}

func (m *Module) Name() string { return "revision" }

// LoadScope records the scope this instance is bound into so PostRules
// (run after every module in the scope has loaded) can declare the
// revision rule against it.
func (m *Module) LoadScope(e *engine.Engine, s *engine.Scope, kind engine.ScopeKind) error {
	m.scope = s
	return nil
}

// PostRules declares the rule producing HeaderName from the repository's
// HEAD, requiring modules/utils (already bound by the time PostRules
// runs, per the loader's module-then-postrules ordering) to run git.
func (m *Module) PostRules(e *engine.Engine, s *engine.Scope) error {
	if _, err := e.Module(s, "utils"); err != nil {
		return err
	}
	header := e.Abspath(s, m.HeaderName)
	gitDir := s.Dir
	return e.Rule(s, []string{header}, []string{gitHeadRef(gitDir)}, func(ctx *engine.RunContext, produces, requires []string) error {
		rev, err := gitRevision(gitDir)
		if err != nil {
			return err
		}
		cached := e.RuleCache(s, produces)
		if engine.ProbeOther(cached, "rev").String() == rev {
			if _, err := os.Stat(produces[0]); err == nil {
				// same revision and header present: leave the file as it is
				ctx.MarkUntouched(produces[0])
				return nil
			}
		}
		cached["rev"] = rev
		return writeRevisionHeader(produces[0], rev)
	}, engine.RuleOpts{ThreadSafe: true})
}

// gitHeadRef resolves the path whose mtime actually changes when the
// checked-out commit changes: .git/HEAD, or the ref file it points to
// when HEAD is a symbolic ref, matching git's own layout.
func gitHeadRef(dir string) string {
	gitDir := filepath.Join(dir, ".git")
	headPath := filepath.Join(gitDir, "HEAD")
	data, err := os.ReadFile(headPath)
	if err != nil {
		return engine.AlwaysBuildPath
	}
	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, "ref: ") {
		ref := strings.TrimPrefix(line, "ref: ")
		return filepath.Join(gitDir, ref)
	}
	return headPath
}

func writeRevisionHeader(out, rev string) error {
	content := fmt.Sprintf("#ifndef EMK_REVISION_H\n#define EMK_REVISION_H\n\n#define EMK_REVISION \"%s\"\n\n#endif\n", rev)
	return os.WriteFile(out, []byte(content), 0o644)
}

func gitRevision(dir string) (string, error) {
	return utils.CallOutput(dir, false, "git", "rev-parse", "--short", "HEAD")
}
