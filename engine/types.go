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

// RuleFunc is the body a build description attaches to a rule: it receives
// a RunContext (valid only for the duration of this call, per §6.2's
// "mark_untouched/mark_virtual are only valid inside a running rule") plus
// the concrete lists of products and requirements (placeholders already
// resolved), and does the actual work. A nil error means success; a
// returned *BuildError keeps its Kind and Extra lines, and the engine does
// not add the rule's declaration traceback to it.
type RuleFunc func(ctx *RunContext, produces, requires []string) error

// RunContext is the handle a running rule body uses to affect its own
// execution bookkeeping: marking one of its own products untouched, or
// declaring a path (its own or another rule's) virtual. It is only valid
// for the lifetime of the RuleFunc call it was passed to.
type RunContext struct {
	e *Engine
	r *Rule
}

// MarkUntouched records that path (one of this rule's own products)
// didn't actually change even though the rule ran, so the cache won't
// treat its fresh mtime as a real change next run.
func (c *RunContext) MarkUntouched(path string) {
	c.r.MarkUntouched(path)
}

// MarkVirtual marks path as a virtual product with no on-disk
// representation, per §4.2.
func (c *RunContext) MarkVirtual(path string) {
	c.e.MarkVirtual(path)
}

// Rule is one node of the build graph: a function that turns some
// requirements into some products. Rules are declared against a Scope and
// keep that scope's directory as their working directory at execution time
// unless ThreadSafe is set.
type Rule struct {
	Scope      *Scope
	Produces   []string
	Requires   []string
	Secondary  []string
	Func       RuleFunc
	ThreadSafe bool // cwd-safe: may run on any worker
	ExSafe     bool // tolerates partial execution; stored only, the scheduler does not read it
	Declared   []string

	// runtime bookkeeping, populated during reconciliation
	attached     []string
	weakRequires []string
	pending      int
	built        bool
	failed       error
	untouched    map[string]bool
}

// Alias maps a name to a set of targets; requiring the alias name is
// equivalent to requiring all of those targets once fully expanded.
type Alias struct {
	Scope   *Scope
	Targets []string
}

// Target is a node the graph reasons about: either something a Rule
// produces, or a leaf (source file / always-build sentinel) with no
// producing rule.
type Target struct {
	Path         string
	ProducedBy   *Rule
	RequiredBy   map[*Rule]bool
	Virtual      bool
	AutoBuilt    bool
	ChangedCache bool
	changedKnown bool
}

// Scope represents one directory's worth of build state: the directory
// itself, its resolved project/build dirs, the rules/aliases/modules
// declared in it, and a link to its parent scope in the hierarchy.
type Scope struct {
	Dir      string
	ProjDir  string
	BuildDir string
	Parent   *Scope
	IsProj   bool // true if Dir marks a project root

	Rules      []*Rule
	Aliases    map[string][]string
	AutoTargets []string

	modules     map[string]ModuleInstance
	weakModules map[string]ModuleInstance

	prebuild  []func() error
	postbuild []func() error
	dolater   []func() error

	cache *DirCache
}

func newScope(dir string, parent *Scope) *Scope {
	return &Scope{
		Dir:         dir,
		Parent:      parent,
		Aliases:     make(map[string][]string),
		modules:     make(map[string]ModuleInstance),
		weakModules: make(map[string]ModuleInstance),
	}
}
