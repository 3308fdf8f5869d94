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

// This file is component H: the public API build descriptions and
// modules call against a Scope, mirroring the original's emk.* module
// functions (emk.rule, emk.alias, emk.depend, ...).
package engine

import "path/filepath"

// RuleOpts carries the optional parts of a rule declaration
// (secondary/weak/attached deps, thread-safety flags) so Rule's required
// arguments stay short, matching the original's keyword-argument style.
type RuleOpts struct {
	Secondary    []string
	Attached     []string
	WeakRequires []string
	ThreadSafe   bool
	ExSafe       bool
}

// Rule declares a new rule in scope s: fn turns requires into produces.
// Paths are resolved as target-abspaths (placeholders expanded
// immediately) per component A.
func (e *Engine) Rule(s *Scope, produces, requires []string, fn RuleFunc, opts RuleOpts) error {
	r := &Rule{
		Scope:        s,
		Produces:     resolveAll(produces, s, makeTargetAbspath),
		Requires:     resolveAll(requires, s, makeTargetAbspath),
		Secondary:    resolveAll(opts.Secondary, s, makeTargetAbspath),
		weakRequires: resolveAll(opts.WeakRequires, s, makeTargetAbspath),
		attached:     resolveAll(opts.Attached, s, makeTargetAbspath),
		Func:         fn,
		ThreadSafe:   opts.ThreadSafe,
		ExSafe:       opts.ExSafe,
		Declared:     callerStack(2),
	}
	s.Rules = append(s.Rules, r)
	if err := e.addRule(r); err != nil {
		return err
	}
	for _, name := range r.attached {
		if err := e.addAlias(s, name, r.Produces); err != nil {
			return err
		}
	}
	return nil
}

// Alias declares name as an alias for targets within scope s.
func (e *Engine) Alias(s *Scope, name string, targets []string) error {
	return e.addAlias(s, name, resolveAll(targets, s, makeTargetAbspath))
}

// Depend records that each of targets requires each of requires — used
// to attach extra dependencies to a rule declared earlier, without
// redeclaring its product list.
func (e *Engine) Depend(s *Scope, targets, requires []string) {
	targets = resolveAll(targets, s, makeTargetAbspath)
	requires = resolveAll(requires, s, makeTargetAbspath)
	for _, tp := range targets {
		t := e.target(tp)
		if t.ProducedBy == nil {
			continue
		}
		t.ProducedBy.Requires = append(t.ProducedBy.Requires, requires...)
		for _, rp := range requires {
			rt := e.target(rp)
			e.mu.Lock()
			rt.RequiredBy[t.ProducedBy] = true
			e.mu.Unlock()
		}
	}
}

// WeakDepend is Depend for weak dependencies: they affect change
// detection but don't gate execution ordering.
func (e *Engine) WeakDepend(s *Scope, targets, requires []string) {
	targets = resolveAll(targets, s, makeTargetAbspath)
	requires = resolveAll(requires, s, makeTargetAbspath)
	for _, tp := range targets {
		t := e.target(tp)
		if t.ProducedBy == nil {
			continue
		}
		t.ProducedBy.weakRequires = append(t.ProducedBy.weakRequires, requires...)
	}
}

// Attach registers name as an alias that also includes targets, used for
// attaching extra cleanup/output targets to an existing alias such as
// "clean" (utils.CleanRule uses this).
func (e *Engine) Attach(s *Scope, name string, targets []string) error {
	targets = resolveAll(targets, s, makeTargetAbspath)
	e.mu.Lock()
	byName, ok := e.aliasTargets[s.Dir]
	if !ok {
		byName = make(map[string][]string)
		e.aliasTargets[s.Dir] = byName
	}
	byName[name] = append(byName[name], targets...)
	e.mu.Unlock()
	return nil
}

// Autobuild marks targets to be required automatically by this scope's
// implicit "build everything here" target, without needing an explicit
// alias or CLI target name.
func (e *Engine) Autobuild(s *Scope, targets []string) {
	s.AutoTargets = append(s.AutoTargets, resolveAll(targets, s, makeTargetAbspath)...)
}

// RequireRule is the require-abspath counterpart to Rule/Depend: its
// $:build:$ placeholders are expanded by resolveBuildDirs at declaration
// time, from the build dirs of the directories visited so far. Expansion
// is not postponed: a placeholder whose directory has not been visited yet
// fails at once with UnresolvedBuildDir.
func (e *Engine) RequireRule(s *Scope, targets, requires []string) error {
	targets = resolveAll(targets, s, makeTargetAbspath)
	raw := resolveAll(requires, s, makeRequireAbspath)
	resolved, err := e.resolveBuildDirs(raw)
	if err != nil {
		return err
	}
	e.Depend(s, targets, resolved)
	return nil
}

// RebuildIfChanged opts paths into mutation detection on their own
// behalf: each path must already be one of some rule's products, and
// from here on, that rule reruns if the path's on-disk mtime differs from
// what was recorded the last time its rule ran —
// even when none of the rule's declared requirements changed. Per §4.2
// this only applies to non-virtual products; a virtual path named here is
// silently ignored, since a virtual product's "content" is defined by the
// rule that produced it, not by anything on disk to compare against.
func (e *Engine) RebuildIfChanged(s *Scope, paths []string) {
	resolved := resolveAll(paths, s, makeTargetAbspath)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range resolved {
		e.rebuildIfChanged[p] = true
	}
}

// Recurse visits each of subdirs (relative to s) as a child scope,
// running its build description if registered.
func (e *Engine) Recurse(s *Scope, subdirs []string) error {
	for _, sub := range subdirs {
		dir := sub
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.Dir, sub)
		}
		if _, err := e.handleDir(dir, s); err != nil {
			return err
		}
	}
	return nil
}

// Subdir is Recurse for a single subdirectory, returning its Scope.
func (e *Engine) Subdir(s *Scope, sub string) (*Scope, error) {
	dir := sub
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.Dir, sub)
	}
	return e.handleDir(dir, s)
}

// DoLater schedules fn to run once the current phase's rules have been
// examined, mirroring the original's emk.do_later.
func (e *Engine) DoLater(s *Scope, fn func() error) {
	s.dolater = append(s.dolater, fn)
}

// DoPrebuild schedules fn to run at the start of the next phase, before
// alias reconciliation and rule examination.
func (e *Engine) DoPrebuild(s *Scope, fn func() error) {
	s.prebuild = append(s.prebuild, fn)
}

// DoPostbuild schedules fn to run after the current phase's rules have
// executed.
func (e *Engine) DoPostbuild(s *Scope, fn func() error) {
	s.postbuild = append(s.postbuild, fn)
}

// MarkVirtual marks path as a virtual product: one that doesn't exist on
// disk (e.g. a marker for "rule ran"). Its missing file never forces its
// rule to rerun; consumers compare the value its rule recorded in the
// cache instead of a filesystem mtime.
func (e *Engine) MarkVirtual(path string) {
	e.target(path).Virtual = true
}

// MarkUntouched records, for the currently-executing rule, that path was
// determined not to have actually changed even though the rule ran
// (e.g. utils.CopyFile finding identical content) — so the cache won't
// treat its mtime bump as a real change next run.
func (r *Rule) MarkUntouched(path string) {
	if r.untouched == nil {
		r.untouched = make(map[string]bool)
	}
	r.untouched[path] = true
}

// Module binds (or looks up) the named module strongly against s.
func (e *Engine) Module(s *Scope, name string) (ModuleInstance, error) {
	return e.bindModule(s, name, false)
}

// WeakModule binds (or looks up) the named module weakly against s: a
// later strong Module call in the same scope promotes the weak binding to
// strong without redoing setup, mirroring the original's weak-module
// promotion rule (§4.5).
func (e *Engine) WeakModule(s *Scope, name string) (ModuleInstance, error) {
	return e.bindModule(s, name, true)
}

// InsertModule forces a pre-constructed module instance into s's strong
// module table, bypassing the registry — used by tests and by modules
// that need to parameterize their own construction.
func (e *Engine) InsertModule(s *Scope, name string, inst ModuleInstance) {
	s.modules[name] = inst
}

// RuleCache returns the persisted "other" blob for the rule that produces
// products, creating an empty one on first access. Values round-trip
// through YAML, so modules may store any JSON/YAML-safe structure
// (including one probed later with gjson after re-marshaling to JSON).
func (e *Engine) RuleCache(s *Scope, products []string) map[string]interface{} {
	if s.cache == nil {
		c, err := loadDirCache(s.Dir)
		if err != nil {
			c = newDirCache()
		}
		s.cache = c
	}
	key := ruleCacheKey(resolveAll(products, s, makeTargetAbspath))
	entry := s.cache.entry(key)
	s.cache.dirty = true
	return entry.Other
}

// ScopeCache returns the persisted scope-level (not per-rule) cache map
// for s, for module state that isn't tied to any single rule's products.
func (e *Engine) ScopeCache(s *Scope) map[string]interface{} {
	if s.cache == nil {
		c, err := loadDirCache(s.Dir)
		if err != nil {
			c = newDirCache()
		}
		s.cache = c
	}
	s.cache.dirty = true
	return s.cache.Scope
}

// Abspath resolves path against s the way a rule declaration would,
// exposed for modules that need to compute a path without declaring a
// rule around it.
func (e *Engine) Abspath(s *Scope, path string) string {
	return makeTargetAbspath(path, s)
}

func resolveAll(paths []string, s *Scope, resolver func(string, *Scope) string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolver(p, s)
	}
	return out
}
