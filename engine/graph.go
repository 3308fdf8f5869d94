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
	"context"
	"errors"
	"slices"
)

func (e *Engine) target(path string) *Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.targets[path]
	if !ok {
		t = &Target{Path: path, RequiredBy: make(map[*Rule]bool)}
		e.targets[path] = t
	}
	return t
}

// addRule registers r's products, requirements and secondary deps into
// the graph, per §4.3's "declare a rule" step; weak deps are not
// registered here. A product
// already produced by a different rule is a DuplicateRule error.
func (e *Engine) addRule(r *Rule) error {
	for _, p := range r.Produces {
		t := e.target(p)
		if t.ProducedBy != nil && t.ProducedBy != r {
			return newBuildError(ErrDuplicateRule,
				"target already has a producing rule: "+p, r.Declared...)
		}
		e.mu.Lock()
		t.ProducedBy = r
		e.mu.Unlock()
	}
	for _, req := range r.Requires {
		t := e.target(req)
		e.mu.Lock()
		t.RequiredBy[r] = true
		e.mu.Unlock()
	}
	for _, req := range r.Secondary {
		t := e.target(req)
		e.mu.Lock()
		t.RequiredBy[r] = true
		e.mu.Unlock()
	}
	return nil
}

// addAlias registers a (scope, name) -> targets mapping, deferring
// expansion to reconcileAliases since an alias may name another alias
// declared later in the same or a different scope.
func (e *Engine) addAlias(s *Scope, name string, targets []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	byName, ok := e.aliasTargets[s.Dir]
	if !ok {
		byName = make(map[string][]string)
		e.aliasTargets[s.Dir] = byName
	}
	if _, exists := byName[name]; exists {
		return newBuildError(ErrDuplicateAlias, "alias already declared: "+name)
	}
	byName[name] = targets
	return nil
}

// reconcileAliases expands every declared alias to a fixed point: an
// alias requirement that itself names another alias is replaced by that
// alias's targets (duplicates dropped), repeating until no scope's alias
// table changes. This mirrors the original's _fix_aliases pass.
func (e *Engine) reconcileAliases() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		changed := false
		for dir, byName := range e.aliasTargets {
			for name, targets := range byName {
				seen := make(map[string]bool, len(targets))
				expanded := make([]string, 0, len(targets))
				for _, t := range targets {
					next := []string{t}
					if sub, ok := byName[t]; ok && t != name {
						next = sub
					}
					for _, n := range next {
						if !seen[n] {
							seen[n] = true
							expanded = append(expanded, n)
						}
					}
				}
				if !slices.Equal(expanded, targets) {
					byName[name] = expanded
					changed = true
				}
			}
			_ = dir
		}
		if !changed {
			break
		}
	}
	return nil
}

// resolveRequirement follows an alias chain (if name is one) down to its
// concrete target paths within scope s.
func (e *Engine) resolveRequirement(s *Scope, name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveRequirementLocked(s, name)
}

// resolveRequirementLocked is resolveRequirement for callers that
// already hold e.mu.
func (e *Engine) resolveRequirementLocked(s *Scope, name string) []string {
	if s == nil {
		return []string{name}
	}
	seen := map[string]bool{}
	var resolve func(dir, n string) []string
	resolve = func(dir, n string) []string {
		if seen[dir+"\x00"+n] {
			return nil
		}
		seen[dir+"\x00"+n] = true
		byName, ok := e.aliasTargets[dir]
		if !ok {
			return []string{n}
		}
		targets, ok := byName[n]
		if !ok {
			return []string{n}
		}
		var out []string
		for _, t := range targets {
			out = append(out, resolve(dir, t)...)
		}
		return out
	}
	out := resolve(s.Dir, name)
	if len(out) == 0 {
		// an alias chain that only leads back into itself resolves to the
		// name itself, treated as an external-file target
		return []string{name}
	}
	return out
}

// examineTargets walks every rule not yet built or scheduled and decides
// which are now runnable: every one of the rule's requirements must
// either have no producing rule (a leaf — checked for existence/mtime) or
// a producing rule that has already finished successfully, and ruleChanged
// must report a change (a changed requirement, weak ones included, or a
// missing or rebuild_if_changed-modified product); an always-build
// requirement always counts as changed.
func (e *Engine) examineTargets() ([]*Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var runnable []*Rule
	for _, s := range e.scopes {
		for _, r := range s.Rules {
			if r.built || r.pending > 0 {
				continue
			}
			ready := true
			for _, req := range append(append([]string{}, r.Requires...), r.Secondary...) {
				if req == AlwaysBuildPath {
					continue
				}
				t, ok := e.targets[req]
				if !ok || t.ProducedBy == nil {
					continue // leaf target, nothing to wait on
				}
				if !t.ProducedBy.built {
					ready = false
					break
				}
				if t.ProducedBy.failed != nil {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			changed, err := e.ruleChanged(s, r)
			if err != nil {
				return nil, err
			}
			if changed {
				r.pending = 1
				runnable = append(runnable, r)
			} else {
				r.built = true
				e.recordTrace(r, false, "no requirement changed")
			}
		}
	}
	return runnable, nil
}

// ruleChanged decides whether r needs to run: true if any requirement
// (primary, secondary or weak) has a different mtime — or, for a virtual
// requirement, a different vmodtime — than the cache's last-recorded
// value; if a rebuild_if_changed product was modified out from under the
// cache; or if a non-virtual product is simply missing on disk.
func (e *Engine) ruleChanged(s *Scope, r *Rule) (bool, error) {
	if s.cache == nil {
		c, err := loadDirCache(s.Dir)
		if err != nil {
			return false, err
		}
		s.cache = c
	}
	key := ruleCacheKey(r.Produces)
	entry := s.cache.entry(key)

	all := append(append(append([]string{}, r.Requires...), r.Secondary...), r.weakRequires...)
	for _, req := range all {
		if t, ok := e.targets[req]; ok && t.Virtual {
			current, known := e.currentVirtualValue(req)
			if !known || current != entry.Mtimes[req] {
				return true, nil
			}
			continue
		}
		changed, _ := hasChanged(req, entry.Mtimes[req])
		if changed {
			return true, nil
		}
	}

	for _, p := range r.Produces {
		virtual := false
		if t, ok := e.targets[p]; ok && t.Virtual {
			virtual = true
		}
		if virtual {
			continue // no on-disk file is ever expected for a virtual product
		}
		if _, err := statExists(p); err != nil {
			return true, nil // product missing, must (re)build
		}
		if e.rebuildIfChanged[p] {
			if changed, _ := hasChanged(p, entry.Mtimes[p]); changed {
				return true, nil // product mutated out from under the cache
			}
		}
	}
	return false, nil
}

// currentVirtualValue returns the vmodtime a virtual path's producing
// rule most recently recorded into its own cache entry: the logical
// "current" value downstream rules compare their own cached copy
// against, in place of a filesystem mtime that will never exist for a
// virtual product. known is false when the path has no producing rule or
// that rule has never actually touched it.
func (e *Engine) currentVirtualValue(path string) (value int64, known bool) {
	t, ok := e.targets[path]
	if !ok || t.ProducedBy == nil {
		return 0, false
	}
	producer := t.ProducedBy
	ps := producer.Scope
	if ps.cache == nil {
		c, err := loadDirCache(ps.Dir)
		if err != nil {
			return 0, false
		}
		ps.cache = c
	}
	key := ruleCacheKey(producer.Produces)
	entry := ps.cache.entry(key)
	v, ok := entry.Mtimes[path]
	return v, ok
}

// recordRequirementMtimes snapshots each requirement's current value into
// entry: a real file's on-disk mtime, or — for a virtual requirement — the
// value its producing rule most recently recorded for itself, since
// os.Stat has nothing to report for a path with no file on disk. Recording
// the producer's own value (rather than stamping time.Now() here) is what
// lets a later build's comparison detect "no change" consistently between
// the producer and every consumer of a virtual product.
func (e *Engine) recordRequirementMtimes(entry *RuleCacheEntry, reqs []string) {
	for _, req := range reqs {
		if t, ok := e.targets[req]; ok && t.Virtual {
			if v, known := e.currentVirtualValue(req); known {
				entry.Mtimes[req] = v
			}
			continue
		}
		if mt, ok := currentMtime(req); ok {
			entry.Mtimes[req] = mt
		}
	}
}

// executeRules hands each runnable rule to the scheduler, waits for the
// batch to finish, records results into the graph and caches, and
// returns the first rule-execution error encountered (if any).
func (e *Engine) executeRules(ctx context.Context, rules []*Rule) error {
	if len(rules) == 0 {
		return nil
	}
	e.mu.Lock()
	for _, r := range rules {
		e.queue.put(&task{rule: r, produces: r.Produces, requires: r.Requires, engine: e})
	}
	e.mu.Unlock()
	if err := e.queue.join(); err != nil {
		// a task's error is already a typed *BuildError (raised by the rule
		// itself or by a post-run check like MissingProduct); preserve its
		// Kind instead of flattening every rule failure into
		// ErrRuleExecutionFailure.
		var be *BuildError
		if errors.As(err, &be) {
			return be
		}
		return wrapBuildError(ErrRuleExecutionFailure, err, err.Error())
	}
	e.queue.reset()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rules {
		r.built = true
		r.pending = 0
		s := r.Scope
		if s.cache == nil {
			continue
		}
		key := ruleCacheKey(r.Produces)
		entry := s.cache.entry(key)
		all := append(append(append([]string{}, r.Requires...), r.Secondary...), r.weakRequires...)
		e.recordRequirementMtimes(entry, all)
		entry.touch(r.Produces, r.untouched)
		s.cache.dirty = true
		e.recordTrace(r, true, "requirement changed")
	}
	select {
	case <-ctx.Done():
		return wrapBuildError(ErrInterrupted, ctx.Err(), "build interrupted")
	default:
	}
	return nil
}
