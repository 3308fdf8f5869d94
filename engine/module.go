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

import "sync"

// ModuleInstance is the minimum every module must satisfy: something bound
// once per scope that needs to exist so sibling rules can look it up via
// Engine.Module/WeakModule. Modules that need lifecycle callbacks
// additionally implement one or more of the optional interfaces below;
// the engine type-asserts for each rather than requiring a fat interface,
// the idiomatic Go substitute for the original's duck-typed
// load_<scope>/post_<scope> hooks.
type ModuleInstance interface {
	// Name is the registry key this instance was constructed under.
	Name() string
}

// ScopeLoader is implemented by a module that needs to run setup when a
// new scope first binds it (the original's load_scope/load_subproj/
// load_proj hooks, collapsed to one call told which kind of scope it is).
type ScopeLoader interface {
	LoadScope(e *Engine, s *Scope, kind ScopeKind) error
}

// PostRuler is implemented by a module that needs to register rules after
// every module in a scope has loaded (the original's post_rules hook) —
// used by modules/revision to depend on modules/utils having already
// bound its Call/CopyFile helpers into the scope.
type PostRuler interface {
	PostRules(e *Engine, s *Scope) error
}

// ScopeKind tells a ScopeLoader what kind of directory it is being bound
// into, mirroring the original's load_scope vs load_subproj vs load_proj
// distinction.
type ScopeKind int

const (
	ScopeDir ScopeKind = iota
	ScopeSubproj
	ScopeProj
)

// ModuleFactory constructs a new instance of a module, optionally given
// the parent scope's existing instance to inherit from (nil at the
// project root). This is the static replacement for the original's
// dynamic "import and look for a module-shaped object" resolution.
type ModuleFactory func(parent ModuleInstance) ModuleInstance

var (
	registryMu sync.RWMutex
	registry   = map[string]ModuleFactory{}
)

// RegisterModule adds a module constructor to the static registry. Module
// packages call this from their own init(), mirroring the teacher's
// pattern of registering cobra subcommands from package init().
func RegisterModule(name string, factory ModuleFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func lookupModule(name string) (ModuleFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// bindModule resolves name against scope s, walking up through parent
// scopes to find an existing (weak or strong) instance to inherit from,
// then constructs and records a new instance for s. weak controls which
// of the scope's two module tables the result is recorded into.
func (e *Engine) bindModule(s *Scope, name string, weak bool) (ModuleInstance, error) {
	table := s.modules
	if weak {
		table = s.weakModules
	}
	if inst, ok := table[name]; ok {
		return inst, nil
	}
	if !weak {
		if inst, ok := s.weakModules[name]; ok {
			// promote the existing weak binding instead of constructing anew
			delete(s.weakModules, name)
			s.modules[name] = inst
			return inst, nil
		}
	}

	var parentInst ModuleInstance
	for p := s.Parent; p != nil; p = p.Parent {
		if inst, ok := p.modules[name]; ok {
			parentInst = inst
			break
		}
		if inst, ok := p.weakModules[name]; ok {
			parentInst = inst
			break
		}
	}

	factory, ok := lookupModule(name)
	if !ok {
		return nil, newBuildError(ErrConfigurationFailure, "unknown module: "+name)
	}
	inst := factory(parentInst)
	table[name] = inst

	if loader, ok := inst.(ScopeLoader); ok {
		kind := ScopeDir
		if s.IsProj {
			kind = ScopeProj
		} else if s.Parent == nil || s.Parent.IsProj {
			kind = ScopeSubproj
		}
		if err := loader.LoadScope(e, s, kind); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// runPostRules invokes PostRules on every module (strong and weak) bound
// into s, after all of s's load-time module bindings have completed.
func (e *Engine) runPostRules(s *Scope) error {
	for _, inst := range s.modules {
		if pr, ok := inst.(PostRuler); ok {
			if err := pr.PostRules(e, s); err != nil {
				return err
			}
		}
	}
	for _, inst := range s.weakModules {
		if pr, ok := inst.(PostRuler); ok {
			if err := pr.PostRules(e, s); err != nil {
				return err
			}
		}
	}
	return nil
}
