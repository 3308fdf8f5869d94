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

// Package engine's top-level orchestration: the phase loop described in
// §4.3/§9 (prebuild → reconcile → examine → execute → postbuild →
// recurse), run until no scope has outstanding work and the dependency
// graph is fully resolved.
package engine

import (
	"context"
	"runtime"
	"sync"
)

// Options configures one Run of the engine, collecting the recognized
// CLI/config keys from §6.1/§6.4 (log level, style, thread count, tracing,
// explicit target, clean mode).
type Options struct {
	Threads         int
	LogLevel        string
	LogStyle        string
	Trace           bool
	TraceUnchanged  bool
	ExplicitTarget  string
	Clean           bool
	ModulePaths     []string
	InstallDir      string
	EmkDev          bool
}

// Engine is the build session: NewEngine constructs it, and one call to
// Run(rootDir) walks the directory hierarchy from rootDir and drives the
// phase loop until the graph is fully built or a BuildError aborts it.
type Engine struct {
	opts Options

	mu             sync.Mutex
	scopes         map[string]*Scope
	targets        map[string]*Target
	knownBuildDirs map[string]string
	aliasTargets   map[string]map[string][]string // scope dir -> alias name -> targets

	queue   *ruleQueue
	workers *sync.WaitGroup

	rebuildIfChanged map[string]bool

	mustBuild []string
	traceLog  []TraceEntry

	currentRule  *Rule
	currentScope *Scope
}

// NewEngine constructs an Engine ready to Run against rootDir.
func NewEngine(opts Options) *Engine {
	if opts.Threads <= 0 {
		opts.Threads = runtime.NumCPU()
	}
	e := &Engine{
		opts:             opts,
		scopes:           make(map[string]*Scope),
		targets:          make(map[string]*Target),
		knownBuildDirs:   make(map[string]string),
		aliasTargets:     make(map[string]map[string][]string),
		rebuildIfChanged: make(map[string]bool),
		queue:            newRuleQueue(),
	}
	e.workers = runWorkers(e.queue, opts.Threads)
	return e
}

// Run is the public entry point (component H, §6.2): load rootDir as the
// starting scope, then iterate the phase loop until every visited scope
// reports no further work and every declared requirement has resolved to
// a known target, per §4.3's termination condition.
func (e *Engine) Run(ctx context.Context, rootDir string) error {
	root, err := e.handleDir(rootDir, nil)
	if err != nil {
		return err
	}
	e.currentScope = root

	for {
		progressed, err := e.runPhase(ctx)
		if err != nil {
			e.shutdown()
			return err
		}
		if !progressed {
			break
		}
	}

	if err := e.finalCheck(); err != nil {
		e.shutdown()
		return err
	}
	e.shutdown()
	return e.writeAllCaches()
}

func (e *Engine) shutdown() {
	e.queue.stop()
	e.workers.Wait()
}

// runPhase executes one prebuild → reconcile → examine → execute →
// postbuild → recurse cycle over every scope visited so far whose work
// isn't yet settled, reporting whether any progress was made (a prebuild,
// postbuild or do-later callback ran, or at least one rule was runnable)
// so Run knows whether another iteration is needed.
func (e *Engine) runPhase(ctx context.Context) (bool, error) {
	progressed := false

	for _, s := range e.allScopes() {
		for _, fn := range drain(&s.prebuild) {
			if err := fn(); err != nil {
				return false, err
			}
			progressed = true
		}
	}

	if err := e.reconcileAliases(); err != nil {
		return false, err
	}

	runnable, err := e.examineTargets()
	if err != nil {
		return false, err
	}
	if len(runnable) > 0 {
		progressed = true
	}

	if err := e.executeRules(ctx, runnable); err != nil {
		return false, err
	}

	for _, s := range e.allScopes() {
		for _, fn := range drain(&s.postbuild) {
			if err := fn(); err != nil {
				return false, err
			}
			progressed = true
		}
	}

	for _, s := range e.allScopes() {
		for _, fn := range drain(&s.dolater) {
			if err := fn(); err != nil {
				return false, err
			}
			progressed = true
		}
	}

	return progressed, nil
}

func drain(fns *[]func() error) []func() error {
	out := *fns
	*fns = nil
	return out
}

func (e *Engine) allScopes() []*Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Scope, 0, len(e.scopes))
	for _, s := range e.scopes {
		out = append(out, s)
	}
	return out
}

// finalCheck enforces §4.3's termination invariant: every required
// non-virtual target must have resolved to either a producing rule or an
// existing file on disk. When an explicit target was requested, an
// unresolvable name (no rule, no file, not an alias) is reported as
// UnknownExplicitTarget per S5 rather than lumped in with the general
// unbuildable-target list, even though every other autobuild target that
// could be built still was.
func (e *Engine) finalCheck() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opts.ExplicitTarget != "" {
		root := e.rootScope()
		resolved := e.resolveRequirementLocked(root, e.opts.ExplicitTarget)
		known := false
		for _, p := range resolved {
			if t, ok := e.targets[p]; ok && t.ProducedBy != nil {
				known = true
			} else if _, err := statExists(p); err == nil {
				known = true
			}
		}
		if !known {
			return newBuildError(ErrUnknownExplicitTarget,
				"unknown explicit target: "+e.opts.ExplicitTarget)
		}
	}

	var unbuildable []string
	for path, t := range e.targets {
		if path == AlwaysBuildPath {
			continue
		}
		if t.ProducedBy == nil && len(t.RequiredBy) > 0 && !t.Virtual {
			if _, err := statExists(path); err != nil {
				unbuildable = append(unbuildable, path)
			}
		}
	}
	if len(unbuildable) > 0 {
		return newBuildError(ErrUnbuildableTargets, "could not build all required targets", unbuildable...)
	}
	return nil
}

func (e *Engine) rootScope() *Scope {
	for _, s := range e.scopes {
		if s.Parent == nil {
			return s
		}
	}
	return nil
}

func (e *Engine) writeAllCaches() error {
	for _, s := range e.allScopes() {
		if s.cache != nil {
			if err := s.cache.write(s.Dir); err != nil {
				return err
			}
		}
	}
	return nil
}
