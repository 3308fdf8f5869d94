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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S1 — minimal rule chain: A <- [source.txt], B <- [A]. A second build
// with no changes executes zero rules.
func TestMinimalRuleChain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source.txt"), []byte("hi"), 0o644))

	var aRuns, bRuns int

	build := func(e *Engine, s *Scope) error {
		source := e.Abspath(s, "source.txt")
		aPath := e.Abspath(s, "A")
		bPath := e.Abspath(s, "B")

		if err := e.Rule(s, []string{aPath}, []string{source}, func(ctx *RunContext, produces, requires []string) error {
			aRuns++
			return os.WriteFile(produces[0], []byte("a"), 0o644)
		}, RuleOpts{ThreadSafe: true}); err != nil {
			return err
		}
		if err := e.Rule(s, []string{bPath}, []string{aPath}, func(ctx *RunContext, produces, requires []string) error {
			bRuns++
			return os.WriteFile(produces[0], []byte("b"), 0o644)
		}, RuleOpts{ThreadSafe: true}); err != nil {
			return err
		}
		e.Autobuild(s, []string{bPath})
		return nil
	}
	RegisterRulesFile(dir, build)

	e1 := NewEngine(Options{Threads: 2})
	require.NoError(t, e1.Run(context.Background(), dir))
	require.Equal(t, 1, aRuns)
	require.Equal(t, 1, bRuns)

	e2 := NewEngine(Options{Threads: 2})
	require.NoError(t, e2.Run(context.Background(), dir))
	require.Equal(t, 1, aRuns, "second build on unchanged workspace must run A zero times")
	require.Equal(t, 1, bRuns, "second build on unchanged workspace must run B zero times")
}

// S9 — a rule declaring the always-build token as a requirement runs
// every phase it is examined in.
func TestAlwaysBuildTokenAlwaysRuns(t *testing.T) {
	dir := t.TempDir()
	runs := 0

	RegisterRulesFile(dir, func(e *Engine, s *Scope) error {
		out := e.Abspath(s, "out")
		return e.Rule(s, []string{out}, []string{AlwaysBuildPath}, func(ctx *RunContext, produces, requires []string) error {
			runs++
			return os.WriteFile(produces[0], []byte("x"), 0o644)
		}, RuleOpts{ThreadSafe: true})
	})

	for i := 0; i < 2; i++ {
		e := NewEngine(Options{Threads: 2})
		require.NoError(t, e.Run(context.Background(), dir))
	}
	require.Equal(t, 2, runs)
}

// S4 — rebuild_if_changed: externally modifying a rule's product
// triggers a rerun and an updated cached mtime.
func TestRebuildIfChanged(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src"), []byte("s"), 0o644))
	runs := 0

	RegisterRulesFile(dir, func(e *Engine, s *Scope) error {
		x := e.Abspath(s, "X")
		src := e.Abspath(s, "src")
		if err := e.Rule(s, []string{x}, []string{src}, func(ctx *RunContext, produces, requires []string) error {
			runs++
			return os.WriteFile(produces[0], []byte("x"), 0o644)
		}, RuleOpts{ThreadSafe: true}); err != nil {
			return err
		}
		e.RebuildIfChanged(s, []string{x})
		return nil
	})

	e1 := NewEngine(Options{Threads: 2})
	require.NoError(t, e1.Run(context.Background(), dir))
	require.Equal(t, 1, runs)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "X"), []byte("modified externally"), 0o644))

	e2 := NewEngine(Options{Threads: 2})
	require.NoError(t, e2.Run(context.Background(), dir))
	require.Equal(t, 2, runs, "externally modifying a rebuild_if_changed product must trigger a rerun")
}

// S2 — virtual product: rule V <- [source.txt] marks V virtual and
// untouched; rule W <- [V] writes file W. First build: both run. Second
// build with source.txt unchanged: zero rules run. Touching source.txt
// reruns V, which reports untouched, so W still does not run.
func TestVirtualProductUntouchedBlocksDownstreamRerun(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(source, []byte("hi"), 0o644))

	var vRuns, wRuns int

	RegisterRulesFile(dir, func(e *Engine, s *Scope) error {
		srcPath := e.Abspath(s, "source.txt")
		vPath := e.Abspath(s, "V")
		wPath := e.Abspath(s, "W")

		if err := e.Rule(s, []string{vPath}, []string{srcPath}, func(ctx *RunContext, produces, requires []string) error {
			vRuns++
			ctx.MarkVirtual(produces[0])
			ctx.MarkUntouched(produces[0])
			return nil
		}, RuleOpts{ThreadSafe: true}); err != nil {
			return err
		}
		if err := e.Rule(s, []string{wPath}, []string{vPath}, func(ctx *RunContext, produces, requires []string) error {
			wRuns++
			return os.WriteFile(produces[0], []byte("w"), 0o644)
		}, RuleOpts{ThreadSafe: true}); err != nil {
			return err
		}
		e.Autobuild(s, []string{wPath})
		return nil
	})

	e1 := NewEngine(Options{Threads: 2})
	require.NoError(t, e1.Run(context.Background(), dir))
	require.Equal(t, 1, vRuns, "first build must run V")
	require.Equal(t, 1, wRuns, "first build must run W")

	e2 := NewEngine(Options{Threads: 2})
	require.NoError(t, e2.Run(context.Background(), dir))
	require.Equal(t, 1, vRuns, "second build with source.txt unchanged must run V zero times")
	require.Equal(t, 1, wRuns, "second build with source.txt unchanged must run W zero times")

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(source, []byte("touched"), 0o644))

	e3 := NewEngine(Options{Threads: 2})
	require.NoError(t, e3.Run(context.Background(), dir))
	require.Equal(t, 2, vRuns, "touching source.txt must rerun V")
	require.Equal(t, 1, wRuns, "V reporting untouched must not rerun W")
}

// §4.6 step 3 / §7 — a rule that returns success without actually leaving
// its declared non-virtual product on disk fails the build with
// MissingProduct, and its cache entry is discarded.
func TestMissingProductRaisesError(t *testing.T) {
	dir := t.TempDir()
	RegisterRulesFile(dir, func(e *Engine, s *Scope) error {
		out := e.Abspath(s, "out")
		return e.Rule(s, []string{out}, nil, func(ctx *RunContext, produces, requires []string) error {
			return nil // never writes produces[0]
		}, RuleOpts{ThreadSafe: true})
	})

	e := NewEngine(Options{Threads: 2})
	err := e.Run(context.Background(), dir)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, ErrMissingProduct, be.Kind)
}

// S5 — an unresolvable explicit target ends the build with
// UnknownExplicitTarget.
func TestUnresolvableExplicitTargetErrors(t *testing.T) {
	dir := t.TempDir()
	RegisterRulesFile(dir, func(e *Engine, s *Scope) error { return nil })

	e := NewEngine(Options{Threads: 2, ExplicitTarget: "does_not_exist"})
	err := e.Run(context.Background(), dir)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, ErrUnknownExplicitTarget, be.Kind)
}
