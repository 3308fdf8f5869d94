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
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(Options{Threads: 2})
}

// Invariant 12: a circular alias chain among unresolved aliases
// terminates; after fixed-point iteration, remaining aliases become
// external-file targets (their names resolve to themselves, not to an
// infinite expansion).
func TestCircularAliasTerminates(t *testing.T) {
	e := newTestEngine()
	defer e.shutdown()
	s := newScope("/proj", nil)
	e.scopes[s.Dir] = s

	require.NoError(t, e.addAlias(s, "a", []string{"b"}))
	require.NoError(t, e.addAlias(s, "b", []string{"a"}))

	require.NoError(t, e.reconcileAliases())

	resolved := e.resolveRequirement(s, "a")
	require.NotEmpty(t, resolved)
}

func TestAliasExpansionFixedPoint(t *testing.T) {
	e := newTestEngine()
	defer e.shutdown()
	s := newScope("/proj", nil)
	e.scopes[s.Dir] = s

	require.NoError(t, e.addAlias(s, "leaf", []string{"/proj/x", "/proj/y"}))
	require.NoError(t, e.addAlias(s, "mid", []string{"leaf"}))
	require.NoError(t, e.addAlias(s, "top", []string{"mid"}))

	require.NoError(t, e.reconcileAliases())

	resolved := e.resolveRequirement(s, "top")
	require.ElementsMatch(t, []string{"/proj/x", "/proj/y"}, resolved)
}

// S6 — attached target: alias("all", "foo"); attach("all", "bar").
func TestAttachAddsToAlias(t *testing.T) {
	e := newTestEngine()
	defer e.shutdown()
	s := newScope("/proj", nil)
	e.scopes[s.Dir] = s

	require.NoError(t, e.Alias(s, "all", []string{"/proj/foo"}))
	require.NoError(t, e.Attach(s, "all", []string{"/proj/bar"}))

	resolved := e.resolveRequirement(s, "all")
	require.ElementsMatch(t, []string{"/proj/foo", "/proj/bar"}, resolved)
}

func TestDuplicateRuleProductIsError(t *testing.T) {
	e := newTestEngine()
	defer e.shutdown()
	s := newScope("/proj", nil)
	e.scopes[s.Dir] = s

	r1 := &Rule{Scope: s, Produces: []string{"/proj/out"}, Func: func(ctx *RunContext, p, q []string) error { return nil }}
	r2 := &Rule{Scope: s, Produces: []string{"/proj/out"}, Func: func(ctx *RunContext, p, q []string) error { return nil }}

	require.NoError(t, e.addRule(r1))
	err := e.addRule(r2)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, ErrDuplicateRule, be.Kind)
}

// Invariant 10: a weak dependency that resolves to a non-existent path
// with no rule does not prevent its dependent rule from running.
func TestWeakDependencyMissingDoesNotBlock(t *testing.T) {
	e := newTestEngine()
	defer e.shutdown()
	s := newScope(t.TempDir(), nil)
	e.scopes[s.Dir] = s

	ran := false
	out := s.Dir + "/out"
	r := &Rule{
		Scope:        s,
		Produces:     []string{out},
		weakRequires: []string{s.Dir + "/does-not-exist"},
		Func: func(ctx *RunContext, p, q []string) error {
			ran = true
			return os.WriteFile(out, []byte("out"), 0o644)
		},
		ThreadSafe: true,
	}
	require.NoError(t, e.addRule(r))
	s.Rules = append(s.Rules, r)

	runnable, err := e.examineTargets()
	require.NoError(t, err)
	require.Len(t, runnable, 1)
	require.NoError(t, e.executeRules(t.Context(), runnable))
	require.True(t, ran)
}
