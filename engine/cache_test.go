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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// Invariant 4: a rule's cache key is invariant under permutation of its
// product list.
func TestRuleCacheKeyPermutationInvariant(t *testing.T) {
	a := ruleCacheKey([]string{"/a", "/b", "/c"})
	b := ruleCacheKey([]string{"/c", "/a", "/b"})
	require.Equal(t, a, b)

	diff := ruleCacheKey([]string{"/a", "/b"})
	require.NotEqual(t, a, diff)
}

// Invariant 5: marking a product untouched leaves its stored modtime
// unchanged.
func TestMarkUntouchedPreservesMtime(t *testing.T) {
	entry := &RuleCacheEntry{Mtimes: map[string]int64{"/p": 100}}
	entry.touch([]string{"/p"}, map[string]bool{"/p": true})
	require.Equal(t, int64(100), entry.Mtimes["/p"])
}

// Invariant 6: round-trip serialization preserves all fields consulted
// by the default change detector.
func TestDirCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newDirCache()
	entry := c.entry("somekey")
	entry.Mtimes["/a"] = 12345
	entry.Other["digest"] = "abc123"
	c.Scope["seen"] = true
	c.dirty = true

	require.NoError(t, c.write(dir))

	loaded, err := loadDirCache(dir)
	require.NoError(t, err)
	require.Equal(t, int64(12345), loaded.Rules["somekey"].Mtimes["/a"])
	require.Equal(t, "abc123", loaded.Rules["somekey"].Other["digest"])
	require.Equal(t, true, loaded.Scope["seen"])
}

// Invariant 11: a cache file that fails to parse is treated as empty;
// the engine never aborts due to a cache read failure.
func TestCorruptCacheTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := cacheFileName(dir)
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	c, err := loadDirCache(dir)
	require.NoError(t, err)
	require.Empty(t, c.Rules)
}

func TestHasChangedDetectsFirstSeen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	changed, mtime := hasChanged(path, 0)
	require.True(t, changed)
	require.NotZero(t, mtime)

	changed, _ = hasChanged(path, mtime)
	require.False(t, changed)
}

func TestHasChangedAlwaysBuildToken(t *testing.T) {
	changed, _ := hasChanged(AlwaysBuildPath, 999)
	require.True(t, changed)
}

// Touching a rule's cache entry with a fresh product list must not
// disturb entries for products that weren't touched this run; diffed
// structurally rather than field by field.
func TestTouchLeavesUnrelatedEntriesUntouched(t *testing.T) {
	before := &RuleCacheEntry{
		Other:  map[string]interface{}{"digest": "abc"},
		Mtimes: map[string]int64{"/a": 1, "/b": 2},
	}
	after := &RuleCacheEntry{
		Other:  map[string]interface{}{"digest": "abc"},
		Mtimes: map[string]int64{"/a": 1, "/b": 2},
	}
	after.touch([]string{"/a"}, map[string]bool{"/a": true})

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("marking /a untouched must leave the entry unchanged (-before +after):\n%s", diff)
	}
}
