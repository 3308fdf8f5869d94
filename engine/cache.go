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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RuleCacheEntry is one rule's persisted state: the other arbitrary blob a
// module stashed via Engine.RuleCache, plus the mtimes recorded for its
// requirements and products the last time it ran (used to detect "changed
// out from under us between runs" without re-running the rule).
type RuleCacheEntry struct {
	Other  map[string]interface{} `yaml:"other"`
	Mtimes map[string]int64       `yaml:"mtimes"`
}

// DirCache is the persisted, per-directory cache file, stored as YAML.
// Unknown top-level keys (from a future version, say) are skipped without
// error on load and are not written back; the free-form Other and Scope
// maps keep whatever keys modules put in them.
type DirCache struct {
	Rules map[string]*RuleCacheEntry `yaml:"rules"`
	Scope map[string]interface{}     `yaml:"scope"`
	dirty bool
}

func newDirCache() *DirCache {
	return &DirCache{
		Rules: make(map[string]*RuleCacheEntry),
		Scope: make(map[string]interface{}),
	}
}

// ruleCacheKey is the hash emk uses to find a rule's cache entry across
// runs: sha256 of the rule's sorted product paths joined by NUL, so the
// key is stable regardless of declaration order.
func ruleCacheKey(products []string) string {
	sorted := append([]string(nil), products...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

func cacheFileName(dir string) string {
	h := sha256.Sum256([]byte(dir))
	return filepath.Join(dir, "__emk_cache__"+hex.EncodeToString(h[:])[:16])
}

func loadDirCache(dir string) (*DirCache, error) {
	path := cacheFileName(dir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newDirCache(), nil
	}
	if err != nil {
		return nil, err
	}
	c := newDirCache()
	if err := yaml.Unmarshal(data, c); err != nil {
		// a corrupt cache is treated as an empty one; nothing in the spec
		// requires surfacing this as a build error
		return newDirCache(), nil
	}
	if c.Rules == nil {
		c.Rules = make(map[string]*RuleCacheEntry)
	}
	if c.Scope == nil {
		c.Scope = make(map[string]interface{})
	}
	return c, nil
}

func (c *DirCache) write(dir string) error {
	if !c.dirty {
		return nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(cacheFileName(dir), data, 0o644)
}

func (c *DirCache) entry(key string) *RuleCacheEntry {
	e, ok := c.Rules[key]
	if !ok {
		e = &RuleCacheEntry{
			Other:  make(map[string]interface{}),
			Mtimes: make(map[string]int64),
		}
		c.Rules[key] = e
		c.dirty = true
	}
	return e
}

// hasChanged reports whether path's on-disk mtime differs from the mtime
// recorded the last time it was produced or examined. A path with no
// recorded mtime (first time it's seen) counts as changed.
func hasChanged(path string, recorded int64) (bool, int64) {
	if path == AlwaysBuildPath {
		return true, 0
	}
	info, err := os.Stat(path)
	if err != nil {
		// a missing required file is "changed" (something must rebuild it,
		// or the build will fail as a missing product once examined)
		return true, 0
	}
	mtime := info.ModTime().UnixNano()
	return mtime != recorded, mtime
}

func currentMtime(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}

// touch records products' current mtimes into a rule's cache entry, called
// once a rule has finished running (or been determined untouched). A
// product with no on-disk file (a virtual product) gets its mtime stamped
// to now instead, which is how a virtual product's vmodtime advances. A
// product reported untouched keeps its previously recorded value rather
// than advancing it — unless this is the first time the product has ever
// been recorded, in which case a baseline must still be established so a
// later build has something concrete to compare against.
func (e *RuleCacheEntry) touch(products []string, untouched map[string]bool) {
	if e.Mtimes == nil {
		e.Mtimes = make(map[string]int64)
	}
	now := time.Now()
	for _, p := range products {
		if untouched != nil && untouched[p] {
			if _, exists := e.Mtimes[p]; exists {
				continue
			}
		}
		if mt, ok := currentMtime(p); ok {
			e.Mtimes[p] = mt
		} else {
			e.Mtimes[p] = now.UnixNano()
		}
	}
}
