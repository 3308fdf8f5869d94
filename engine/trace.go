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

// TraceEntry records one rule's decision during a traced build: whether
// it ran, and why (which requirement changed), for the --trace /
// --trace-unchanged CLI options (§6.1, §8).
type TraceEntry struct {
	Products []string
	Ran      bool
	Reason   string
}

// recordTrace appends an entry to the build's trace log if tracing is
// enabled; recordTrace for an unchanged rule is only kept when
// TraceUnchanged is also set, since that list is usually much larger.
// Callers must already hold e.mu (both call sites are inside graph.go
// critical sections).
func (e *Engine) recordTrace(r *Rule, ran bool, reason string) {
	if !e.opts.Trace {
		return
	}
	if !ran && !e.opts.TraceUnchanged {
		return
	}
	e.traceLog = append(e.traceLog, TraceEntry{
		Products: r.Produces,
		Ran:      ran,
		Reason:   reason,
	})
}

// Trace returns the accumulated trace log for a completed Run. Empty
// unless Options.Trace was set.
func (e *Engine) Trace() []TraceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]TraceEntry(nil), e.traceLog...)
}
