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
	"sync"
)

// task is one unit of scheduled work: run a rule's Func against its
// resolved products/requirements and report the result back. engine lets
// the worker build the RunContext the rule body receives, and lets
// verifyProducts re-check each product's virtual status *after* Func
// returns — a product only becomes virtual when the rule itself calls
// MarkVirtual during that same run, so a status captured before Func runs
// would never see a product's first-ever virtual declaration.
type task struct {
	rule     *Rule
	produces []string
	requires []string
	engine   *Engine
}

// ruleQueue is the dual-queue scheduler from component F, grounded
// directly on the original engine's threading.Condition-based
// _RuleQueue: a single pool of N worker goroutines draws from a "special"
// queue of cwd-unsafe tasks first (at most one in flight at a time,
// tracked by specialBusy) and a "normal" queue of cwd-safe tasks
// otherwise, so a worker never sits idle just because the special queue
// happens to be empty. No example repo in the retrieved pack models
// condition-variable producer/consumer scheduling, so this piece is built
// on the standard library (sync) rather than on a pack dependency.
type ruleQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond // signaled when either queue gains work, or on stop/error
	joinCond *sync.Cond // signaled when pending drops to zero or an error is recorded

	normal  []*task
	special []*task

	specialBusy bool
	pending     int
	stopped     bool
	err         error
}

func newRuleQueue() *ruleQueue {
	q := &ruleQueue{}
	q.cond = sync.NewCond(&q.mu)
	q.joinCond = sync.NewCond(&q.mu)
	return q
}

// put enqueues t, routing it to the special queue when its rule is not
// ThreadSafe (cwd-unsafe), or to the normal queue otherwise.
func (q *ruleQueue) put(t *task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending++
	if t.rule != nil && !t.rule.ThreadSafe {
		q.special = append(q.special, t)
	} else {
		q.normal = append(q.normal, t)
	}
	q.cond.Broadcast()
}

// get blocks until a task is available for this worker to run, the queue
// is stopped, or an error has been recorded. A special-queue task is
// preferred whenever one is waiting and no other worker currently owns
// the special slot; otherwise the worker falls through to the normal
// queue, so idle capacity is never reserved for special work alone.
func (q *ruleQueue) get() (t *task, special bool, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.special) > 0 && !q.specialBusy {
			t := q.special[0]
			q.special = q.special[1:]
			q.specialBusy = true
			return t, true, true
		}
		if len(q.normal) > 0 {
			t := q.normal[0]
			q.normal = q.normal[1:]
			return t, false, true
		}
		if q.stopped || q.err != nil {
			return nil, false, false
		}
		q.cond.Wait()
	}
}

// doneTask marks one task as finished (successfully or not), releases the
// special slot if the task held it, and wakes join() if pending has
// reached zero or taskErr introduces the first recorded failure.
func (q *ruleQueue) doneTask(special bool, taskErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if special {
		q.specialBusy = false
	}
	q.pending--
	if taskErr != nil && q.err == nil {
		q.err = taskErr
		q.joinCond.Broadcast()
	}
	if q.pending == 0 {
		q.joinCond.Broadcast()
	}
	q.cond.Broadcast()
}

// join blocks until all put tasks have been marked done, or until an
// error has been recorded by any task, whichever comes first. It returns
// the first recorded error, if any.
func (q *ruleQueue) join() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 && q.err == nil {
		q.joinCond.Wait()
	}
	return q.err
}

// stop wakes every blocked worker with ok=false, used at shutdown once
// the build (or a phase of it) is complete.
func (q *ruleQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
	q.joinCond.Broadcast()
}

// reset clears stopped/err state between build phases while keeping the
// same underlying condition variables and mutex, so worker goroutines
// spawned once for the process lifetime can be reused across phases.
func (q *ruleQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = false
	q.err = nil
}

// runWorkers starts n worker goroutines draining q (§4.6's "N worker
// threads, one special slot" model — not N workers plus a dedicated
// special one), executing each task's rule body and reporting completion
// via doneTask. It returns a WaitGroup the caller can Wait() on after
// calling q.stop() to know every worker goroutine has exited.
func runWorkers(q *ruleQueue, n int) *sync.WaitGroup {
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for {
				t, special, ok := q.get()
				if !ok {
					return
				}
				runTask(q, t, special)
			}
		}()
	}
	return &wg
}

// runTask runs one task's rule body, owning the process working
// directory for the duration of a cwd-unsafe (non-ThreadSafe) rule —
// the special queue's serialization is exactly what makes this safe —
// then verifies every declared non-virtual product actually exists on
// disk before reporting success, per §4.6 step 3 / §7's MissingProduct.
func runTask(q *ruleQueue, t *task, special bool) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = wrapBuildError(ErrRuleExecutionFailure, nil, "rule panicked during execution")
			}
		}()
		restore, chdirErr := chdirForRule(t.rule)
		if chdirErr != nil {
			err = wrapBuildError(ErrRuleExecutionFailure, chdirErr, "could not chdir to rule's scope directory")
			return
		}
		if restore != nil {
			defer restore()
		}
		ctx := &RunContext{e: t.engine, r: t.rule}
		err = t.rule.Func(ctx, t.produces, t.requires)
		if err == nil {
			err = verifyProducts(t)
		}
	}()
	t.rule.failed = err
	q.doneTask(special, err)
}

// chdirForRule changes the process working directory to a cwd-unsafe
// rule's scope directory, returning a function that restores the
// previous directory. ThreadSafe rules never touch the process cwd, so
// this is a no-op for them.
func chdirForRule(r *Rule) (restore func(), err error) {
	if r.ThreadSafe {
		return nil, nil
	}
	prev, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(r.Scope.Dir); err != nil {
		return nil, err
	}
	return func() { os.Chdir(prev) }, nil
}

// verifyProducts enforces that a rule reporting success actually produced
// every non-virtual product it declared, removing its cache entry (so
// the next run treats it as never having succeeded) when it didn't. Virtual
// status is read fresh here, after Func has returned, since a product
// only becomes virtual by the rule calling MarkVirtual during this very
// run.
func verifyProducts(t *task) error {
	var missing []string
	for _, p := range t.produces {
		if t.engine != nil && t.engine.target(p).Virtual {
			continue
		}
		if _, err := statExists(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	removeRuleCacheEntry(t.rule)
	return newBuildError(ErrMissingProduct, "rule did not produce declared product(s)", missing...)
}

func removeRuleCacheEntry(r *Rule) {
	s := r.Scope
	if s == nil || s.cache == nil {
		return
	}
	key := ruleCacheKey(r.Produces)
	delete(s.cache.Rules, key)
	s.cache.dirty = true
}
