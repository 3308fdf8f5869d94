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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S3 — cwd discipline: cwd-unsafe rules never run concurrently with each
// other, regardless of how many normal workers are idle.
func TestSpecialQueueSerializesCwdUnsafeTasks(t *testing.T) {
	q := newRuleQueue()
	wg := runWorkers(q, 4)
	defer func() {
		q.stop()
		wg.Wait()
	}()

	var inFlight int32
	var maxInFlight int32
	var mu sync.Mutex

	n := 10
	scope := newScope(t.TempDir(), nil)
	for i := 0; i < n; i++ {
		r := &Rule{
			Scope:      scope,
			ThreadSafe: false,
			Func: func(ctx *RunContext, produces, requires []string) error {
				cur := atomic.AddInt32(&inFlight, 1)
				mu.Lock()
				if cur > maxInFlight {
					maxInFlight = cur
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			},
		}
		q.put(&task{rule: r})
	}

	require.NoError(t, q.join())
	require.LessOrEqual(t, maxInFlight, int32(1))
}

func TestNormalQueueAllowsConcurrency(t *testing.T) {
	q := newRuleQueue()
	wg := runWorkers(q, 4)
	defer func() {
		q.stop()
		wg.Wait()
	}()

	var inFlight int32
	var maxInFlight int32
	var mu sync.Mutex
	var wgTasks sync.WaitGroup
	release := make(chan struct{})
	wgTasks.Add(4)

	for i := 0; i < 4; i++ {
		r := &Rule{
			ThreadSafe: true,
			Func: func(ctx *RunContext, produces, requires []string) error {
				cur := atomic.AddInt32(&inFlight, 1)
				mu.Lock()
				if cur > maxInFlight {
					maxInFlight = cur
				}
				mu.Unlock()
				wgTasks.Done()
				<-release
				atomic.AddInt32(&inFlight, -1)
				return nil
			},
		}
		q.put(&task{rule: r})
	}

	wgTasks.Wait()
	close(release)
	require.NoError(t, q.join())
	require.Greater(t, maxInFlight, int32(1))
}

func TestJoinReturnsFirstError(t *testing.T) {
	q := newRuleQueue()
	wg := runWorkers(q, 2)
	defer func() {
		q.stop()
		wg.Wait()
	}()

	boom := newBuildError(ErrRuleExecutionFailure, "boom")
	r := &Rule{ThreadSafe: true, Func: func(ctx *RunContext, produces, requires []string) error { return boom }}
	q.put(&task{rule: r})

	err := q.join()
	require.Error(t, err)
}
