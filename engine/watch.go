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
	"sync"
	"time"

	"emk.build/emk/internal/platform"
)

// debounceWindow is how long Watcher waits after the last filesystem event
// before triggering a rebuild, so a burst of saves (editors that write a
// swap file then rename it into place) only costs one rebuild.
const debounceWindow = 150 * time.Millisecond

// Watcher drives repeated builds of rootDir, re-running Run whenever a
// file in any visited directory changes. This is the optional watch-mode
// extension named in SPEC_FULL.md's DOMAIN STACK: a natural extension of
// the incremental model that the distilled spec's Non-goals don't
// prohibit.
type Watcher struct {
	newEngine func() *Engine
	rootDir   string
	fw        platform.FileWatcher
	clock     platform.TimeProvider

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewWatcher constructs a Watcher that calls newEngine for each rebuild
// (since an Engine is single-use per Run) against rootDir.
func NewWatcher(newEngine func() *Engine, rootDir string) (*Watcher, error) {
	fw, err := platform.NewFSNotifyFileWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		newEngine: newEngine,
		rootDir:   rootDir,
		fw:        fw,
		clock:     platform.NewRealTimeProvider(),
	}, nil
}

// Start runs an initial build, then watches every directory visited by
// that build for changes, triggering a debounced rebuild on each one,
// until Stop is called.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	e := w.newEngine()
	if err := e.Run(context.Background(), w.rootDir); err != nil {
		return err
	}
	for dir := range e.scopes {
		w.fw.Add(dir)
	}

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	rebuild := func() {
		e := w.newEngine()
		_ = e.Run(context.Background(), w.rootDir)
		for dir := range e.scopes {
			w.fw.Add(dir)
		}
	}
	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-w.fw.Events():
			if !ok {
				return
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, rebuild)
		case <-w.fw.Errors():
			// a watch error on one path doesn't abort watching the rest
		}
	}
}

// Stop ceases watching and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.stop)
	w.running = false
	return w.fw.Close()
}

// IsRunning reports whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

var _ platform.BuildWatcher = (*Watcher)(nil)
