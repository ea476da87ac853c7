/*
Copyright © 2026 the geogrid authors.
This file is part of geogrid.

geogrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geogrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geogrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridlayer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// job is a unit of background work computing a result for files.
type job struct {
	key   string
	files []string
	run   func(ctx context.Context)
}

// worker runs jobs one at a time on a background goroutine, in the
// order they were submitted. A job is only cancelled or dropped when
// its owner declares it stale with dropStale.
type worker struct {
	log logrus.FieldLogger

	// busy is called with the lock held whenever the worker
	// starts or stops working. It must not block.
	busy func(bool)

	mu      sync.Mutex
	pending []*job
	current *job
	running bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newWorker(log logrus.FieldLogger, busy func(bool)) *worker {
	return &worker{log: log, busy: busy}
}

// submit queues j. A job with the same key that is already queued or
// running makes j redundant. It returns false if the worker is closed.
func (w *worker) submit(j job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	if w.current != nil && w.current.key == j.key {
		return true
	}
	for _, q := range w.pending {
		if q.key == j.key {
			return true
		}
	}
	w.pending = append(w.pending, &j)
	if !w.running {
		w.running = true
		w.wg.Add(1)
		if w.busy != nil {
			w.busy(true)
		}
		go w.loop()
	}
	return true
}

// dropStale removes the queued jobs for which stale returns true and
// cancels the running job if stale returns true for it.
func (w *worker) dropStale(stale func(j *job) bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.pending[:0]
	for _, q := range w.pending {
		if stale(q) {
			w.log.WithField("key", q.key).Debug("superseded queued job")
			continue
		}
		kept = append(kept, q)
	}
	for i := len(kept); i < len(w.pending); i++ {
		w.pending[i] = nil
	}
	w.pending = kept
	if w.current != nil && w.cancel != nil && stale(w.current) {
		w.log.WithField("key", w.current.key).Debug("cancelling superseded job")
		w.cancel()
		w.current = nil
	}
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(w.pending) == 0 || w.closed {
			w.pending = nil
			w.current = nil
			w.running = false
			w.cancel = nil
			if w.busy != nil {
				w.busy(false)
			}
			w.mu.Unlock()
			return
		}
		j := w.pending[0]
		w.pending[0] = nil
		w.pending = w.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		w.current, w.cancel = j, cancel
		w.mu.Unlock()

		w.run(ctx, j)
		cancel()

		w.mu.Lock()
		w.current, w.cancel = nil, nil
		w.mu.Unlock()
	}
}

func (w *worker) run(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithFields(logrus.Fields{
				"key":   j.key,
				"panic": r,
			}).Error("background job failed")
		}
	}()
	j.run(ctx)
}

// isBusy returns whether a job is running or queued.
func (w *worker) isBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// close discards the queued jobs and waits for the running job to
// finish. Later submissions are ignored.
func (w *worker) close() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
	w.wg.Wait()
}
