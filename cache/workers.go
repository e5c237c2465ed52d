//
// Copyright (c) 2014 The pblcache Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package cache

import (
	"github.com/lpabon/godbc"
	"github.com/scmcache/scmcache/message"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
)

// workers is the pool of goroutines that turn needs into loads. They
// only see tasks and the readers the tasks point at.
type workers struct {
	threads int
	needs   *message.Queue
	loads   *message.Queue
	running atomic.Bool
	group   *errgroup.Group
	stats   *workerstats
}

func newWorkers(threads int, needs, loads *message.Queue, stats *workerstats) *workers {
	godbc.Require(threads > 0)
	godbc.Require(needs != nil)
	godbc.Require(loads != nil)
	godbc.Require(stats != nil)

	w := &workers{}
	w.threads = threads
	w.needs = needs
	w.loads = loads
	w.stats = stats
	w.group = &errgroup.Group{}

	return w
}

func (w *workers) start() {
	godbc.Require(!w.running.Load())

	w.running.Store(true)
	for i := 0; i < w.threads; i++ {
		w.group.Go(w.server)
	}
}

func (w *workers) server() error {
	for w.running.Load() {
		t, ok := w.needs.Pop()
		if !ok {
			break
		}

		t.Load()
		w.stats.Record(t.Found, t.Err, t.ReadTime())

		// Blocks until Update makes room or the queue closes
		if !w.loads.Push(t) {
			break
		}
	}

	return nil
}

// stop closes both queues, waits for in flight reads to finish and
// returns every task left in either queue.
func (w *workers) stop() []*message.Task {
	w.running.Store(false)
	w.needs.Close()
	w.loads.Close()
	w.group.Wait()

	tasks := w.needs.Drain()
	tasks = append(tasks, w.loads.Drain()...)

	godbc.Ensure(w.needs.Len() == 0)
	godbc.Ensure(w.loads.Len() == 0)

	return tasks
}
