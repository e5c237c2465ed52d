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

package message

import (
	"github.com/lpabon/godbc"
	"sync"
)

// Queue is a bounded FIFO of tasks shared between the controller and
// the workers. Producers and consumers choose per call whether to
// block. Close wakes every blocked caller.
type Queue struct {
	items    []*Task
	head     int
	count    int
	closed   bool
	lock     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

func NewQueue(size int) *Queue {
	godbc.Require(size > 0, size)

	q := &Queue{}
	q.items = make([]*Task, size)
	q.notEmpty = sync.NewCond(&q.lock)
	q.notFull = sync.NewCond(&q.lock)

	godbc.Ensure(q.Cap() == size)

	return q
}

func (q *Queue) push(t *Task) {
	q.items[(q.head+q.count)%len(q.items)] = t
	q.count++
	q.notEmpty.Signal()
}

func (q *Queue) pop() *Task {
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Signal()

	return t
}

// TryPush adds t without waiting. It returns false when the queue is
// full or closed.
func (q *Queue) TryPush(t *Task) bool {
	godbc.Require(t != nil)

	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed || q.count == len(q.items) {
		return false
	}
	q.push(t)

	return true
}

// Push waits for room. It returns false if the queue was closed
// before t could be added.
func (q *Queue) Push(t *Task) bool {
	godbc.Require(t != nil)

	q.lock.Lock()
	defer q.lock.Unlock()

	for q.count == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.push(t)

	return true
}

// Pop waits for a task. It returns false once the queue is closed;
// whatever is still queued is left for Drain.
func (q *Queue) Pop() (*Task, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.closed {
		return nil, false
	}

	return q.pop(), true
}

// TryPop returns the oldest task without waiting.
func (q *Queue) TryPop() (*Task, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.count == 0 {
		return nil, false
	}

	return q.pop(), true
}

func (q *Queue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes and returns everything still queued, oldest first.
func (q *Queue) Drain() []*Task {
	q.lock.Lock()
	defer q.lock.Unlock()

	tasks := make([]*Task, 0, q.count)
	for q.count > 0 {
		tasks = append(tasks, q.pop())
	}

	return tasks
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.count
}

func (q *Queue) Cap() int {
	return len(q.items)
}

func (q *Queue) Closed() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.closed
}
