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
	"github.com/scmcache/scmcache/tests"
	"sync"
	"testing"
	"time"
)

func newTasks(n int) []*Task {
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i] = NewTask(0, int64(i), 0, i, nil, nil)
	}
	return tasks
}

func TestQueueFifo(t *testing.T) {
	q := NewQueue(3)
	tests.Assert(t, q.Cap() == 3)

	tasks := newTasks(3)
	for _, task := range tasks {
		tests.Assert(t, q.TryPush(task))
	}
	tests.Assert(t, q.Len() == 3)

	for _, task := range tasks {
		got, ok := q.TryPop()
		tests.Assert(t, ok)
		tests.Assert(t, got == task)
	}

	_, ok := q.TryPop()
	tests.Assert(t, !ok)
}

func TestQueueTryPushFull(t *testing.T) {
	q := NewQueue(2)
	tasks := newTasks(3)

	tests.Assert(t, q.TryPush(tasks[0]))
	tests.Assert(t, q.TryPush(tasks[1]))
	tests.Assert(t, !q.TryPush(tasks[2]))
	tests.Assert(t, q.Len() == 2)

	// Wraps around
	q.TryPop()
	tests.Assert(t, q.TryPush(tasks[2]))
	got, _ := q.TryPop()
	tests.Assert(t, got == tasks[1])
	got, _ = q.TryPop()
	tests.Assert(t, got == tasks[2])
}

func TestQueuePopBlocks(t *testing.T) {
	q := NewQueue(1)
	task := newTasks(1)[0]

	done := make(chan *Task)
	go func() {
		got, ok := q.Pop()
		tests.Assert(t, ok)
		done <- got
	}()

	select {
	case <-done:
		t.Fatal("Pop returned from an empty queue")
	case <-time.After(10 * time.Millisecond):
	}

	q.TryPush(task)
	select {
	case got := <-done:
		tests.Assert(t, got == task)
	case <-time.After(5 * time.Second):
		t.Fatal("Pop did not wake")
	}
}

func TestQueuePushBlocks(t *testing.T) {
	q := NewQueue(1)
	tasks := newTasks(2)
	q.TryPush(tasks[0])

	done := make(chan bool)
	go func() {
		done <- q.Push(tasks[1])
	}()

	select {
	case <-done:
		t.Fatal("Push returned on a full queue")
	case <-time.After(10 * time.Millisecond):
	}

	got, _ := q.TryPop()
	tests.Assert(t, got == tasks[0])
	tests.Assert(t, <-done)

	got, _ = q.TryPop()
	tests.Assert(t, got == tasks[1])
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	empty := NewQueue(1)
	full := NewQueue(1)
	tasks := newTasks(2)
	full.TryPush(tasks[0])

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ok := empty.Pop()
			tests.Assert(t, !ok)
		}()
		go func() {
			defer wg.Done()
			tests.Assert(t, !full.Push(tasks[1]))
		}()
	}

	time.Sleep(10 * time.Millisecond)
	empty.Close()
	full.Close()
	wg.Wait()

	tests.Assert(t, empty.Closed())
	tests.Assert(t, !empty.TryPush(tasks[1]))

	// Items queued before the close are left for Drain
	drained := full.Drain()
	tests.Assert(t, len(drained) == 1)
	tests.Assert(t, drained[0] == tasks[0])
	tests.Assert(t, full.Len() == 0)
}

func TestQueueDrainOrder(t *testing.T) {
	q := NewQueue(4)
	tasks := newTasks(4)
	for _, task := range tasks {
		q.TryPush(task)
	}
	q.TryPop()
	q.TryPush(tasks[0])

	drained := q.Drain()
	tests.Assert(t, len(drained) == 4)
	tests.Assert(t, drained[0] == tasks[1])
	tests.Assert(t, drained[3] == tasks[0])
}

func TestQueueConcurrent(t *testing.T) {
	q := NewQueue(4)
	n := 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			tests.Assert(t, q.Push(NewTask(0, int64(i), 0, 0, nil, nil)))
		}
	}()

	for i := 0; i < n; i++ {
		task, ok := q.Pop()
		tests.Assert(t, ok)
		tests.Assert(t, task.Index == int64(i))
	}
	wg.Wait()
}
