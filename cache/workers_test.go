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
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/message"
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestWorkersLoad(t *testing.T) {
	info := dataset.Info{PageSize: 2, Channels: 1, Depth: 1, Levels: 1}
	reader := tests.NewMockReader(info)
	reader.MockReadPage = func(index int64, level int, buf []byte) (bool, error) {
		buf[0] = byte(index)
		return index%2 == 0, nil
	}

	needs := message.NewQueue(8)
	loads := message.NewQueue(8)
	stats := &workerstats{}
	w := newWorkers(3, needs, loads, stats)
	w.start()

	for i := 0; i < 6; i++ {
		tests.Assert(t, needs.TryPush(message.NewTask(0, int64(i), 0, i,
			reader, make([]byte, info.PageBytes()))))
	}

	require.Eventually(t, func() bool {
		return loads.Len() == 6
	}, 5*time.Second, time.Millisecond)

	found := 0
	for i := 0; i < 6; i++ {
		task, ok := loads.TryPop()
		tests.Assert(t, ok)
		tests.Assert(t, task.Buffer[0] == byte(task.Index))
		if task.Found {
			found++
		}
	}
	tests.Assert(t, found == 3)

	leftover := w.stop()
	tests.Assert(t, len(leftover) == 0)
	tests.Assert(t, !w.running.Load())
	tests.Assert(t, stats.Stats().Reads == 6)
	tests.Assert(t, stats.Stats().NotFound == 3)
}

func TestWorkersStopReturnsQueued(t *testing.T) {
	info := dataset.Info{PageSize: 2, Channels: 1, Depth: 1, Levels: 1}
	release := make(chan struct{})
	reader := tests.NewMockReader(info)
	reader.MockReadPage = func(index int64, level int, buf []byte) (bool, error) {
		<-release
		return true, nil
	}

	needs := message.NewQueue(4)
	loads := message.NewQueue(4)
	w := newWorkers(1, needs, loads, &workerstats{})
	w.start()

	for i := 0; i < 3; i++ {
		needs.TryPush(message.NewTask(0, int64(i), 0, i, reader, nil))
	}

	// One task is in flight, the others still queued
	require.Eventually(t, func() bool {
		return needs.Len() == 2
	}, 5*time.Second, time.Millisecond)

	done := make(chan []*message.Task)
	go func() {
		done <- w.stop()
	}()
	require.Eventually(t, func() bool {
		return needs.Closed() && loads.Closed()
	}, 5*time.Second, time.Millisecond)

	// The in flight read finishes but has nowhere to go
	close(release)
	leftover := <-done
	tests.Assert(t, len(leftover) == 2, len(leftover))
	tests.Assert(t, leftover[0].Index == 1)
	tests.Assert(t, loads.Len() == 0)
}
