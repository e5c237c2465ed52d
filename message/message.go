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
	"fmt"
	"time"
)

// PageReader is the part of a dataset a worker needs to service a Task.
// Implementations must allow concurrent calls.
type PageReader interface {
	ReadPage(index int64, level int, buf []byte) (found bool, err error)
}

type TaskStats struct {
	start time.Time
	read  time.Duration
}

// Task is a single page load. The controller fills in the request
// fields and a buffer, a worker fills in Found and Err, and the
// controller takes the buffer back when the Task comes off the
// loads queue.
type Task struct {
	File   int
	Index  int64
	Level  int
	Slot   int
	Reader PageReader
	Buffer []byte
	Found  bool
	Err    error
	Stats  TaskStats
}

func NewTask(file int, index int64, level, slot int,
	reader PageReader, buffer []byte) *Task {
	return &Task{
		File:   file,
		Index:  index,
		Level:  level,
		Slot:   slot,
		Reader: reader,
		Buffer: buffer,
	}
}

func (t *Task) TimeStart() {
	t.Stats.start = time.Now()
}

func (t *Task) TimeElapsed() time.Duration {
	return time.Now().Sub(t.Stats.start)
}

// ReadTime is how long the dataset read took inside Load.
func (t *Task) ReadTime() time.Duration {
	return t.Stats.read
}

// Load reads the page into the task buffer. A read error is kept on
// the task and reported as not found; it never escapes the worker.
func (t *Task) Load() {
	start := time.Now()
	found, err := t.Reader.ReadPage(t.Index, t.Level, t.Buffer)
	t.Stats.read = time.Now().Sub(start)

	t.Err = err
	t.Found = found && err == nil
}

func (t *Task) String() string {
	return fmt.Sprintf("Task{"+
		"File:%d "+
		"Index:%d "+
		"Level:%d "+
		"Slot:%d "+
		"Found:%v "+
		"Err:%v"+
		"}",
		t.File,
		t.Index,
		t.Level,
		t.Slot,
		t.Found,
		t.Err)
}
