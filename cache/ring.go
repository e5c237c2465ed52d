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
	"sync"
)

// Ring hands out staging buffer handles in round robin order so that
// an upload never waits for the previous one to finish on the GPU.
// Callers must not hold more than Len handles at once.
type Ring struct {
	handles []uint32
	next    int
	lock    sync.Mutex
}

func NewRing(handles []uint32) *Ring {
	godbc.Require(len(handles) > 0)

	r := &Ring{}
	r.handles = make([]uint32, len(handles))
	copy(r.handles, handles)

	return r
}

func (r *Ring) Acquire() uint32 {
	r.lock.Lock()
	defer r.lock.Unlock()

	h := r.handles[r.next]
	r.next = (r.next + 1) % len(r.handles)

	return h
}

func (r *Ring) Len() int {
	return len(r.handles)
}
