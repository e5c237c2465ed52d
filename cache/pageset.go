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
	"fmt"
	"github.com/lpabon/godbc"
)

type SlotState int

const (
	SlotFree SlotState = iota
	SlotWaiting
	SlotActive
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotWaiting:
		return "waiting"
	case SlotActive:
		return "active"
	}
	return fmt.Sprintf("SlotState(%d)", int(s))
}

// PageKey names a page of a registered dataset.
type PageKey struct {
	File  int   `json:"file"`
	Index int64 `json:"index"`
}

func (k PageKey) String() string {
	return fmt.Sprintf("%d:%d", k.File, k.Index)
}

type SlotDescriptor struct {
	Key   PageKey   `json:"key"`
	State SlotState `json:"state"`

	// Frame of the last Lookup hit
	Age int `json:"age"`

	// Frame the page was uploaded
	Loaded int `json:"loaded"`
}

type PageSetSave struct {
	Slots []SlotDescriptor `json:"slots"`
	Free  []int            `json:"free"`
}

// PageSet maps page keys to atlas slots. It is owned by the goroutine
// that drives the cache and is not safe for concurrent use.
type PageSet struct {
	slots   []SlotDescriptor
	index   map[PageKey]int
	free    []int
	active  int
	waiting int
}

func NewPageSet(slots int) *PageSet {
	godbc.Require(slots > 0)

	p := &PageSet{}
	p.slots = make([]SlotDescriptor, slots)
	p.index = make(map[PageKey]int, slots)
	p.free = make([]int, 0, slots)
	p.Clear()

	godbc.Ensure(p.Free() == slots)

	return p
}

// Search returns the slot holding key and its state.
func (p *PageSet) Search(key PageKey) (slot int, state SlotState, ok bool) {
	slot, ok = p.index[key]
	if !ok {
		return -1, SlotFree, false
	}
	return slot, p.slots[slot].State, true
}

func (p *PageSet) Descriptor(slot int) SlotDescriptor {
	godbc.Require(slot >= 0 && slot < len(p.slots), slot)
	return p.slots[slot]
}

// Touch stamps an active slot with frame and returns its previous age.
func (p *PageSet) Touch(slot, frame int) int {
	godbc.Require(slot >= 0 && slot < len(p.slots), slot)
	godbc.Require(p.slots[slot].State == SlotActive, slot, p.slots[slot].State)

	sd := &p.slots[slot]
	prev := sd.Age
	if frame > sd.Age {
		sd.Age = frame
	}

	return prev
}

// Reserve takes a free slot for key and marks it waiting. Slots freed
// last are handed out first; a new or cleared set starts at slot 0.
func (p *PageSet) Reserve(key PageKey) (int, bool) {
	_, exists := p.index[key]
	godbc.Require(!exists, key)

	if len(p.free) == 0 {
		return -1, false
	}

	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	sd := &p.slots[slot]
	godbc.Check(sd.State == SlotFree, slot, sd.State)
	sd.Key = key
	sd.State = SlotWaiting
	sd.Age = 0
	sd.Loaded = 0

	p.index[key] = slot
	p.waiting++

	return slot, true
}

// Promote makes a waiting slot active as of frame.
func (p *PageSet) Promote(slot, frame int) {
	godbc.Require(slot >= 0 && slot < len(p.slots), slot)
	godbc.Require(p.slots[slot].State == SlotWaiting, slot, p.slots[slot].State)

	sd := &p.slots[slot]
	sd.State = SlotActive
	sd.Age = frame
	sd.Loaded = frame

	p.waiting--
	p.active++
}

// Release returns a slot, waiting or active, to the free list.
func (p *PageSet) Release(slot int) PageKey {
	godbc.Require(slot >= 0 && slot < len(p.slots), slot)
	godbc.Require(p.slots[slot].State != SlotFree, slot)

	sd := &p.slots[slot]
	key := sd.Key

	switch sd.State {
	case SlotWaiting:
		p.waiting--
	case SlotActive:
		p.active--
	}

	delete(p.index, key)
	*sd = SlotDescriptor{}
	p.free = append(p.free, slot)

	return key
}

// Evict releases the least recently touched active slot not touched in
// frame. Ties go to the lowest slot index.
func (p *PageSet) Evict(frame int) (key PageKey, slot int, ok bool) {
	slot = -1
	for i := range p.slots {
		sd := &p.slots[i]
		if sd.State != SlotActive || sd.Age >= frame {
			continue
		}
		if slot < 0 || sd.Age < p.slots[slot].Age {
			slot = i
		}
	}

	if slot < 0 {
		return PageKey{}, -1, false
	}

	return p.Release(slot), slot, true
}

func (p *PageSet) Clear() {
	for i := range p.slots {
		p.slots[i] = SlotDescriptor{}
	}
	for k := range p.index {
		delete(p.index, k)
	}

	// Push in reverse so that slot 0 is on top
	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	p.active = 0
	p.waiting = 0
}

func (p *PageSet) Free() int {
	return len(p.free)
}

func (p *PageSet) Active() int {
	return p.active
}

func (p *PageSet) Waiting() int {
	return p.waiting
}

func (p *PageSet) Len() int {
	return p.active + p.waiting
}

func (p *PageSet) Size() int {
	return len(p.slots)
}

func (p *PageSet) Save() *PageSetSave {
	ps := &PageSetSave{}
	ps.Slots = make([]SlotDescriptor, len(p.slots))
	copy(ps.Slots, p.slots)
	ps.Free = make([]int, len(p.free))
	copy(ps.Free, p.free)

	return ps
}

// Invariant checks that every key owns one slot, every slot is either
// indexed or on the free list, and the counters agree.
func (p *PageSet) Invariant() bool {
	if p.Len()+p.Free() != len(p.slots) {
		return false
	}
	if len(p.index) != p.Len() {
		return false
	}

	active, waiting := 0, 0
	for key, slot := range p.index {
		if slot < 0 || slot >= len(p.slots) || p.slots[slot].Key != key {
			return false
		}
		switch p.slots[slot].State {
		case SlotActive:
			active++
		case SlotWaiting:
			waiting++
		default:
			return false
		}
	}
	if active != p.active || waiting != p.waiting {
		return false
	}

	seen := make(map[int]bool, len(p.free))
	for _, slot := range p.free {
		if seen[slot] || p.slots[slot].State != SlotFree {
			return false
		}
		seen[slot] = true
	}

	return true
}

func (p *PageSet) String() string {
	return fmt.Sprintf("PageSet{"+
		"Size:%d "+
		"Active:%d "+
		"Waiting:%d "+
		"Free:%d"+
		"}",
		len(p.slots),
		p.active,
		p.waiting,
		len(p.free))
}
