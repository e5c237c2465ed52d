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
	"errors"
	"fmt"
	"github.com/lpabon/godbc"
)

var (
	ErrUpload = errors.New("atlas upload failed")
)

// Atlas is the texture the cache pages into. Every method is called
// from the goroutine that owns the graphics context.
type Atlas interface {
	Geometry() Geometry

	// Staging returns the handles of the upload buffers recycled by the
	// transfer ring.
	Staging() []uint32

	// Upload copies a bordered page into a slot through a staging buffer.
	Upload(handle uint32, slot int, pixels []byte) error

	Bind(unit int) error
	Close() error
}

// MemoryAtlas keeps the atlas texture in main memory. It is used when
// there is no graphics context, by the benchmark and by tests.
type MemoryAtlas struct {
	geometry Geometry
	texture  []byte
	staging  [][]byte
	bound    int
	uploads  uint64
}

func NewMemoryAtlas(g Geometry, stages int) *MemoryAtlas {
	godbc.Require(g.Grid > 0)
	godbc.Require(g.Page > 0)
	godbc.Require(stages > 0)

	a := &MemoryAtlas{}
	a.geometry = g
	a.bound = -1
	a.texture = make([]byte, g.Width()*g.Width()*g.PixelBytes())
	a.staging = make([][]byte, stages)
	for i := range a.staging {
		a.staging[i] = make([]byte, g.PageBytes())
	}

	godbc.Ensure(len(a.staging) == stages)

	return a
}

func (a *MemoryAtlas) Geometry() Geometry {
	return a.geometry
}

func (a *MemoryAtlas) Staging() []uint32 {
	handles := make([]uint32, len(a.staging))
	for i := range handles {
		handles[i] = uint32(i)
	}
	return handles
}

func (a *MemoryAtlas) Upload(handle uint32, slot int, pixels []byte) error {
	g := a.geometry

	if int(handle) >= len(a.staging) {
		return fmt.Errorf("%w: staging buffer %d", ErrUpload, handle)
	}
	if slot < 0 || slot >= g.Slots() {
		return fmt.Errorf("%w: slot %d", ErrUpload, slot)
	}
	if len(pixels) < g.PageBytes() {
		return fmt.Errorf("%w: %d bytes for a %d byte page", ErrUpload, len(pixels), g.PageBytes())
	}

	stage := a.staging[handle]
	copy(stage, pixels)

	// Copy each page row into the atlas row it lands on
	x, y := g.Origin(slot)
	row := g.SlotSize() * g.PixelBytes()
	stride := g.Width() * g.PixelBytes()
	for r := 0; r < g.SlotSize(); r++ {
		off := (y+r)*stride + x*g.PixelBytes()
		copy(a.texture[off:off+row], stage[r*row:(r+1)*row])
	}
	a.uploads++

	return nil
}

// Page returns a copy of the bordered page stored in a slot.
func (a *MemoryAtlas) Page(slot int) []byte {
	g := a.geometry
	godbc.Require(slot >= 0 && slot < g.Slots(), slot)

	page := make([]byte, g.PageBytes())
	x, y := g.Origin(slot)
	row := g.SlotSize() * g.PixelBytes()
	stride := g.Width() * g.PixelBytes()
	for r := 0; r < g.SlotSize(); r++ {
		off := (y+r)*stride + x*g.PixelBytes()
		copy(page[r*row:(r+1)*row], a.texture[off:off+row])
	}

	return page
}

func (a *MemoryAtlas) Bind(unit int) error {
	a.bound = unit
	return nil
}

// Bound is the unit of the last Bind, -1 if never bound.
func (a *MemoryAtlas) Bound() int {
	return a.bound
}

func (a *MemoryAtlas) Uploads() uint64 {
	return a.uploads
}

func (a *MemoryAtlas) Close() error {
	a.texture = nil
	a.staging = nil
	return nil
}
