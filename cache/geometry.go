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
)

const (
	// Frames over which a newly loaded page fades in
	FadeFrames = 60
)

// Geometry is the layout of the atlas: Grid x Grid slots, each holding
// a page of Page x Page pixels plus a one pixel border.
type Geometry struct {
	Grid     int
	Page     int
	Channels int
	Depth    int
}

// Info is the page geometry a dataset must have to use this atlas.
func (g Geometry) Info() dataset.Info {
	return dataset.Info{
		PageSize: g.Page,
		Channels: g.Channels,
		Depth:    g.Depth,
	}
}

func (g Geometry) Slots() int {
	return g.Grid * g.Grid
}

// Texels per slot side, border included
func (g Geometry) SlotSize() int {
	return g.Page + 2
}

// Texels per atlas side
func (g Geometry) Width() int {
	return g.Grid * g.SlotSize()
}

func (g Geometry) PixelBytes() int {
	return g.Channels * g.Depth
}

func (g Geometry) PageBytes() int {
	return g.SlotSize() * g.SlotSize() * g.PixelBytes()
}

// Origin is the texel position of the top left border pixel of a slot.
func (g Geometry) Origin(slot int) (x, y int) {
	return (slot % g.Grid) * g.SlotSize(), (slot / g.Grid) * g.SlotSize()
}

// Offset is the texture coordinate of the first interior pixel of a
// slot.
func (g Geometry) Offset(slot int) (u, v float32) {
	x, y := g.Origin(slot)
	w := float32(g.Width())

	return float32(x+1) / w, float32(y+1) / w
}

// Scale maps page texture coordinates in [0, 1] onto the interior of
// one slot.
func (g Geometry) Scale() float32 {
	return float32(g.Page) / float32(g.SlotSize()) / float32(g.Grid)
}

// Fade is the blend factor of a page promoted at frame loaded.
func Fade(frame, loaded int) float32 {
	a := float32(frame-loaded) / FadeFrames

	if a > 1 {
		return 1
	} else if a < 0 {
		return 0
	}
	return a
}
