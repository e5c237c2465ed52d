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
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestGeometrySizes(t *testing.T) {
	g := Geometry{Grid: 4, Page: 6, Channels: 3, Depth: 2}

	tests.Assert(t, g.Slots() == 16)
	tests.Assert(t, g.SlotSize() == 8)
	tests.Assert(t, g.Width() == 32)
	tests.Assert(t, g.PixelBytes() == 6)
	tests.Assert(t, g.PageBytes() == 8*8*6)

	info := g.Info()
	tests.Assert(t, info.PageSize == 6)
	tests.Assert(t, info.Channels == 3)
	tests.Assert(t, info.Depth == 2)
}

func TestGeometryOrigin(t *testing.T) {
	g := Geometry{Grid: 4, Page: 6, Channels: 1, Depth: 1}

	x, y := g.Origin(0)
	tests.Assert(t, x == 0 && y == 0)

	x, y = g.Origin(5)
	tests.Assert(t, x == 8 && y == 8)

	x, y = g.Origin(7)
	tests.Assert(t, x == 24 && y == 8)
}

func TestGeometryTexcoords(t *testing.T) {
	g := Geometry{Grid: 2, Page: 6, Channels: 1, Depth: 1}

	// ((l % s) * (n + 2) + 1) / (s * (n + 2))
	u, v := g.Offset(3)
	assert.InDelta(t, 9.0/16.0, u, 1e-6)
	assert.InDelta(t, 9.0/16.0, v, 1e-6)

	u, v = g.Offset(1)
	assert.InDelta(t, 9.0/16.0, u, 1e-6)
	assert.InDelta(t, 1.0/16.0, v, 1e-6)

	// n / (n + 2) / s
	assert.InDelta(t, 6.0/8.0/2.0, g.Scale(), 1e-6)

	// The far edge of the page interior stops before the border
	assert.InDelta(t, 15.0/16.0, u+g.Scale(), 1e-6)
}

func TestFade(t *testing.T) {
	tests.Assert(t, Fade(10, 10) == 0)
	tests.Assert(t, Fade(5, 10) == 0)
	tests.Assert(t, Fade(70, 10) == 1)
	tests.Assert(t, Fade(1000, 10) == 1)
	assert.InDelta(t, 0.5, Fade(40, 10), 1e-6)
}
