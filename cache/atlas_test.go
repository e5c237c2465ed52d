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
	"github.com/scmcache/scmcache/tests"
	"testing"
)

func TestMemoryAtlasUpload(t *testing.T) {
	g := Geometry{Grid: 2, Page: 2, Channels: 1, Depth: 1}
	a := NewMemoryAtlas(g, 2)
	tests.Assert(t, len(a.Staging()) == 2)
	tests.Assert(t, a.Bound() == -1)

	page := make([]byte, g.PageBytes())
	for i := range page {
		page[i] = byte(i + 1)
	}

	err := a.Upload(1, 3, page)
	tests.Assert(t, err == nil)
	tests.Assert(t, a.Uploads() == 1)

	got := a.Page(3)
	for i := range page {
		tests.Assert(t, got[i] == page[i], i)
	}

	// Neighbors untouched
	for _, slot := range []int{0, 1, 2} {
		for _, b := range a.Page(slot) {
			tests.Assert(t, b == 0)
		}
	}

	tests.Assert(t, a.Bind(2) == nil)
	tests.Assert(t, a.Bound() == 2)
}

func TestMemoryAtlasUploadErrors(t *testing.T) {
	g := Geometry{Grid: 2, Page: 2, Channels: 1, Depth: 1}
	a := NewMemoryAtlas(g, 1)
	page := make([]byte, g.PageBytes())

	err := a.Upload(1, 0, page)
	tests.Assert(t, errors.Is(err, ErrUpload))

	err = a.Upload(0, 4, page)
	tests.Assert(t, errors.Is(err, ErrUpload))

	err = a.Upload(0, 0, page[:3])
	tests.Assert(t, errors.Is(err, ErrUpload))
	tests.Assert(t, a.Uploads() == 0)
}
