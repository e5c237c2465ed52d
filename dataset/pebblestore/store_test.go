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

package pebblestore

import (
	"errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/require"
	"testing"
)

func testInfo() dataset.Info {
	return dataset.Info{PageSize: 4, Channels: 1, Depth: 1, Levels: 2}
}

func TestPageKey(t *testing.T) {
	for _, index := range []int64{0, 5, 6, 1 << 40} {
		got, ok := PageIndex(PageKey(index))
		tests.Assert(t, ok)
		tests.Assert(t, got == index)
	}

	_, ok := PageIndex(metaKey)
	tests.Assert(t, !ok)

	// Keys sort in page order
	tests.Assert(t, string(PageKey(255)) < string(PageKey(256)))
}

func TestStoreWriteRead(t *testing.T) {
	fs := vfs.NewMem()
	info := testInfo()

	s, err := Create("pages", fs, info)
	require.NoError(t, err)

	src, err := dataset.NewSynthetic(info, 0)
	require.NoError(t, err)
	for _, index := range []int64{0, 3, 7} {
		buf := make([]byte, info.PageBytes())
		found, err := src.ReadPage(index, dataset.PageLevel(index), buf)
		require.NoError(t, err)
		require.True(t, found)
		require.NoError(t, s.WritePage(index, buf))
	}

	// Rewrites do not count twice
	buf := make([]byte, info.PageBytes())
	src.ReadPage(3, 0, buf)
	require.NoError(t, s.WritePage(3, buf))
	tests.Assert(t, s.Pages() == 3)
	require.NoError(t, s.Close())

	s, err = Open("pages", fs)
	require.NoError(t, err)
	defer s.Close()

	tests.Assert(t, s.Info() == info)
	tests.Assert(t, s.Pages() == 3)

	got := make([]byte, info.PageBytes())
	found, err := s.ReadPage(7, 1, got)
	tests.Assert(t, err == nil)
	tests.Assert(t, found)

	want := make([]byte, info.PageBytes())
	src.ReadPage(7, 1, want)
	require.Equal(t, want, got)

	found, err = s.ReadPage(8, 1, got)
	tests.Assert(t, err == nil)
	tests.Assert(t, !found)

	min, max, err := s.PageBounds(7)
	require.NoError(t, err)
	wmin, wmax := dataset.Bounds(info, want)
	tests.Assert(t, min == wmin && max == wmax)

	_, _, err = s.PageBounds(8)
	tests.Assert(t, errors.Is(err, dataset.ErrIO))
}

func TestStoreWriteWrongSize(t *testing.T) {
	s, err := Create("pages", vfs.NewMem(), testInfo())
	require.NoError(t, err)
	defer s.Close()

	err = s.WritePage(0, make([]byte, 3))
	tests.Assert(t, errors.Is(err, dataset.ErrGeometry))
	tests.Assert(t, s.Pages() == 0)
}

func TestStoreOpenMissing(t *testing.T) {
	_, err := Open("nothere", vfs.NewMem())
	tests.Assert(t, errors.Is(err, dataset.ErrOpen))
}
