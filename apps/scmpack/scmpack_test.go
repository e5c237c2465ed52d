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

package main

import (
	"bytes"
	"context"
	"errors"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/dataset/pebblestore"
	"github.com/scmcache/scmcache/dataset/tiffdir"
	"github.com/scmcache/scmcache/tests"
	"path/filepath"
	"sync"
	"testing"
)

var testInfo = dataset.Info{
	PageSize: 4,
	Channels: 1,
	Depth:    1,
	Levels:   2,
}

type memWriter struct {
	lock  sync.Mutex
	pages map[int64][]byte
	err   error
}

func (m *memWriter) WritePage(index int64, pixels []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pages[index] = pixels
	return nil
}

func (m *memWriter) Close() error {
	return nil
}

func TestPackSkipsMissingPages(t *testing.T) {
	src := tests.NewMockReader(testInfo)
	src.MockReadPage = func(index int64, level int, buf []byte) (bool, error) {
		if index%2 == 1 {
			return false, nil
		}
		for i := range buf {
			buf[i] = byte(index)
		}
		return true, nil
	}

	dst := &memWriter{pages: make(map[int64][]byte)}
	n, err := Pack(context.Background(), src, dst, 2, 3)
	tests.Assert(t, err == nil, err)
	tests.Assert(t, n == 15, n)
	tests.Assert(t, len(dst.pages) == 15)

	for index, pixels := range dst.pages {
		tests.Assert(t, index%2 == 0, index)
		tests.Assert(t, pixels[0] == byte(index))
		tests.Assert(t, len(pixels) == testInfo.PageBytes())
	}
}

func TestPackReadError(t *testing.T) {
	ioerr := errors.New("disk on fire")
	src := tests.NewMockReader(testInfo)
	src.MockReadPage = func(index int64, level int, buf []byte) (bool, error) {
		if index == 9 {
			return false, ioerr
		}
		return true, nil
	}

	dst := &memWriter{pages: make(map[int64][]byte)}
	_, err := Pack(context.Background(), src, dst, 2, 2)
	tests.Assert(t, errors.Is(err, ioerr), err)
}

func TestPackWriteError(t *testing.T) {
	ioerr := errors.New("full")
	dst := &memWriter{pages: make(map[int64][]byte), err: ioerr}

	_, err := Pack(context.Background(),
		tests.NewMockReader(testInfo), dst, 2, 4)
	tests.Assert(t, errors.Is(err, ioerr), err)
}

func TestPackToPebble(t *testing.T) {
	src, err := dataset.NewSynthetic(testInfo, 0)
	tests.Assert(t, err == nil, err)

	dir := filepath.Join(t.TempDir(), "pages")
	dst, err := Create("pebble:"+dir, testInfo)
	tests.Assert(t, err == nil, err)

	n, err := Pack(context.Background(), src, dst, testInfo.Levels, 4)
	tests.Assert(t, err == nil, err)
	tests.Assert(t, n == dataset.PageCount(testInfo.Levels), n)
	tests.Assert(t, dst.Close() == nil)

	s, err := pebblestore.Open(dir, nil)
	tests.Assert(t, err == nil, err)
	defer s.Close()
	tests.Assert(t, s.Pages() == n, s.Pages())

	want := make([]byte, testInfo.PageBytes())
	got := make([]byte, testInfo.PageBytes())
	for i := int64(0); i < n; i++ {
		src.ReadPage(i, dataset.PageLevel(i), want)
		found, err := s.ReadPage(i, dataset.PageLevel(i), got)
		tests.Assert(t, found && err == nil, i, err)
		tests.Assert(t, bytes.Equal(want, got), i)
	}
}

func TestPackToTiff(t *testing.T) {
	src, err := dataset.NewSynthetic(testInfo, 0)
	tests.Assert(t, err == nil, err)

	dir := t.TempDir()
	dst, err := Create("tiff:"+dir, testInfo)
	tests.Assert(t, err == nil, err)

	n, err := Pack(context.Background(), src, dst, 1, 2)
	tests.Assert(t, err == nil, err)
	tests.Assert(t, n == 6, n)
	tests.Assert(t, dst.Close() == nil)

	d, err := tiffdir.Open(dir)
	tests.Assert(t, err == nil, err)
	defer d.Close()

	buf := make([]byte, testInfo.PageBytes())
	found, err := d.ReadPage(5, 0, buf)
	tests.Assert(t, found && err == nil, err)
	found, err = d.ReadPage(6, 1, buf)
	tests.Assert(t, !found && err == nil, err)
}

func TestCreateUnknown(t *testing.T) {
	_, err := Create("ftp://nowhere", testInfo)
	tests.Assert(t, err != nil)
}
