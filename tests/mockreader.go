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

package tests

import (
	"github.com/scmcache/scmcache/dataset"
)

// MockReader is a dataset.Reader whose behavior is set per test by
// replacing its Mock functions.
type MockReader struct {
	MockInfo       func() dataset.Info
	MockReadPage   func(index int64, level int, buf []byte) (bool, error)
	MockPageBounds func(index int64) (float32, float32, error)
	MockClose      func() error
}

// NewMockReader returns a reader that finds every page and fills it
// with the low byte of the page index.
func NewMockReader(info dataset.Info) *MockReader {
	m := &MockReader{}
	m.MockInfo = func() dataset.Info {
		return info
	}

	m.MockReadPage = func(index int64, level int, buf []byte) (bool, error) {
		for i := range buf {
			buf[i] = byte(index)
		}
		return true, nil
	}

	m.MockPageBounds = func(index int64) (float32, float32, error) {
		return 0, 1, nil
	}

	m.MockClose = func() error { return nil }

	return m
}

func (m *MockReader) Info() dataset.Info {
	return m.MockInfo()
}

func (m *MockReader) ReadPage(index int64, level int, buf []byte) (bool, error) {
	return m.MockReadPage(index, level, buf)
}

func (m *MockReader) PageBounds(index int64) (float32, float32, error) {
	return m.MockPageBounds(index)
}

func (m *MockReader) Close() error {
	return m.MockClose()
}

// MockOpener serves the given readers by name.
func MockOpener(readers map[string]dataset.Reader) dataset.Opener {
	return func(name string) (dataset.Reader, error) {
		if r, ok := readers[name]; ok {
			return r, nil
		}
		return nil, dataset.ErrOpen
	}
}
