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
	"fmt"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lpabon/godbc"
	"github.com/scmcache/scmcache/dataset"
	"github.com/vmihailenco/msgpack/v5"
)

type meta struct {
	Info  dataset.Info `msgpack:"info"`
	Pages int64        `msgpack:"pages"`
}

type record struct {
	Min    float32 `msgpack:"min"`
	Max    float32 `msgpack:"max"`
	Pixels []byte  `msgpack:"pixels"`
}

// Store keeps the bordered pages of one dataset in a pebble database,
// one msgpack record per page together with its value range.
type Store struct {
	db   *pebble.DB
	meta meta
	opt  *pebble.WriteOptions
}

// Open opens an existing store for reading. A nil fs means the local
// disk.
func Open(dir string, fs vfs.FS) (*Store, error) {
	if fs == nil {
		fs = vfs.Default
	}

	db, err := pebble.Open(dir, &pebble.Options{
		FS:               fs,
		ErrorIfNotExists: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, dir, err)
	}

	s := &Store{db: db, opt: pebble.NoSync}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, dir, err)
	}

	return s, nil
}

// Create makes a new empty store for pages of the given geometry.
func Create(dir string, fs vfs.FS, info dataset.Info) (*Store, error) {
	if fs == nil {
		fs = vfs.Default
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	db, err := pebble.Open(dir, &pebble.Options{
		FS:            fs,
		ErrorIfExists: true,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, opt: pebble.Sync}
	s.meta.Info = info
	if err := s.saveMeta(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) loadMeta() error {
	v, closer, err := s.db.Get(metaKey)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := msgpack.Unmarshal(v, &s.meta); err != nil {
		return err
	}
	return s.meta.Info.Validate()
}

func (s *Store) saveMeta() error {
	b, err := msgpack.Marshal(&s.meta)
	if err != nil {
		return err
	}
	return s.db.Set(metaKey, b, s.opt)
}

func (s *Store) Info() dataset.Info {
	return s.meta.Info
}

// Pages is the number of pages written to the store.
func (s *Store) Pages() int64 {
	return s.meta.Pages
}

// WritePage stores a bordered page.
func (s *Store) WritePage(index int64, pixels []byte) error {
	godbc.Require(index >= 0, index)

	info := s.meta.Info
	if len(pixels) != info.PageBytes() {
		return fmt.Errorf("%w: page %d has %d bytes, want %d",
			dataset.ErrGeometry, index, len(pixels), info.PageBytes())
	}

	if _, closer, err := s.db.Get(PageKey(index)); err == nil {
		closer.Close()
	} else if errors.Is(err, pebble.ErrNotFound) {
		s.meta.Pages++
	} else {
		return err
	}

	r := record{Pixels: pixels}
	r.Min, r.Max = dataset.Bounds(info, pixels)
	b, err := msgpack.Marshal(&r)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(PageKey(index), b, nil); err != nil {
		return err
	}
	mb, err := msgpack.Marshal(&s.meta)
	if err != nil {
		return err
	}
	if err := batch.Set(metaKey, mb, nil); err != nil {
		return err
	}

	return batch.Commit(s.opt)
}

func (s *Store) read(index int64) (*record, bool, error) {
	v, closer, err := s.db.Get(PageKey(index))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}
	defer closer.Close()

	// Unmarshal copies the pixels out of the pebble buffer
	r := &record{}
	if err := msgpack.Unmarshal(v, r); err != nil {
		return nil, false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}

	return r, true, nil
}

func (s *Store) ReadPage(index int64, level int, buf []byte) (bool, error) {
	r, found, err := s.read(index)
	if !found || err != nil {
		return false, err
	}
	if len(r.Pixels) != s.meta.Info.PageBytes() || len(buf) < len(r.Pixels) {
		return false, fmt.Errorf("%w: page %d has %d bytes", dataset.ErrIO, index, len(r.Pixels))
	}
	copy(buf, r.Pixels)

	return true, nil
}

func (s *Store) PageBounds(index int64) (float32, float32, error) {
	r, found, err := s.read(index)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, fmt.Errorf("%w: no page %d", dataset.ErrIO, index)
	}
	return r.Min, r.Max, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
