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

package rawfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/lpabon/godbc"
	"github.com/natefinch/atomic"
	"github.com/scmcache/scmcache/dataset"
	"golang.org/x/sys/unix"
	"io"
	"os"
)

// A raw page file is a header, then every page of the first Levels
// levels in index order, then one presence byte per page. Absent pages
// are zero filled.
const (
	Magic      = "SCMRAW01"
	HeaderSize = 32
)

type header struct {
	Magic    [8]byte
	PageSize uint32
	Channels uint32
	Depth    uint32
	Levels   uint32
	Reserved [8]byte
}

type File struct {
	fp    *os.File
	data  []byte
	info  dataset.Info
	pages int64
}

// Open maps a raw page file read only.
func Open(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
	}

	f, err := mmap(fp)
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, path, err)
	}

	return f, nil
}

func mmap(fp *os.File) (*File, error) {
	fi, err := fp.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: file too small", dataset.ErrGeometry)
	}

	data, err := unix.Mmap(int(fp.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	var h header
	copy(h.Magic[:], data[:8])
	h.PageSize = binary.LittleEndian.Uint32(data[8:])
	h.Channels = binary.LittleEndian.Uint32(data[12:])
	h.Depth = binary.LittleEndian.Uint32(data[16:])
	h.Levels = binary.LittleEndian.Uint32(data[20:])

	f := &File{fp: fp, data: data}
	f.info = dataset.Info{
		PageSize: int(h.PageSize),
		Channels: int(h.Channels),
		Depth:    int(h.Depth),
		Levels:   int(h.Levels),
	}
	f.pages = dataset.PageCount(f.info.Levels)

	if string(h.Magic[:]) != Magic {
		unix.Munmap(data)
		return nil, fmt.Errorf("%w: bad magic %q", dataset.ErrGeometry, h.Magic[:])
	}
	if err := f.info.Validate(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	if int64(len(data)) != Size(f.info) {
		unix.Munmap(data)
		return nil, fmt.Errorf("%w: file is %d bytes, want %d",
			dataset.ErrGeometry, len(data), Size(f.info))
	}

	return f, nil
}

// Size is the length of a raw page file holding every page of info.
func Size(info dataset.Info) int64 {
	pages := dataset.PageCount(info.Levels)
	return HeaderSize + pages*int64(info.PageBytes()) + pages
}

func (f *File) present(index int64) bool {
	return f.data[Size(f.info)-f.pages+index] != 0
}

func (f *File) Info() dataset.Info {
	return f.info
}

func (f *File) page(index int64) ([]byte, bool) {
	if index < 0 || index >= f.pages || !f.present(index) {
		return nil, false
	}
	n := int64(f.info.PageBytes())
	off := HeaderSize + index*n
	return f.data[off : off+n], true
}

func (f *File) ReadPage(index int64, level int, buf []byte) (bool, error) {
	page, ok := f.page(index)
	if !ok {
		return false, nil
	}
	if len(buf) < len(page) {
		return false, fmt.Errorf("%w: buffer %d < %d", dataset.ErrIO, len(buf), len(page))
	}
	copy(buf, page)

	return true, nil
}

func (f *File) PageBounds(index int64) (float32, float32, error) {
	page, ok := f.page(index)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no page %d", dataset.ErrIO, index)
	}
	min, max := dataset.Bounds(f.info, page)
	return min, max, nil
}

func (f *File) Close() error {
	err := unix.Munmap(f.data)
	f.data = nil
	if cerr := f.fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// Write streams every page of src into w in raw page file layout.
func Write(w io.Writer, src dataset.Reader) error {
	info := src.Info()
	if err := info.Validate(); err != nil {
		return err
	}
	if info.Levels <= 0 {
		return fmt.Errorf("%w: raw page files need a level count", dataset.ErrGeometry)
	}

	bw := bufio.NewWriter(w)
	hdr := make([]byte, HeaderSize)
	copy(hdr, Magic)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(info.PageSize))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(info.Channels))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(info.Depth))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(info.Levels))
	if _, err := bw.Write(hdr); err != nil {
		return err
	}

	pages := dataset.PageCount(info.Levels)
	present := make([]byte, pages)
	buf := make([]byte, info.PageBytes())
	for i := int64(0); i < pages; i++ {
		found, err := src.ReadPage(i, dataset.PageLevel(i), buf)
		if err != nil {
			return err
		}
		if found {
			present[i] = 1
		} else {
			clear(buf)
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	if _, err := bw.Write(present); err != nil {
		return err
	}

	return bw.Flush()
}

// Create writes src to path, replacing any existing file only once the
// new one is complete.
func Create(path string, src dataset.Reader) error {
	godbc.Require(src != nil)

	r, w := io.Pipe()
	go func() {
		w.CloseWithError(Write(w, src))
	}()

	err := atomic.WriteFile(path, r)
	r.Close()

	return err
}
