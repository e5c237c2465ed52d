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

package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrOpen     = errors.New("dataset: cannot open")
	ErrIO       = errors.New("dataset: read failed")
	ErrGeometry = errors.New("dataset: invalid page geometry")
)

// Info describes the pages of a dataset. Every page is stored with a
// one pixel border on each side, so a page occupies
// (PageSize+2) x (PageSize+2) pixels of Channels x Depth bytes.
type Info struct {
	PageSize int `json:"page_size" yaml:"page_size" msgpack:"page_size"`
	Channels int `json:"channels" yaml:"channels" msgpack:"channels"`
	Depth    int `json:"depth" yaml:"depth" msgpack:"depth"`

	// Number of quadtree levels present, 0 when unknown.
	Levels int `json:"levels" yaml:"levels" msgpack:"levels"`
}

// Reader supplies page data for one dataset. ReadPage is called from
// several worker goroutines at once.
type Reader interface {
	Info() Info

	// ReadPage fills buf with the bordered page. found is false when the
	// dataset has no data for index at this level.
	ReadPage(index int64, level int, buf []byte) (found bool, err error)

	// PageBounds returns the normalized value range of the page. It is
	// a direct read and is never cached.
	PageBounds(index int64) (min, max float32, err error)

	Close() error
}

// Opener opens a dataset by name. Errors wrap ErrOpen.
type Opener func(name string) (Reader, error)

func (i Info) Stride() int {
	return (i.PageSize + 2) * i.Channels * i.Depth
}

func (i Info) PageBytes() int {
	return (i.PageSize + 2) * i.Stride()
}

func (i Info) Validate() error {
	switch {
	case i.PageSize <= 0:
		return fmt.Errorf("%w: page size %d", ErrGeometry, i.PageSize)
	case i.Channels < 1 || i.Channels > 4:
		return fmt.Errorf("%w: %d channels", ErrGeometry, i.Channels)
	case i.Depth != 1 && i.Depth != 2 && i.Depth != 4:
		return fmt.Errorf("%w: %d bytes per channel", ErrGeometry, i.Depth)
	case i.Levels < 0:
		return fmt.Errorf("%w: %d levels", ErrGeometry, i.Levels)
	}
	return nil
}

// Matches reports whether two datasets can share an atlas. Levels do
// not matter.
func (i Info) Matches(o Info) bool {
	return i.PageSize == o.PageSize &&
		i.Channels == o.Channels &&
		i.Depth == o.Depth
}

// Sample returns channel 0 of a pixel normalized to [0, 1]. Depth 4
// is read as a little endian float32.
func (i Info) Sample(pixels []byte, x, y int) float32 {
	off := y*i.Stride() + x*i.Channels*i.Depth

	switch i.Depth {
	case 1:
		return float32(pixels[off]) / math.MaxUint8
	case 2:
		return float32(binary.LittleEndian.Uint16(pixels[off:])) / math.MaxUint16
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(pixels[off:]))
	}
}

// Bounds scans the interior of a bordered page for its value range.
func Bounds(info Info, pixels []byte) (min, max float32) {
	min = float32(math.Inf(1))
	max = float32(math.Inf(-1))

	for y := 1; y <= info.PageSize; y++ {
		for x := 1; x <= info.PageSize; x++ {
			v := info.Sample(pixels, x, y)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}

	return
}
