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
	"fmt"
	"math"
	"time"
)

// Synthetic is a procedural dataset covering every page of the first
// Levels levels. Pixel values are a function of the page index and
// position only, so any page can be checked after it is loaded.
type Synthetic struct {
	info  Info
	delay time.Duration
}

func NewSynthetic(info Info, delay time.Duration) (*Synthetic, error) {
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if info.Levels == 0 {
		return nil, fmt.Errorf("%w: synthetic dataset needs levels", ErrOpen)
	}
	return &Synthetic{info: info, delay: delay}, nil
}

// SyntheticValue is the channel 0 value stored at x, y of page index,
// before scaling to the channel depth.
func SyntheticValue(index int64, x, y int) float32 {
	v := float64(index%97)/97 + float64(x+y)/1024
	return float32(v - math.Floor(v))
}

func (s *Synthetic) Info() Info {
	return s.info
}

func (s *Synthetic) ReadPage(index int64, level int, buf []byte) (bool, error) {
	if index < 0 || PageLevel(index) >= s.info.Levels {
		return false, nil
	}
	if len(buf) < s.info.PageBytes() {
		return false, fmt.Errorf("%w: buffer %d < %d", ErrIO, len(buf), s.info.PageBytes())
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.fill(index, buf)

	return true, nil
}

func (s *Synthetic) fill(index int64, buf []byte) {
	n := s.info.PageSize + 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := SyntheticValue(index, x, y)
			off := y*s.info.Stride() + x*s.info.Channels*s.info.Depth
			for c := 0; c < s.info.Channels; c++ {
				p := buf[off+c*s.info.Depth:]
				switch s.info.Depth {
				case 1:
					p[0] = byte(v * math.MaxUint8)
				case 2:
					binary.LittleEndian.PutUint16(p, uint16(v*math.MaxUint16))
				default:
					binary.LittleEndian.PutUint32(p, math.Float32bits(v))
				}
			}
		}
	}
}

func (s *Synthetic) PageBounds(index int64) (float32, float32, error) {
	if index < 0 || PageLevel(index) >= s.info.Levels {
		return 0, 0, fmt.Errorf("%w: no page %d", ErrIO, index)
	}
	buf := make([]byte, s.info.PageBytes())
	s.fill(index, buf)
	min, max := Bounds(s.info, buf)

	return min, max, nil
}

func (s *Synthetic) Close() error {
	return nil
}
