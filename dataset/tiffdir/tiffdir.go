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

package tiffdir

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/natefinch/atomic"
	"github.com/scmcache/scmcache/dataset"
	"github.com/tailscale/hujson"
	"golang.org/x/image/tiff"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	MetaFile = "meta.json"
)

// Dir is a dataset stored as one TIFF image per bordered page, named
// <index>.tif, next to a meta.json holding the dataset Info. The meta
// file may contain comments.
type Dir struct {
	dir  string
	info dataset.Info
}

func Open(dir string) (*Dir, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, MetaFile, err)
	}

	d := &Dir{dir: dir}
	if err := json.Unmarshal(std, &d.info); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, MetaFile, err)
	}
	if err := supported(d.info); err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
	}

	return d, nil
}

// Create makes an empty page directory.
func Create(dir string, info dataset.Info) (*Dir, error) {
	if err := supported(info); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(filepath.Join(dir, MetaFile), bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Dir{dir: dir, info: info}, nil
}

func supported(info dataset.Info) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if info.Depth == 4 {
		return fmt.Errorf("%w: tiff pages hold 8 or 16 bit channels", dataset.ErrGeometry)
	}
	return nil
}

func (d *Dir) path(index int64) string {
	return filepath.Join(d.dir, strconv.FormatInt(index, 10)+".tif")
}

func (d *Dir) Info() dataset.Info {
	return d.info
}

func (d *Dir) ReadPage(index int64, level int, buf []byte) (bool, error) {
	f, err := os.Open(d.path(index))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("%w: %w", dataset.ErrIO, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}
	if err := d.unpack(img, buf); err != nil {
		return false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}

	return true, nil
}

func (d *Dir) PageBounds(index int64) (float32, float32, error) {
	buf := make([]byte, d.info.PageBytes())
	found, err := d.ReadPage(index, dataset.PageLevel(index), buf)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, fmt.Errorf("%w: no page %d", dataset.ErrIO, index)
	}

	min, max := dataset.Bounds(d.info, buf)
	return min, max, nil
}

// WritePage encodes a bordered page as TIFF.
func (d *Dir) WritePage(index int64, pixels []byte) error {
	if len(pixels) != d.info.PageBytes() {
		return fmt.Errorf("%w: page %d has %d bytes, want %d",
			dataset.ErrGeometry, index, len(pixels), d.info.PageBytes())
	}

	var b bytes.Buffer
	if err := tiff.Encode(&b, d.pack(pixels), &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return err
	}

	return atomic.WriteFile(d.path(index), &b)
}

func (d *Dir) Close() error {
	return nil
}

func (d *Dir) unpack(img image.Image, buf []byte) error {
	n := d.info.PageSize + 2
	r := img.Bounds()
	if r.Dx() != n || r.Dy() != n {
		return fmt.Errorf("%w: image is %dx%d, want %dx%d",
			dataset.ErrGeometry, r.Dx(), r.Dy(), n, n)
	}
	if len(buf) < d.info.PageBytes() {
		return fmt.Errorf("%w: buffer %d < %d", dataset.ErrIO, len(buf), d.info.PageBytes())
	}

	pixel := d.info.Channels * d.info.Depth
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := img.At(r.Min.X+x, r.Min.Y+y)
			p := buf[y*d.info.Stride()+x*pixel:]

			if d.info.Depth == 1 {
				switch d.info.Channels {
				case 1:
					p[0] = color.GrayModel.Convert(c).(color.Gray).Y
				default:
					v := color.NRGBAModel.Convert(c).(color.NRGBA)
					copy(p[:d.info.Channels], channels8(v, d.info.Channels))
				}
			} else {
				switch d.info.Channels {
				case 1:
					binary.LittleEndian.PutUint16(p, color.Gray16Model.Convert(c).(color.Gray16).Y)
				default:
					v := color.NRGBA64Model.Convert(c).(color.NRGBA64)
					for i, s := range channels16(v, d.info.Channels) {
						binary.LittleEndian.PutUint16(p[2*i:], s)
					}
				}
			}
		}
	}

	return nil
}

func (d *Dir) pack(pixels []byte) image.Image {
	n := d.info.PageSize + 2
	r := image.Rect(0, 0, n, n)
	pixel := d.info.Channels * d.info.Depth

	switch {
	case d.info.Channels == 1 && d.info.Depth == 1:
		img := image.NewGray(r)
		for y := 0; y < n; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+n], pixels[y*d.info.Stride():])
		}
		return img

	case d.info.Channels == 1:
		img := image.NewGray16(r)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v := binary.LittleEndian.Uint16(pixels[y*d.info.Stride()+x*pixel:])
				img.SetGray16(x, y, color.Gray16{Y: v})
			}
		}
		return img

	case d.info.Depth == 1:
		img := image.NewNRGBA(r)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				p := pixels[y*d.info.Stride()+x*pixel:]
				img.SetNRGBA(x, y, nrgba8(p, d.info.Channels))
			}
		}
		return img

	default:
		img := image.NewNRGBA64(r)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				p := pixels[y*d.info.Stride()+x*pixel:]
				var s [4]uint16
				for i := 0; i < d.info.Channels; i++ {
					s[i] = binary.LittleEndian.Uint16(p[2*i:])
				}
				img.SetNRGBA64(x, y, nrgba16(s, d.info.Channels))
			}
		}
		return img
	}
}

// Two channel pages are stored as red and alpha.

func channels8(v color.NRGBA, n int) []byte {
	switch n {
	case 2:
		return []byte{v.R, v.A}
	case 3:
		return []byte{v.R, v.G, v.B}
	}
	return []byte{v.R, v.G, v.B, v.A}
}

func channels16(v color.NRGBA64, n int) []uint16 {
	switch n {
	case 2:
		return []uint16{v.R, v.A}
	case 3:
		return []uint16{v.R, v.G, v.B}
	}
	return []uint16{v.R, v.G, v.B, v.A}
}

func nrgba8(p []byte, n int) color.NRGBA {
	switch n {
	case 2:
		return color.NRGBA{R: p[0], A: p[1]}
	case 3:
		return color.NRGBA{R: p[0], G: p[1], B: p[2], A: 0xff}
	}
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

func nrgba16(s [4]uint16, n int) color.NRGBA64 {
	switch n {
	case 2:
		return color.NRGBA64{R: s[0], A: s[1]}
	case 3:
		return color.NRGBA64{R: s[0], G: s[1], B: s[2], A: 0xffff}
	}
	return color.NRGBA64{R: s[0], G: s[1], B: s[2], A: s[3]}
}
