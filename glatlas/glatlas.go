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

// Package glatlas keeps the page atlas in an OpenGL texture and
// streams pages into it through a ring of pixel unpack buffers. All
// calls must be made on the goroutine holding the GL context.
package glatlas

import (
	"errors"
	"fmt"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/lpabon/godbc"
	"github.com/scmcache/scmcache/cache"
	"unsafe"
)

var (
	ErrFormat = errors.New("glatlas: unsupported pixel format")
	ErrGL     = errors.New("glatlas: gl error")
)

// Format is the texture format of a page geometry.
type Format struct {
	Internal int32
	Format   uint32
	Type     uint32
}

func PixelFormat(channels, depth int) (Format, error) {
	formats := [4]uint32{gl.RED, gl.RG, gl.RGB, gl.RGBA}
	var internal [4]uint32
	var xtype uint32

	switch depth {
	case 1:
		internal = [4]uint32{gl.R8, gl.RG8, gl.RGB8, gl.RGBA8}
		xtype = gl.UNSIGNED_BYTE
	case 2:
		internal = [4]uint32{gl.R16, gl.RG16, gl.RGB16, gl.RGBA16}
		xtype = gl.UNSIGNED_SHORT
	case 4:
		internal = [4]uint32{gl.R32F, gl.RG32F, gl.RGB32F, gl.RGBA32F}
		xtype = gl.FLOAT
	default:
		return Format{}, fmt.Errorf("%w: %d bytes per channel", ErrFormat, depth)
	}
	if channels < 1 || channels > 4 {
		return Format{}, fmt.Errorf("%w: %d channels", ErrFormat, channels)
	}

	return Format{
		Internal: int32(internal[channels-1]),
		Format:   formats[channels-1],
		Type:     xtype,
	}, nil
}

type Atlas struct {
	geometry cache.Geometry
	format   Format
	texture  uint32
	fbo      uint32
	pbos     []uint32
	staging  map[uint32]bool
}

// New allocates the atlas texture and stages unpack buffers of one
// page each.
func New(g cache.Geometry, stages int) (*Atlas, error) {
	godbc.Require(stages > 0)

	format, err := PixelFormat(g.Channels, g.Depth)
	if err != nil {
		return nil, err
	}

	a := &Atlas{}
	a.geometry = g
	a.format = format
	a.staging = make(map[uint32]bool, stages)

	w := int32(g.Width())
	gl.GenTextures(1, &a.texture)
	gl.BindTexture(gl.TEXTURE_2D, a.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, format.Internal, w, w, 0,
		format.Format, format.Type, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	// Page rows are packed
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	a.pbos = make([]uint32, stages)
	gl.GenBuffers(int32(stages), &a.pbos[0])
	for _, pbo := range a.pbos {
		gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, pbo)
		gl.BufferData(gl.PIXEL_UNPACK_BUFFER, g.PageBytes(), nil, gl.STREAM_DRAW)
		a.staging[pbo] = true
	}
	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)

	gl.GenFramebuffers(1, &a.fbo)

	if err := check("create"); err != nil {
		a.Close()
		return nil, err
	}

	godbc.Ensure(len(a.pbos) == stages)

	return a, nil
}

func check(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%w: %s: 0x%x", ErrGL, op, code)
	}
	return nil
}

func (a *Atlas) Geometry() cache.Geometry {
	return a.geometry
}

func (a *Atlas) Staging() []uint32 {
	handles := make([]uint32, len(a.pbos))
	copy(handles, a.pbos)
	return handles
}

// Texture is the GL name of the atlas texture.
func (a *Atlas) Texture() uint32 {
	return a.texture
}

func (a *Atlas) Upload(handle uint32, slot int, pixels []byte) error {
	g := a.geometry
	n := g.PageBytes()

	if !a.staging[handle] {
		return fmt.Errorf("%w: %d is not a staging buffer", cache.ErrUpload, handle)
	}
	if slot < 0 || slot >= g.Slots() || len(pixels) < n {
		return fmt.Errorf("%w: slot %d, %d bytes", cache.ErrUpload, slot, len(pixels))
	}

	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, handle)
	defer gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)

	ptr := gl.MapBufferRange(gl.PIXEL_UNPACK_BUFFER, 0, n,
		gl.MAP_WRITE_BIT|gl.MAP_INVALIDATE_BUFFER_BIT)
	if ptr == nil {
		return fmt.Errorf("%w: map staging buffer %d", cache.ErrUpload, handle)
	}
	copy(unsafe.Slice((*byte)(ptr), n), pixels[:n])
	if !gl.UnmapBuffer(gl.PIXEL_UNPACK_BUFFER) {
		return fmt.Errorf("%w: staging buffer %d lost", cache.ErrUpload, handle)
	}

	// Copy from the bound unpack buffer, offset 0
	x, y := g.Origin(slot)
	s := int32(g.SlotSize())
	gl.BindTexture(gl.TEXTURE_2D, a.texture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), s, s,
		a.format.Format, a.format.Type, gl.PtrOffset(0))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := check("upload"); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrUpload, err)
	}

	return nil
}

func (a *Atlas) Bind(unit int) error {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, a.texture)
	return check("bind")
}

// Blit draws the whole atlas into the default framebuffer.
func (a *Atlas) Blit(width, height int) error {
	w := int32(a.geometry.Width())

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, a.fbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
		gl.TEXTURE_2D, a.texture, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, w, w, 0, 0, int32(width), int32(height),
		gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	return check("blit")
}

func (a *Atlas) Close() error {
	if a.fbo != 0 {
		gl.DeleteFramebuffers(1, &a.fbo)
		a.fbo = 0
	}
	if len(a.pbos) > 0 {
		gl.DeleteBuffers(int32(len(a.pbos)), &a.pbos[0])
		a.pbos = nil
	}
	if a.texture != 0 {
		gl.DeleteTextures(1, &a.texture)
		a.texture = 0
	}
	return nil
}
