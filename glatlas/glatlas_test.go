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

package glatlas

import (
	"errors"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/scmcache/scmcache/tests"
	"testing"
)

func TestPixelFormat(t *testing.T) {
	f, err := PixelFormat(3, 1)
	tests.Assert(t, err == nil)
	tests.Assert(t, f.Internal == gl.RGB8)
	tests.Assert(t, f.Format == gl.RGB)
	tests.Assert(t, f.Type == gl.UNSIGNED_BYTE)

	f, err = PixelFormat(1, 2)
	tests.Assert(t, err == nil)
	tests.Assert(t, f.Internal == gl.R16)
	tests.Assert(t, f.Type == gl.UNSIGNED_SHORT)

	f, err = PixelFormat(4, 4)
	tests.Assert(t, err == nil)
	tests.Assert(t, f.Internal == gl.RGBA32F)
	tests.Assert(t, f.Format == gl.RGBA)
	tests.Assert(t, f.Type == gl.FLOAT)

	_, err = PixelFormat(5, 1)
	tests.Assert(t, errors.Is(err, ErrFormat))
	_, err = PixelFormat(1, 3)
	tests.Assert(t, errors.Is(err, ErrFormat))
}
