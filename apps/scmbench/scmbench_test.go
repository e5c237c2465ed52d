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
	"github.com/scmcache/scmcache/cache"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/internal/datasource"
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/require"
	"math/rand"
	"testing"
	"time"
)

func TestWorkloadRange(t *testing.T) {
	w := NewWorkload(rand.New(rand.NewSource(1)), []int{3, 5}, 2, 1.2)

	for i := 0; i < 10000; i++ {
		file, index := w.Next()
		tests.Assert(t, file == 3 || file == 5, file)
		tests.Assert(t, index >= 0 && index < dataset.PageCount(3), index)
		tests.Assert(t, dataset.PageLevel(index) <= 2, index)
	}
}

func TestWorkloadSkew(t *testing.T) {
	w := NewWorkload(rand.New(rand.NewSource(1)), []int{0}, 3, 1.5)

	counts := make(map[int64]int)
	for i := 0; i < 10000; i++ {
		_, index := w.Next()
		counts[index]++
	}

	// Low indices are the popular ones
	tests.Assert(t, counts[0] > counts[6], counts[0], counts[6])
	tests.Assert(t, counts[0] > 1000, counts[0])
}

func TestBenchFrames(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.GridSize = 8
	cfg.PageSize = 8
	cfg.Channels = 1

	g := cfg.Geometry()
	c, err := cache.NewCache(cfg,
		cache.NewMemoryAtlas(g, cfg.RingSize),
		datasource.NewOpener(g.Info()))
	tests.Assert(t, err == nil, err)
	defer c.Close()

	file, err := c.Register("synth:levels=3")
	tests.Assert(t, err == nil, err)

	b := &Bench{
		c:     c,
		w:     NewWorkload(rand.New(rand.NewSource(7)), []int{file}, 2, 1.1),
		pages: 8,
	}

	for frame := 1; frame <= 200; frame++ {
		b.Frame(frame)
	}

	tests.Assert(t, b.drawn+b.fallback+b.blank == 200*8)
	tests.Assert(t, c.Stats().Lookups == 200*8, c.Stats().Lookups)

	frame := 201
	require.Eventually(t, func() bool {
		c.Update(frame, true)
		frame++
		return c.Stats().Loads > 0
	}, 5*time.Second, time.Millisecond)
}
