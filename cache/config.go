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

package cache

import (
	"errors"
	"fmt"
)

var (
	ErrConfig = errors.New("invalid cache configuration")
)

// Config is fixed for the life of a Cache.
type Config struct {
	// Atlas width and height in pages
	GridSize int `json:"grid_size" yaml:"grid_size"`

	// Page width and height in pixels, not counting the border
	PageSize int `json:"page_size" yaml:"page_size"`
	Channels int `json:"channels" yaml:"channels"`

	// Bytes per channel
	Depth int `json:"depth" yaml:"depth"`

	Threads       int `json:"threads" yaml:"threads"`
	NeedQueueSize int `json:"need_queue_size" yaml:"need_queue_size"`
	LoadQueueSize int `json:"load_queue_size" yaml:"load_queue_size"`

	// Maximum uploads per Update
	LoadsPerCycle int `json:"loads_per_cycle" yaml:"loads_per_cycle"`

	// Number of staging buffers in the transfer ring. The atlas is built
	// with this many and NewCache checks that it was.
	RingSize int `json:"ring_size" yaml:"ring_size"`

	// Update evicts until at least this many slots are free
	EvictReserve int `json:"evict_reserve" yaml:"evict_reserve"`
}

func DefaultConfig() Config {
	return Config{
		GridSize:      16,
		PageSize:      256,
		Channels:      3,
		Depth:         1,
		Threads:       2,
		NeedQueueSize: 32,
		LoadQueueSize: 8,
		LoadsPerCycle: 2,
		RingSize:      8,
		EvictReserve:  4,
	}
}

func (c Config) Geometry() Geometry {
	return Geometry{
		Grid:     c.GridSize,
		Page:     c.PageSize,
		Channels: c.Channels,
		Depth:    c.Depth,
	}
}

func (c Config) Validate() error {
	if c.GridSize <= 0 {
		return fmt.Errorf("%w: grid size %d", ErrConfig, c.GridSize)
	}
	if err := c.Geometry().Info().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("%w: %d threads", ErrConfig, c.Threads)
	}
	if c.NeedQueueSize < c.Threads || c.LoadQueueSize < c.Threads {
		return fmt.Errorf("%w: queue sizes %d/%d smaller than %d threads",
			ErrConfig, c.NeedQueueSize, c.LoadQueueSize, c.Threads)
	}
	if c.LoadsPerCycle <= 0 {
		return fmt.Errorf("%w: %d loads per cycle", ErrConfig, c.LoadsPerCycle)
	}
	if c.RingSize < c.LoadsPerCycle {
		return fmt.Errorf("%w: ring size %d smaller than %d loads per cycle",
			ErrConfig, c.RingSize, c.LoadsPerCycle)
	}
	// With no reserve Update would never evict
	if c.EvictReserve < 1 || c.EvictReserve > c.GridSize*c.GridSize {
		return fmt.Errorf("%w: evict reserve %d", ErrConfig, c.EvictReserve)
	}
	return nil
}
