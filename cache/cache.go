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
	"github.com/google/uuid"
	"github.com/lpabon/godbc"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/message"
	"log/slog"
	"sort"
	"time"
)

// Every way a page can be unavailable this frame matches ErrPending
// under errors.Is. Callers draw an ancestor and ask again later.
var (
	ErrPending           = errors.New("page pending")
	ErrQueueFull         = fmt.Errorf("%w: need queue full", ErrPending)
	ErrCapacityExhausted = fmt.Errorf("%w: no free slot", ErrPending)
	ErrMissing           = fmt.Errorf("%w: page not in dataset", ErrPending)

	ErrInvalidDataset = errors.New("invalid dataset")
	ErrUnknownDataset = errors.New("unknown dataset")
)

type Status int

const (
	PageAbsent Status = iota
	PageWaiting
	PageActive
	PageMissing
)

func (s Status) String() string {
	switch s {
	case PageAbsent:
		return "absent"
	case PageWaiting:
		return "waiting"
	case PageActive:
		return "active"
	case PageMissing:
		return "missing"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Page is an active page as seen by the renderer.
type Page struct {
	Slot int

	// Frame of the latest hit, this one included. A hit therefore always
	// reports the frame it was made in, never the age before it; use
	// Loaded to tell how long a page has been resident.
	Age int

	// Frame the page was uploaded, for Fade
	Loaded int
}

var noPage = Page{Slot: -1}

type datasetEntry struct {
	name   string
	reader dataset.Reader
}

// Cache pages dataset pages into the slots of an atlas. It is driven
// from the goroutine that owns the atlas; only the worker pool runs
// elsewhere.
type Cache struct {
	id       string
	config   Config
	geometry Geometry
	atlas    Atlas
	open     dataset.Opener
	pages    *PageSet
	missing  map[PageKey]struct{}
	datasets map[int]*datasetEntry
	nextid   int
	needs    *message.Queue
	loads    *message.Queue
	pool     *workers
	ring     *Ring
	buffers  chan []byte
	stats    *cachestats
	wstats   *workerstats
	log      *slog.Logger
	frame    int
	closed   bool
}

func NewCache(config Config, atlas Atlas, open dataset.Opener) (*Cache, error) {

	godbc.Require(atlas != nil)
	godbc.Require(open != nil)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if atlas.Geometry() != config.Geometry() {
		return nil, fmt.Errorf("%w: atlas geometry %+v does not match %+v",
			ErrConfig, atlas.Geometry(), config.Geometry())
	}
	staging := atlas.Staging()
	if len(staging) != config.RingSize {
		return nil, fmt.Errorf("%w: atlas has %d staging buffers, ring size is %d",
			ErrConfig, len(staging), config.RingSize)
	}

	cache := &Cache{}
	cache.id = uuid.New().String()
	cache.config = config
	cache.geometry = config.Geometry()
	cache.atlas = atlas
	cache.open = open
	cache.pages = NewPageSet(cache.geometry.Slots())
	cache.missing = make(map[PageKey]struct{})
	cache.datasets = make(map[int]*datasetEntry)
	cache.ring = NewRing(staging)
	cache.buffers = make(chan []byte,
		config.NeedQueueSize+config.LoadQueueSize+config.Threads)
	cache.stats = &cachestats{}
	cache.wstats = &workerstats{}
	cache.log = slog.Default().With("cache", cache.id)
	cache.startWorkers()

	godbc.Ensure(cache.pages.Free() == cache.geometry.Slots())
	godbc.Ensure(cache.pool != nil)

	cache.log.Info("cache: created",
		"grid", config.GridSize,
		"page", config.PageSize,
		"threads", config.Threads)

	return cache, nil
}

func (c *Cache) startWorkers() {
	c.needs = message.NewQueue(c.config.NeedQueueSize)
	c.loads = message.NewQueue(c.config.LoadQueueSize)
	c.pool = newWorkers(c.config.Threads, c.needs, c.loads, c.wstats)
	c.pool.start()
}

func (c *Cache) stopWorkers() {
	for _, t := range c.pool.stop() {
		c.putBuffer(t.Buffer)
	}
}

func (c *Cache) buffer() []byte {
	select {
	case b := <-c.buffers:
		return b
	default:
		return make([]byte, c.geometry.PageBytes())
	}
}

func (c *Cache) putBuffer(b []byte) {
	if len(b) != c.geometry.PageBytes() {
		return
	}
	select {
	case c.buffers <- b:
	default:
	}
}

// Register opens a dataset and returns its file id. Ids are never
// reused.
func (c *Cache) Register(name string) (int, error) {
	godbc.Require(!c.closed)

	r, err := c.open(name)
	if err != nil {
		return -1, fmt.Errorf("%w: %s: %w", ErrInvalidDataset, name, err)
	}

	info := r.Info()
	if !info.Matches(c.geometry.Info()) {
		r.Close()
		return -1, fmt.Errorf("%w: %s: %w: page %d/%d/%d, atlas %d/%d/%d",
			ErrInvalidDataset, name, dataset.ErrGeometry,
			info.PageSize, info.Channels, info.Depth,
			c.geometry.Page, c.geometry.Channels, c.geometry.Depth)
	}

	id := c.nextid
	c.nextid++
	c.datasets[id] = &datasetEntry{name: name, reader: r}

	c.log.Info("cache: dataset registered",
		"file", id,
		"name", name,
		"levels", info.Levels)

	return id, nil
}

// Unregister flushes the cache and closes the dataset.
func (c *Cache) Unregister(file int) error {
	d, ok := c.datasets[file]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDataset, file)
	}

	c.Flush()
	delete(c.datasets, file)

	c.log.Info("cache: dataset unregistered",
		"file", file,
		"name", d.name)

	return d.reader.Close()
}

// Datasets returns the names of the registered datasets by file id.
func (c *Cache) Datasets() map[int]string {
	names := make(map[int]string, len(c.datasets))
	for id, d := range c.datasets {
		names[id] = d.name
	}
	return names
}

func (c *Cache) Info(file int) (dataset.Info, error) {
	d, ok := c.datasets[file]
	if !ok {
		return dataset.Info{}, fmt.Errorf("%w: %d", ErrUnknownDataset, file)
	}
	return d.reader.Info(), nil
}

// Lookup returns the slot of an active page and stamps it with frame.
// Otherwise the page is requested if needed and an error matching
// ErrPending is returned.
func (c *Cache) Lookup(file int, index int64, frame int) (Page, error) {
	godbc.Require(index >= 0, index)
	godbc.Require(!c.closed)
	c.advance(frame)

	c.stats.lookup()
	key := PageKey{File: file, Index: index}

	// Hit
	if slot, state, ok := c.pages.Search(key); ok {
		if state == SlotActive {
			c.stats.hit()
			return c.touch(slot, frame), nil
		}
		c.stats.waiting()
		return noPage, ErrPending
	}

	if _, ok := c.missing[key]; ok {
		c.stats.missingHit()
		return noPage, ErrMissing
	}

	d, ok := c.datasets[file]
	if !ok {
		return noPage, fmt.Errorf("%w: %d", ErrUnknownDataset, file)
	}

	// Miss
	c.stats.miss()
	slot, ok := c.pages.Reserve(key)
	if !ok {
		c.stats.exhaust()
		return noPage, ErrCapacityExhausted
	}

	t := message.NewTask(file, index, dataset.PageLevel(index), slot,
		d.reader, c.buffer())
	t.TimeStart()
	if !c.needs.TryPush(t) {
		c.pages.Release(slot)
		c.putBuffer(t.Buffer)
		c.stats.queueFull()
		return noPage, ErrQueueFull
	}

	return noPage, ErrPending
}

// LookupAncestor returns the nearest active page at or above index in
// the quadtree, stamping it with frame. It never requests pages.
func (c *Cache) LookupAncestor(file int, index int64, frame int) (Page, int64, error) {
	godbc.Require(index >= 0, index)
	c.advance(frame)

	for i := index; i >= 0; i = dataset.PageParent(i) {
		slot, state, ok := c.pages.Search(PageKey{File: file, Index: i})
		if ok && state == SlotActive {
			return c.touch(slot, frame), i, nil
		}
	}

	return noPage, -1, ErrPending
}

// advance moves the cache to frame. Frames never go backwards, so no
// page is ever stamped with an age ahead of the caller.
func (c *Cache) advance(frame int) {
	godbc.Require(frame >= c.frame, frame, c.frame)
	c.frame = frame
}

func (c *Cache) touch(slot, frame int) Page {
	c.pages.Touch(slot, frame)
	sd := c.pages.Descriptor(slot)

	godbc.Ensure(sd.Age == frame, sd.Age, frame)

	return Page{Slot: slot, Age: sd.Age, Loaded: sd.Loaded}
}

// PageStatus reports the state of a page without touching it.
func (c *Cache) PageStatus(file int, index int64) Status {
	key := PageKey{File: file, Index: index}
	if _, state, ok := c.pages.Search(key); ok {
		if state == SlotActive {
			return PageActive
		}
		return PageWaiting
	}
	if _, ok := c.missing[key]; ok {
		return PageMissing
	}
	return PageAbsent
}

// PageBounds reads the value range of a page straight from the
// dataset.
func (c *Cache) PageBounds(file int, index int64) (float32, float32, error) {
	d, ok := c.datasets[file]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownDataset, file)
	}
	return d.reader.PageBounds(index)
}

// Update uploads up to LoadsPerCycle finished loads and, when allowed,
// evicts pages not used in frame until EvictReserve slots are free.
func (c *Cache) Update(frame int, allowEviction bool) {
	godbc.Require(!c.closed)
	c.advance(frame)

	for i := 0; i < c.config.LoadsPerCycle; i++ {
		t, ok := c.loads.TryPop()
		if !ok {
			break
		}
		c.complete(t, frame)
	}

	if allowEviction {
		for c.pages.Free() < c.config.EvictReserve {
			key, slot, ok := c.pages.Evict(frame)
			if !ok {
				break
			}
			c.stats.eviction()
			c.log.Debug("cache: evicted",
				"page", key,
				"slot", slot)
		}
	}

	godbc.Invariant(c.pages)
}

func (c *Cache) complete(t *message.Task, frame int) {
	key := PageKey{File: t.File, Index: t.Index}
	slot, state, ok := c.pages.Search(key)
	godbc.Check(ok && slot == t.Slot && state == SlotWaiting,
		key, slot, state)

	if !t.Found {
		c.pages.Release(slot)
		c.missing[key] = struct{}{}
		c.putBuffer(t.Buffer)
		c.stats.notFound()
		if t.Err != nil {
			c.log.Warn("cache: page read failed",
				"page", key,
				"err", t.Err)
		}
		return
	}

	start := time.Now()
	err := c.atlas.Upload(c.ring.Acquire(), slot, t.Buffer)
	c.stats.upload(time.Now().Sub(start))
	c.putBuffer(t.Buffer)

	if err != nil {
		c.pages.Release(slot)
		c.stats.uploadError()
		c.log.Error("cache: upload failed",
			"page", key,
			"slot", slot,
			"err", err)
		return
	}

	c.pages.Promote(slot, frame)
	c.stats.load(t.TimeElapsed())
}

func (c *Cache) BindForDraw(unit int) error {
	return c.atlas.Bind(unit)
}

// Flush stops the workers, drops every queued or in flight load and
// empties the atlas.
func (c *Cache) Flush() {
	godbc.Require(!c.closed)

	c.stopWorkers()
	c.pages.Clear()
	c.missing = make(map[PageKey]struct{})
	c.startWorkers()
	c.stats.flush()

	c.log.Debug("cache: flushed")

	godbc.Ensure(c.pages.Len() == 0)
}

func (c *Cache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.stopWorkers()

	ids := make([]int, 0, len(c.datasets))
	for id := range c.datasets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	for _, id := range ids {
		if err := c.datasets[id].reader.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.datasets, id)
	}
	if err := c.atlas.Close(); err != nil {
		errs = append(errs, err)
	}

	c.log.Info("cache: closed")

	return errors.Join(errs...)
}

func (c *Cache) Save() *PageSetSave {
	return c.pages.Save()
}

func (c *Cache) Geometry() Geometry {
	return c.geometry
}

func (c *Cache) GridSize() int {
	return c.geometry.Grid
}

func (c *Cache) PageSize() int {
	return c.geometry.Page
}

func (c *Cache) Id() string {
	return c.id
}

func (c *Cache) String() string {
	return fmt.Sprintf("Cache{"+
		"Id:%s "+
		"Datasets:%d "+
		"Active:%d "+
		"Waiting:%d "+
		"Free:%d "+
		"Missing:%d"+
		"}",
		c.id,
		len(c.datasets),
		c.pages.Active(),
		c.pages.Waiting(),
		c.pages.Free(),
		len(c.missing))
}

func (c *Cache) Stats() *CacheStats {
	return c.stats.stats()
}

func (c *Cache) WorkerStats() *WorkerStats {
	return c.wstats.Stats()
}

func (c *Cache) StatsClear() {
	c.stats.clear()
}
