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
	"fmt"
	"sync"
	"time"
)

type CacheStats struct {
	Lookups      uint64        `json:"lookups"`
	Hits         uint64        `json:"hits"`
	Pending      uint64        `json:"pending"`
	Misses       uint64        `json:"misses"`
	QueueFull    uint64        `json:"queue_full"`
	Exhausted    uint64        `json:"exhausted"`
	Missing      uint64        `json:"missing"`
	Loads        uint64        `json:"loads"`
	NotFound     uint64        `json:"not_found"`
	Evictions    uint64        `json:"evictions"`
	UploadErrors uint64        `json:"upload_errors"`
	Flushes      uint64        `json:"flushes"`
	Uploadtime   *TimeDuration `json:"mean_upload_usecs"`
	Loadtime     *TimeDuration `json:"mean_load_usecs"`
}

func (c *CacheStats) HitRate() float64 {
	if c.Lookups == 0 {
		return 0.0
	} else {
		return float64(c.Hits) / float64(c.Lookups)
	}
}

func (c *CacheStats) HitRateDelta(prev *CacheStats) float64 {
	Lookups := c.Lookups - prev.Lookups
	Hits := c.Hits - prev.Hits
	if Lookups == 0 {
		return 0.0
	} else {
		return float64(Hits) / float64(Lookups)
	}
}

func (c *CacheStats) String() string {

	return fmt.Sprintf(
		"Hit Rate: %.4f\n"+
			"Lookups: %d\n"+
			"Hits: %d\n"+
			"Pending: %d\n"+
			"Misses: %d\n"+
			"Queue Full: %d\n"+
			"Exhausted: %d\n"+
			"Missing: %d\n"+
			"Loads: %d\n"+
			"Not Found: %d\n"+
			"Evictions: %d\n"+
			"Upload Errors: %d\n"+
			"Flushes: %d\n"+
			"Mean Upload Latency: %.2f usec\n"+
			"Mean Load Latency: %.2f usec\n",
		c.HitRate(),
		c.Lookups,
		c.Hits,
		c.Pending,
		c.Misses,
		c.QueueFull,
		c.Exhausted,
		c.Missing,
		c.Loads,
		c.NotFound,
		c.Evictions,
		c.UploadErrors,
		c.Flushes,
		c.Uploadtime.MeanTimeUsecs(),
		c.Loadtime.MeanTimeUsecs())
}

func (c *CacheStats) Csv() string {

	return fmt.Sprintf(
		"%v,"+ // Hit Rate 1
			"%d,"+ // Lookups 2
			"%d,"+ // Hits 3
			"%d,"+ // Pending 4
			"%d,"+ // Misses 5
			"%d,"+ // Queue Full 6
			"%d,"+ // Exhausted 7
			"%d,"+ // Missing 8
			"%d,"+ // Loads 9
			"%d,"+ // Not Found 10
			"%d,"+ // Evictions 11
			"%d,"+ // Upload Errors 12
			"%d,", // Flushes 13
		c.HitRate(),
		c.Lookups,
		c.Hits,
		c.Pending,
		c.Misses,
		c.QueueFull,
		c.Exhausted,
		c.Missing,
		c.Loads,
		c.NotFound,
		c.Evictions,
		c.UploadErrors,
		c.Flushes) +
		c.Uploadtime.Csv() + // 14,15
		c.Loadtime.Csv() // 16,17
}

func (c *CacheStats) CsvDelta(prev *CacheStats) string {

	return fmt.Sprintf(
		"%v,"+ // Hit Rate 1
			"%d,"+ // Lookups 2
			"%d,"+ // Hits 3
			"%d,"+ // Pending 4
			"%d,"+ // Misses 5
			"%d,"+ // Queue Full 6
			"%d,"+ // Exhausted 7
			"%d,"+ // Missing 8
			"%d,"+ // Loads 9
			"%d,"+ // Not Found 10
			"%d,"+ // Evictions 11
			"%d,"+ // Upload Errors 12
			"%d,", // Flushes 13
		c.HitRateDelta(prev),
		c.Lookups-prev.Lookups,
		c.Hits-prev.Hits,
		c.Pending-prev.Pending,
		c.Misses-prev.Misses,
		c.QueueFull-prev.QueueFull,
		c.Exhausted-prev.Exhausted,
		c.Missing-prev.Missing,
		c.Loads-prev.Loads,
		c.NotFound-prev.NotFound,
		c.Evictions-prev.Evictions,
		c.UploadErrors-prev.UploadErrors,
		c.Flushes-prev.Flushes) +
		c.Uploadtime.CsvDelta(prev.Uploadtime) + // 14,15
		c.Loadtime.CsvDelta(prev.Loadtime) // 16,17
}

type cachestats struct {
	lookups      uint64
	hits         uint64
	pending      uint64
	misses       uint64
	queuefull    uint64
	exhausted    uint64
	missing      uint64
	loads        uint64
	notfound     uint64
	evictions    uint64
	uploaderrors uint64
	flushes      uint64
	uploadtime   TimeDuration
	loadtime     TimeDuration
	lock         sync.Mutex
}

func (c *cachestats) stats() *CacheStats {
	stats := c.copy()

	return &CacheStats{
		Lookups:      stats.lookups,
		Hits:         stats.hits,
		Pending:      stats.pending,
		Misses:       stats.misses,
		QueueFull:    stats.queuefull,
		Exhausted:    stats.exhausted,
		Missing:      stats.missing,
		Loads:        stats.loads,
		NotFound:     stats.notfound,
		Evictions:    stats.evictions,
		UploadErrors: stats.uploaderrors,
		Flushes:      stats.flushes,
		Uploadtime:   stats.uploadtime.Copy(),
		Loadtime:     stats.loadtime.Copy(),
	}
}

func (c *cachestats) clear() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lookups = 0
	c.hits = 0
	c.pending = 0
	c.misses = 0
	c.queuefull = 0
	c.exhausted = 0
	c.missing = 0
	c.loads = 0
	c.notfound = 0
	c.evictions = 0
	c.uploaderrors = 0
	c.flushes = 0
	c.uploadtime = TimeDuration{}
	c.loadtime = TimeDuration{}
}

func (c *cachestats) copy() *cachestats {
	c.lock.Lock()
	defer c.lock.Unlock()

	statscopy := &cachestats{}
	statscopy.lookups = c.lookups
	statscopy.hits = c.hits
	statscopy.pending = c.pending
	statscopy.misses = c.misses
	statscopy.queuefull = c.queuefull
	statscopy.exhausted = c.exhausted
	statscopy.missing = c.missing
	statscopy.loads = c.loads
	statscopy.notfound = c.notfound
	statscopy.evictions = c.evictions
	statscopy.uploaderrors = c.uploaderrors
	statscopy.flushes = c.flushes
	statscopy.uploadtime = c.uploadtime
	statscopy.loadtime = c.loadtime

	return statscopy
}

func (c *cachestats) lookup() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lookups++
}

func (c *cachestats) hit() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.hits++
}

func (c *cachestats) waiting() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.pending++
}

func (c *cachestats) miss() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.misses++
}

func (c *cachestats) queueFull() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.queuefull++
}

func (c *cachestats) exhaust() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.exhausted++
}

func (c *cachestats) missingHit() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.missing++
}

func (c *cachestats) load(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.loads++
	c.loadtime.Add(d)
}

func (c *cachestats) notFound() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.notfound++
}

func (c *cachestats) eviction() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.evictions++
}

func (c *cachestats) uploadError() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.uploaderrors++
}

func (c *cachestats) upload(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.uploadtime.Add(d)
}

func (c *cachestats) flush() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.flushes++
}
