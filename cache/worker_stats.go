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

type WorkerStats struct {
	Reads      uint64        `json:"reads"`
	Found      uint64        `json:"found"`
	NotFound   uint64        `json:"not_found"`
	ReadErrors uint64        `json:"read_errors"`
	Readtime   *TimeDuration `json:"mean_read_usecs"`
}

func (s *WorkerStats) FoundRate() float64 {
	if 0 == s.Reads {
		return 0.0
	} else {
		return float64(s.Found) / float64(s.Reads)
	}
}

func (s *WorkerStats) String() string {
	return fmt.Sprintf(
		"Found Rate: %.4f\n"+
			"Reads: %v\n"+
			"Found: %v\n"+
			"Not Found: %v\n"+
			"Read Errors: %v\n"+
			"Mean Read Latency: %.2f usec\n",
		s.FoundRate(),
		s.Reads,
		s.Found,
		s.NotFound,
		s.ReadErrors,
		s.Readtime.MeanTimeUsecs())
}

func (s *WorkerStats) Csv() string {
	return fmt.Sprintf(
		"%v,"+ // 1 Found Rate
			"%v,"+ // 2 Reads
			"%v,"+ // 3 Found
			"%v,"+ // 4 Not Found
			"%v,", // 5 Read Errors
		s.FoundRate(),
		s.Reads,
		s.Found,
		s.NotFound,
		s.ReadErrors) +
		s.Readtime.Csv() // 6,7
}

type workerstats struct {
	reads      uint64
	found      uint64
	notfound   uint64
	readerrors uint64
	readtime   TimeDuration
	lock       sync.Mutex
}

func (s *workerstats) Stats() *WorkerStats {
	scopy := &workerstats{}
	s.lock.Lock()
	scopy.reads = s.reads
	scopy.found = s.found
	scopy.notfound = s.notfound
	scopy.readerrors = s.readerrors
	scopy.readtime = s.readtime
	s.lock.Unlock()

	return &WorkerStats{
		Reads:      scopy.reads,
		Found:      scopy.found,
		NotFound:   scopy.notfound,
		ReadErrors: scopy.readerrors,
		Readtime:   scopy.readtime.Copy(),
	}
}

// Record accounts for one completed read.
func (s *workerstats) Record(found bool, err error, d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reads++
	s.readtime.Add(d)
	if err != nil {
		s.readerrors++
	} else if found {
		s.found++
	} else {
		s.notfound++
	}
}
