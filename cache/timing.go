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
	"time"
)

// TimeDuration accumulates durations so their mean can be reported
// and compared between two snapshots.
type TimeDuration struct {
	Duration int64 `json:"duration"`
	Counter  int64 `json:"counter"`
}

func (d *TimeDuration) Add(delta time.Duration) {
	d.Duration += delta.Nanoseconds()
	d.Counter++
}

func (d *TimeDuration) MeanTimeUsecs() float64 {
	if d.Counter == 0 {
		return 0.0
	}
	return float64(d.Duration) / float64(d.Counter) / 1000.0
}

func (d *TimeDuration) DeltaMeanTimeUsecs(prev *TimeDuration) float64 {
	delta := TimeDuration{
		Duration: d.Duration - prev.Duration,
		Counter:  d.Counter - prev.Counter,
	}
	return delta.MeanTimeUsecs()
}

func (d *TimeDuration) Copy() *TimeDuration {
	c := *d
	return &c
}

// Csv prints the mean in usecs and the sample count, each followed by
// a comma.
func (d *TimeDuration) Csv() string {
	return fmt.Sprintf("%v,%v,", d.MeanTimeUsecs(), d.Counter)
}

func (d *TimeDuration) CsvDelta(prev *TimeDuration) string {
	return fmt.Sprintf("%v,%v,", d.DeltaMeanTimeUsecs(prev), d.Counter-prev.Counter)
}
