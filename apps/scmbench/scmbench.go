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
	"bytes"
	"errors"
	"fmt"
	"github.com/lpabon/godbc"
	"github.com/natefinch/atomic"
	"github.com/scmcache/scmcache/cache"
	"github.com/scmcache/scmcache/config"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/internal/datasource"
	"github.com/spf13/pflag"
	"log/slog"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"
)

var (
	configfile, csvfile string
	datasets            []string
	frames, level       int
	pagesperframe, seed int
	cpuprofile          bool
)

func init() {
	pflag.StringVarP(&configfile, "config", "c", "", "\n\tConfiguration file (.json, .jsonc, .yaml)")
	pflag.StringVar(&csvfile, "csv", "", "\n\tWrite the periodic stats as CSV to this file")
	pflag.StringSliceVarP(&datasets, "dataset", "d", nil, "\n\tDataset to register, may be repeated."+
		"\n\tOverrides the datasets of the configuration file")
	pflag.IntVar(&frames, "frames", 0, "\n\tNumber of frames to run, 0 uses the configuration")
	pflag.IntVar(&level, "level", -1, "\n\tDeepest level requested, -1 uses the configuration")
	pflag.IntVar(&pagesperframe, "pages", 0, "\n\tPages requested per frame, 0 uses the configuration")
	pflag.IntVar(&seed, "seed", 1, "\n\tRandom seed of the workload")
	pflag.BoolVar(&cpuprofile, "cpuprofile", false, "\n\tCreate a Go cpu profile for analysis")
}

// Workload picks the pages a frame asks for. Page popularity follows a
// zipf distribution over the pages down to the deepest level.
type Workload struct {
	zipf  *rand.Zipf
	files []int
	r     *rand.Rand
	pages int64
}

func NewWorkload(r *rand.Rand, files []int, level int, skew float64) *Workload {
	godbc.Require(len(files) > 0)
	godbc.Require(skew > 1, skew)

	pages := dataset.PageCount(level + 1)
	return &Workload{
		zipf:  rand.NewZipf(r, skew, 1, uint64(pages-1)),
		files: files,
		r:     r,
		pages: pages,
	}
}

func (w *Workload) Next() (file int, index int64) {
	file = w.files[w.r.Intn(len(w.files))]
	index = int64(w.zipf.Uint64())

	godbc.Ensure(index < w.pages, index)
	return
}

// Bench drives a cache one frame at a time the way a renderer would.
// A page that is not resident is drawn with its nearest active
// ancestor.
type Bench struct {
	c        *cache.Cache
	w        *Workload
	pages    int
	drawn    uint64
	fallback uint64
	blank    uint64
}

func (b *Bench) Frame(frame int) {
	for i := 0; i < b.pages; i++ {
		file, index := b.w.Next()
		_, err := b.c.Lookup(file, index, frame)
		switch {
		case err == nil:
			b.drawn++
		case errors.Is(err, cache.ErrPending):
			if _, _, err := b.c.LookupAncestor(file, index, frame); err == nil {
				b.fallback++
			} else {
				b.blank++
			}
		default:
			godbc.Check(false, err)
		}
	}
	b.c.Update(frame, true)
}

func (b *Bench) String() string {
	return fmt.Sprintf("Drawn: %v\n"+
		"Ancestor fallbacks: %v\n"+
		"Blank: %v\n",
		b.drawn, b.fallback, b.blank)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configfile != "" {
		c, err := config.Load(configfile)
		if err != nil {
			return nil, err
		}
		cfg = *c
	}

	if len(datasets) > 0 {
		cfg.Datasets = datasets
	}
	if frames > 0 {
		cfg.Frames = frames
	}
	if level >= 0 {
		cfg.Workload.Level = level
	}
	if pagesperframe > 0 {
		cfg.Workload.PagesPerFrame = pagesperframe
	}

	return &cfg, cfg.Validate()
}

func main() {
	pflag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	log := cfg.Logger()

	// Start cpu profiling
	if cpuprofile {
		f, _ := os.Create("cpuprofile")
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	g := cfg.Cache.Geometry()
	atlas := cache.NewMemoryAtlas(g, cfg.Cache.RingSize)
	c, err := cache.NewCache(cfg.Cache, atlas, datasource.NewOpener(g.Info()))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	files := make([]int, 0, len(cfg.Datasets))
	for _, name := range cfg.Datasets {
		file, err := c.Register(name)
		if err != nil {
			log.Error("unable to register dataset", "name", name, "err", err)
			c.Close()
			os.Exit(1)
		}
		files = append(files, file)
	}

	b := &Bench{
		c:     c,
		w:     NewWorkload(rand.New(rand.NewSource(int64(seed))), files, cfg.Workload.Level, cfg.Workload.Zipf),
		pages: cfg.Workload.PagesPerFrame,
	}

	var csv bytes.Buffer
	interval := cfg.Workload.StatsInterval
	prev := c.Stats()
	start := time.Now()
	last := start

	for frame := 1; frame <= cfg.Frames; frame++ {
		b.Frame(frame)

		if interval > 0 && frame%interval == 0 {
			stats := c.Stats()
			now := time.Now()
			fps := float64(interval) / now.Sub(last).Seconds()

			fmt.Printf("frame:%v FPS:%.1f Hit:%.2f%% Upload:%.1f usecs"+
				"                         \r",
				frame, fps, stats.HitRateDelta(prev)*100.0,
				stats.Uploadtime.DeltaMeanTimeUsecs(prev.Uploadtime))
			fmt.Fprintf(&csv, "%v,%.2f,%v\n", frame, fps, stats.CsvDelta(prev))

			prev = stats
			last = now
		}
	}
	fmt.Print("\n")

	elapsed := time.Since(start)
	fmt.Printf("Frames: %v\n", cfg.Frames)
	fmt.Printf("Seconds: %.2f\n", elapsed.Seconds())
	fmt.Printf("FPS: %.1f\n", float64(cfg.Frames)/elapsed.Seconds())
	fmt.Print(b)
	fmt.Println(c)
	fmt.Print(c.Stats())
	fmt.Print(c.WorkerStats())

	if err := c.Close(); err != nil {
		log.Error("unable to close cache", "err", err)
	}

	if csvfile != "" {
		if err := atomic.WriteFile(csvfile, &csv); err != nil {
			log.Error("unable to write csv file", "file", csvfile, "err", err)
			os.Exit(1)
		}
		slog.Info("stats written", "file", csvfile, "uploads", atlas.Uploads())
	}
}
