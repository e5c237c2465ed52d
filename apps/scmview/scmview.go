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
	"errors"
	"fmt"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/scmcache/scmcache/cache"
	"github.com/scmcache/scmcache/config"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/glatlas"
	"github.com/scmcache/scmcache/internal/datasource"
	"github.com/spf13/pflag"
	"log/slog"
	"os"
	"runtime"
)

var (
	configfile    string
	width, height int
	startlevel    int
)

func init() {
	// GL calls must stay on the main thread
	runtime.LockOSThread()

	pflag.StringVarP(&configfile, "config", "c", "", "\n\tConfiguration file (.json, .jsonc, .yaml)")
	pflag.IntVar(&width, "width", 1024, "\n\tWindow width")
	pflag.IntVar(&height, "height", 1024, "\n\tWindow height")
	pflag.IntVar(&startlevel, "level", 0, "\n\tQuadtree level shown at start")
}

// Viewer requests every page of one level of a dataset each frame and
// shows the atlas. Up and Down change the level, F flushes the cache.
type Viewer struct {
	c       *cache.Cache
	atlas   *glatlas.Atlas
	file    int
	levels  int
	level   int
	frame   int
	reserve int
	flush   bool
}

// Pages is the range of indices drawn at the current level, clipped
// so the working set never exceeds the atlas.
func (v *Viewer) Pages() (first, last int64) {
	first = dataset.PageCount(v.level)
	last = dataset.PageCount(v.level + 1)

	room := int64(v.c.Geometry().Slots() - v.reserve)
	if last-first > room {
		last = first + room
	}
	return
}

func (v *Viewer) Frame() error {
	v.frame++

	if v.flush {
		v.c.Flush()
		v.flush = false
	}

	first, last := v.Pages()
	for index := first; index < last; index++ {
		_, err := v.c.Lookup(v.file, index, v.frame)
		if errors.Is(err, cache.ErrPending) {
			// Keep the coarser page resident while the fine one loads
			v.c.LookupAncestor(v.file, index, v.frame)
		} else if err != nil {
			return err
		}
	}
	v.c.Update(v.frame, true)

	fw, fh := glfw.GetCurrentContext().GetFramebufferSize()
	gl.Viewport(0, 0, int32(fw), int32(fh))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	if err := v.c.BindForDraw(0); err != nil {
		return err
	}
	return v.atlas.Blit(fw, fh)
}

func (v *Viewer) key(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyEscape, glfw.KeyQ:
		w.SetShouldClose(true)
	case glfw.KeyUp:
		if v.level+1 < v.levels {
			v.level++
		}
	case glfw.KeyDown:
		if v.level > 0 {
			v.level--
		}
	case glfw.KeyF:
		v.flush = true
	}

	w.SetTitle(fmt.Sprintf("scmview level %d", v.level))
}

func run(cfg *config.Config, name string) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(width, height, "scmview", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err := gl.Init(); err != nil {
		return err
	}
	slog.Info("gl context", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	atlas, err := glatlas.New(cfg.Cache.Geometry(), cfg.Cache.RingSize)
	if err != nil {
		return err
	}

	c, err := cache.NewCache(cfg.Cache, atlas, datasource.NewOpener(cfg.Cache.Geometry().Info()))
	if err != nil {
		atlas.Close()
		return err
	}
	defer func() {
		fmt.Println(c)
		fmt.Print(c.Stats())
		c.Close()
	}()

	file, err := c.Register(name)
	if err != nil {
		return err
	}
	info, _ := c.Info(file)

	v := &Viewer{
		c:       c,
		atlas:   atlas,
		file:    file,
		levels:  info.Levels,
		level:   startlevel,
		reserve: cfg.Cache.EvictReserve,
	}
	if v.levels == 0 {
		v.levels = 1
	}
	if v.level >= v.levels {
		v.level = v.levels - 1
	}
	window.SetKeyCallback(v.key)

	for !window.ShouldClose() {
		if err := v.Frame(); err != nil {
			return err
		}
		window.SwapBuffers()
		glfw.PollEvents()
	}

	return nil
}

func main() {
	pflag.Parse()

	cfg := config.Default()
	if configfile != "" {
		c, err := config.Load(configfile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		cfg = *c
	}
	cfg.Logger()

	if pflag.NArg() > 0 {
		cfg.Datasets = pflag.Args()
	}
	if len(cfg.Datasets) == 0 {
		fmt.Println("no dataset given")
		os.Exit(1)
	}
	name := cfg.Datasets[0]

	if err := run(&cfg, name); err != nil {
		slog.Error("scmview failed", "err", err)
		os.Exit(1)
	}
}
