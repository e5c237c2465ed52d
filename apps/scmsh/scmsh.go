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
	"github.com/peterh/liner"
	"github.com/scmcache/scmcache/cache"
	"github.com/scmcache/scmcache/config"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/internal/datasource"
	"github.com/spf13/pflag"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	configfile string
)

func init() {
	pflag.StringVarP(&configfile, "config", "c", "", "\n\tConfiguration file (.json, .jsonc, .yaml)")
}

var commands = []string{
	"ancestor", "bounds", "close", "datasets", "flush", "frame", "help",
	"info", "lookup", "open", "quit", "slots", "stats", "status", "update",
}

// Shell runs cache operations typed one per line. It owns the cache
// and is the only goroutine calling it.
type Shell struct {
	c     *cache.Cache
	out   io.Writer
	frame int
}

func NewShell(c *cache.Cache, out io.Writer) *Shell {
	return &Shell{
		c:     c,
		out:   out,
		frame: 1,
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) page(args []string) (int, int64, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("expected <file> <index>")
	}
	file, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad file id: %w", err)
	}
	index, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("bad page index %q", args[1])
	}
	return file, index, nil
}

func (s *Shell) printPage(p cache.Page) {
	u, v := s.c.Geometry().Offset(p.Slot)
	s.printf("slot:%d age:%d loaded:%d offset:(%.4f,%.4f) scale:%.4f fade:%.2f\n",
		p.Slot, p.Age, p.Loaded, u, v, s.c.Geometry().Scale(),
		cache.Fade(s.frame, p.Loaded))
}

// Exec runs one command line. It returns false when the shell should
// exit.
func (s *Shell) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return false

	case "help", "?":
		s.help()

	case "open":
		if len(args) != 1 {
			s.printf("usage: open <dataset>\n")
			break
		}
		file, err := s.c.Register(args[0])
		if err != nil {
			s.printf("error: %v\n", err)
			break
		}
		s.printf("file %d\n", file)

	case "close":
		if len(args) != 1 {
			s.printf("usage: close <file>\n")
			break
		}
		file, err := strconv.Atoi(args[0])
		if err != nil {
			s.printf("error: bad file id: %v\n", err)
			break
		}
		if err := s.c.Unregister(file); err != nil {
			s.printf("error: %v\n", err)
		}

	case "datasets":
		names := s.c.Datasets()
		ids := make([]int, 0, len(names))
		for id := range names {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			s.printf("%d %s\n", id, names[id])
		}

	case "info":
		if len(args) != 1 {
			s.printf("usage: info <file>\n")
			break
		}
		file, err := strconv.Atoi(args[0])
		if err != nil {
			s.printf("error: bad file id: %v\n", err)
			break
		}
		info, err := s.c.Info(file)
		if err != nil {
			s.printf("error: %v\n", err)
			break
		}
		s.printf("page:%d channels:%d depth:%d levels:%d pages:%d\n",
			info.PageSize, info.Channels, info.Depth, info.Levels,
			dataset.PageCount(info.Levels))

	case "lookup":
		file, index, err := s.page(args)
		if err != nil {
			s.printf("usage: lookup <file> <index>: %v\n", err)
			break
		}
		p, err := s.c.Lookup(file, index, s.frame)
		if err != nil {
			s.printf("%v\n", err)
			break
		}
		s.printPage(p)

	case "ancestor":
		file, index, err := s.page(args)
		if err != nil {
			s.printf("usage: ancestor <file> <index>: %v\n", err)
			break
		}
		p, found, err := s.c.LookupAncestor(file, index, s.frame)
		if err != nil {
			s.printf("%v\n", err)
			break
		}
		s.printf("page %d ", found)
		s.printPage(p)

	case "status":
		file, index, err := s.page(args)
		if err != nil {
			s.printf("usage: status <file> <index>: %v\n", err)
			break
		}
		s.printf("%v\n", s.c.PageStatus(file, index))

	case "bounds":
		file, index, err := s.page(args)
		if err != nil {
			s.printf("usage: bounds <file> <index>: %v\n", err)
			break
		}
		min, max, err := s.c.PageBounds(file, index)
		if err != nil {
			s.printf("error: %v\n", err)
			break
		}
		s.printf("min:%.4f max:%.4f\n", min, max)

	case "update":
		evict := len(args) == 0 || args[0] != "noevict"
		s.c.Update(s.frame, evict)
		s.printf("%v\n", s.c)

	case "frame":
		n := 1
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				s.printf("usage: frame [count]\n")
				break
			}
			n = v
		}
		s.frame += n
		s.printf("frame %d\n", s.frame)

	case "flush":
		s.c.Flush()

	case "slots":
		save := s.c.Save()
		for slot, sd := range save.Slots {
			if sd.State == cache.SlotFree {
				continue
			}
			s.printf("%4d %-8v %v age:%d loaded:%d\n",
				slot, sd.State, sd.Key, sd.Age, sd.Loaded)
		}
		s.printf("free:%d\n", len(save.Free))

	case "stats":
		s.printf("%v", s.c.Stats())
		s.printf("%v", s.c.WorkerStats())

	default:
		s.printf("unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return true
}

func (s *Shell) help() {
	s.printf("open <dataset>           register a dataset\n" +
		"close <file>             unregister a dataset\n" +
		"datasets                 list registered datasets\n" +
		"info <file>              page geometry of a dataset\n" +
		"lookup <file> <index>    look up a page, requesting it if absent\n" +
		"ancestor <file> <index>  nearest active page at or above index\n" +
		"status <file> <index>    page state without touching it\n" +
		"bounds <file> <index>    value range of a page\n" +
		"update [noevict]         upload finished loads for this frame\n" +
		"frame [count]            advance the frame counter\n" +
		"flush                    drop every page\n" +
		"slots                    list used atlas slots\n" +
		"stats                    cache and worker statistics\n" +
		"quit                     exit\n")
}

func (s *Shell) completer(line string) []string {
	var c []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			c = append(c, cmd)
		}
	}
	return c
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".scmsh_history")
}

// Run reads commands until quit or end of input.
func (s *Shell) Run() error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.completer)

	history := historyFile()
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		l, err := line.Prompt(fmt.Sprintf("scm:%d> ", s.frame))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		line.AppendHistory(l)

		if !s.Exec(l) {
			return nil
		}
	}
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

	g := cfg.Cache.Geometry()
	c, err := cache.NewCache(cfg.Cache,
		cache.NewMemoryAtlas(g, cfg.Cache.RingSize),
		datasource.NewOpener(g.Info()))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	sh := NewShell(c, os.Stdout)
	for _, name := range pflag.Args() {
		sh.Exec("open " + name)
	}

	fmt.Printf("%v\nType 'help' for available commands.\n", c)
	if err := sh.Run(); err != nil {
		fmt.Println(err)
	}

	if err := c.Close(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
