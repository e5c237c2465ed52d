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
	"context"
	"fmt"
	"github.com/scmcache/scmcache/config"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/dataset/ossstore"
	"github.com/scmcache/scmcache/dataset/pebblestore"
	"github.com/scmcache/scmcache/dataset/rawfile"
	"github.com/scmcache/scmcache/dataset/tiffdir"
	"github.com/scmcache/scmcache/internal/datasource"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	configfile string
	readers    int
	levels     int
)

func init() {
	pflag.StringVarP(&configfile, "config", "c", "", "\n\tConfiguration file, used for the synthetic page geometry")
	pflag.IntVar(&readers, "readers", 4, "\n\tConcurrent page readers")
	pflag.IntVar(&levels, "levels", 0, "\n\tLevels to copy, 0 copies every level of the source")
}

// PageWriter is a dataset that pages can be written to.
type PageWriter interface {
	WritePage(index int64, pixels []byte) error
	Close() error
}

type page struct {
	index  int64
	pixels []byte
}

// Create opens the destination of a copy. Names use the same prefixes
// as datasets.
func Create(name string, info dataset.Info) (PageWriter, error) {
	switch {
	case strings.HasPrefix(name, datasource.OssPrefix):
		cfg, err := ossstore.ParseURL(name)
		if err != nil {
			return nil, err
		}
		s, err := ossstore.Create(cfg, info)
		if err != nil {
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(name, datasource.PebblePrefix):
		s, err := pebblestore.Create(strings.TrimPrefix(name, datasource.PebblePrefix), nil, info)
		if err != nil {
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(name, datasource.TiffPrefix):
		d, err := tiffdir.Create(strings.TrimPrefix(name, datasource.TiffPrefix), info)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	return nil, fmt.Errorf("unknown destination kind: %s", name)
}

// Pack copies the pages of the first levels levels of src into dst.
// Pages are read concurrently and written in completion order.
func Pack(ctx context.Context, src dataset.Reader, dst PageWriter, levels, readers int) (int64, error) {
	info := src.Info()
	pages := dataset.PageCount(levels)
	indices := make(chan int64, readers)
	found := make(chan page, readers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(indices)
		for i := int64(0); i < pages; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var rg errgroup.Group
	for r := 0; r < readers; r++ {
		rg.Go(func() error {
			for i := range indices {
				buf := make([]byte, info.PageBytes())
				ok, err := src.ReadPage(i, dataset.PageLevel(i), buf)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				select {
				case found <- page{index: i, pixels: buf}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(found)
		return rg.Wait()
	})

	var written int64
	g.Go(func() error {
		for p := range found {
			if err := dst.WritePage(p.index, p.pixels); err != nil {
				return err
			}
			written++
		}
		return nil
	})

	err := g.Wait()
	return written, err
}

func main() {
	pflag.Parse()

	if pflag.NArg() != 2 {
		fmt.Println("usage: scmpack [flags] <source> <destination>")
		pflag.PrintDefaults()
		os.Exit(1)
	}
	from, to := pflag.Arg(0), pflag.Arg(1)

	cfg := config.Default()
	if configfile != "" {
		c, err := config.Load(configfile)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		cfg = *c
	}
	log := cfg.Logger()

	src, err := datasource.Open(from, cfg.Cache.Geometry().Info())
	if err != nil {
		log.Error("unable to open source", "name", from, "err", err)
		os.Exit(1)
	}
	defer src.Close()

	info := src.Info()
	if levels > 0 {
		info.Levels = levels
	}
	if info.Levels <= 0 {
		log.Error("source has no level count, use --levels", "name", from)
		os.Exit(1)
	}

	start := time.Now()

	// Raw page files are written whole
	if path, ok := strings.CutPrefix(to, datasource.RawPrefix); ok || strings.HasSuffix(to, datasource.RawExt) {
		if err := rawfile.Create(path, src); err != nil {
			log.Error("unable to write raw file", "name", to, "err", err)
			os.Exit(1)
		}
		log.Info("packed", "from", from, "to", to, "elapsed", time.Since(start))
		return
	}

	dst, err := Create(to, info)
	if err != nil {
		log.Error("unable to create destination", "name", to, "err", err)
		os.Exit(1)
	}

	n, err := Pack(context.Background(), src, dst, info.Levels, readers)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Error("copy failed", "from", from, "to", to, "pages", n, "err", err)
		os.Exit(1)
	}

	slog.Info("packed",
		"from", from,
		"to", to,
		"pages", n,
		"elapsed", time.Since(start))
}
