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

package datasource

import (
	"fmt"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/dataset/ossstore"
	"github.com/scmcache/scmcache/dataset/pebblestore"
	"github.com/scmcache/scmcache/dataset/rawfile"
	"github.com/scmcache/scmcache/dataset/tiffdir"
	"strconv"
	"strings"
	"time"
)

// Dataset names select a backend by prefix:
//
//	pebble:<dir>         pebble page store
//	tiff:<dir>           directory of TIFF pages
//	raw:<path>, *.raw    memory mapped raw page file
//	oss://bucket/prefix  object storage, credentials from the environment
//	synth:[k=v,...]      procedural pages; keys are levels, delay, page,
//	                     channels and depth
const (
	PebblePrefix = "pebble:"
	TiffPrefix   = "tiff:"
	RawPrefix    = "raw:"
	RawExt       = ".raw"
	OssPrefix    = "oss://"
	SynthPrefix  = "synth:"
)

// NewOpener returns an Opener for every backend. Synthetic datasets
// take their geometry from synth unless the name overrides it.
func NewOpener(synth dataset.Info) dataset.Opener {
	return func(name string) (dataset.Reader, error) {
		return Open(name, synth)
	}
}

func Open(name string, synth dataset.Info) (dataset.Reader, error) {
	switch {
	case strings.HasPrefix(name, OssPrefix):
		cfg, err := ossstore.ParseURL(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
		}
		s, err := ossstore.Open(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(name, PebblePrefix):
		s, err := pebblestore.Open(strings.TrimPrefix(name, PebblePrefix), nil)
		if err != nil {
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(name, TiffPrefix):
		d, err := tiffdir.Open(strings.TrimPrefix(name, TiffPrefix))
		if err != nil {
			return nil, err
		}
		return d, nil

	case strings.HasPrefix(name, RawPrefix), strings.HasSuffix(name, RawExt):
		f, err := rawfile.Open(strings.TrimPrefix(name, RawPrefix))
		if err != nil {
			return nil, err
		}
		return f, nil

	case strings.HasPrefix(name, SynthPrefix):
		info, delay, err := ParseSynth(strings.TrimPrefix(name, SynthPrefix), synth)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, name, err)
		}
		s, err := dataset.NewSynthetic(info, delay)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: unknown dataset kind: %s", dataset.ErrOpen, name)
}

// ParseSynth reads the comma separated key=value options of a
// synthetic dataset name.
func ParseSynth(opts string, info dataset.Info) (dataset.Info, time.Duration, error) {
	var delay time.Duration

	for _, opt := range strings.Split(opts, ",") {
		if opt == "" {
			continue
		}
		k, v, ok := strings.Cut(opt, "=")
		if !ok {
			return info, 0, fmt.Errorf("option %q is not key=value", opt)
		}

		var err error
		switch k {
		case "delay":
			delay, err = time.ParseDuration(v)
		case "levels":
			info.Levels, err = strconv.Atoi(v)
		case "page":
			info.PageSize, err = strconv.Atoi(v)
		case "channels":
			info.Channels, err = strconv.Atoi(v)
		case "depth":
			info.Depth, err = strconv.Atoi(v)
		default:
			err = fmt.Errorf("unknown option %q", k)
		}
		if err != nil {
			return info, 0, err
		}
	}

	return info, delay, nil
}
