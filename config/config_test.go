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

package config

import (
	"errors"
	"github.com/scmcache/scmcache/cache"
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	tests.Assert(t, cfg.Validate() == nil)
	tests.Assert(t, cfg.Cache == cache.DefaultConfig())
}

func TestLoadJsonc(t *testing.T) {
	path := write(t, "scm.jsonc", `{
	// Small atlas for tests
	"cache": {
		"grid_size": 8,
		"page_size": 64,
	},
	"datasets": ["synth:levels=2", "pebble:/data/earth"],
	"log_level": "debug",
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	tests.Assert(t, cfg.Cache.GridSize == 8)
	tests.Assert(t, cfg.Cache.PageSize == 64)

	// Unset values keep their defaults
	tests.Assert(t, cfg.Cache.Threads == cache.DefaultConfig().Threads)
	tests.Assert(t, cfg.Frames == Default().Frames)
	tests.Assert(t, len(cfg.Datasets) == 2)

	l, err := cfg.Level()
	require.NoError(t, err)
	tests.Assert(t, l == slog.LevelDebug)
}

func TestLoadYaml(t *testing.T) {
	path := write(t, "scm.yaml", `
cache:
  grid_size: 4
  threads: 1
  need_queue_size: 4
  load_queue_size: 2
frames: 50
workload:
  level: 2
  zipf: 1.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	tests.Assert(t, cfg.Cache.GridSize == 4)
	tests.Assert(t, cfg.Cache.Threads == 1)
	tests.Assert(t, cfg.Frames == 50)
	tests.Assert(t, cfg.Workload.Level == 2)
	tests.Assert(t, cfg.Workload.Zipf == 1.5)
	tests.Assert(t, cfg.Workload.PagesPerFrame == Default().Workload.PagesPerFrame)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	tests.Assert(t, err != nil)

	_, err = Load(write(t, "scm.toml", "frames = 1"))
	tests.Assert(t, errors.Is(err, ErrConfig))

	_, err = Load(write(t, "scm.json", `{"frames": `))
	tests.Assert(t, errors.Is(err, ErrConfig))

	_, err = Load(write(t, "scm.yml", "workload:\n  zipf: 0.5\n"))
	tests.Assert(t, errors.Is(err, ErrConfig))

	_, err = Load(write(t, "scm.yml", "cache:\n  threads: 0\n"))
	tests.Assert(t, errors.Is(err, cache.ErrConfig))

	_, err = Load(write(t, "scm.json", `{"log_level": "loud"}`))
	tests.Assert(t, errors.Is(err, ErrConfig))
}
