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
	"encoding/json"
	"errors"
	"fmt"
	"github.com/scmcache/scmcache/cache"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrConfig = errors.New("invalid configuration")
)

// Config is what the applications read from a config file. Values
// missing from the file keep their defaults.
type Config struct {
	Cache    cache.Config   `json:"cache" yaml:"cache"`
	Datasets []string       `json:"datasets" yaml:"datasets"`
	Frames   int            `json:"frames" yaml:"frames"`
	Workload WorkloadConfig `json:"workload" yaml:"workload"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

// WorkloadConfig shapes the page requests of the benchmark.
type WorkloadConfig struct {
	// Deepest quadtree level requested
	Level int `json:"level" yaml:"level"`

	PagesPerFrame int `json:"pages_per_frame" yaml:"pages_per_frame"`

	// Zipf skew, must be greater than 1
	Zipf float64 `json:"zipf" yaml:"zipf"`

	// Frames between stats lines, 0 for none
	StatsInterval int `json:"stats_interval" yaml:"stats_interval"`
}

func Default() Config {
	return Config{
		Cache:    cache.DefaultConfig(),
		Datasets: []string{"synth:levels=4"},
		Frames:   1000,
		Workload: WorkloadConfig{
			Level:         3,
			PagesPerFrame: 16,
			Zipf:          1.1,
			StatsInterval: 100,
		},
		LogLevel: "info",
	}
}

// Load reads a .json, .jsonc, .yaml or .yml file on top of the
// defaults. JSON files may contain comments and trailing commas.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: invalid JSONC: %w", ErrConfig, path, err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unknown file type %q", ErrConfig, path, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: %d frames", ErrConfig, c.Frames)
	}
	if c.Workload.Level < 0 {
		return fmt.Errorf("%w: level %d", ErrConfig, c.Workload.Level)
	}
	if c.Workload.PagesPerFrame <= 0 {
		return fmt.Errorf("%w: %d pages per frame", ErrConfig, c.Workload.PagesPerFrame)
	}
	if c.Workload.Zipf <= 1 {
		return fmt.Errorf("%w: zipf skew %v must be greater than 1", ErrConfig, c.Workload.Zipf)
	}
	if c.Workload.StatsInterval < 0 {
		return fmt.Errorf("%w: stats interval %d", ErrConfig, c.Workload.StatsInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level is LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("%w: log level: %w", ErrConfig, err)
	}
	return l, nil
}

// Logger installs a text handler at the configured level as the
// default logger.
func (c *Config) Logger() *slog.Logger {
	l, _ := c.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}
