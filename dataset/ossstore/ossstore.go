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

package ossstore

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/scmcache/scmcache/dataset"
	"github.com/vmihailenco/msgpack/v5"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	Scheme = "oss"

	EnvEndpoint        = "OSS_ENDPOINT"
	EnvAccessKeyID     = "OSS_ACCESS_KEY_ID"
	EnvAccessKeySecret = "OSS_ACCESS_KEY_SECRET"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// ParseURL reads the bucket and prefix of oss://bucket/prefix and
// takes the endpoint and credentials from the environment.
func ParseURL(name string) (Config, error) {
	u, err := url.Parse(name)
	if err != nil {
		return Config{}, err
	}
	if u.Scheme != Scheme || u.Host == "" {
		return Config{}, fmt.Errorf("not an oss url: %s", name)
	}

	return Config{
		Endpoint:        os.Getenv(EnvEndpoint),
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		AccessKeySecret: os.Getenv(EnvAccessKeySecret),
		Bucket:          u.Host,
		Prefix:          strings.Trim(u.Path, "/"),
	}, nil
}

// PageObject is the object key of a bordered page.
func PageObject(prefix string, index int64) string {
	return path.Join(prefix, "pages", strconv.FormatInt(index, 10)+".page")
}

func MetaObject(prefix string) string {
	return path.Join(prefix, "meta.msgpack")
}

// bucket is the part of *oss.Bucket the store uses.
type bucket interface {
	GetObject(key string, options ...oss.Option) (io.ReadCloser, error)
	PutObject(key string, reader io.Reader, options ...oss.Option) error
}

// Store reads raw bordered pages from an object storage bucket, one
// object per page.
type Store struct {
	bkt    bucket
	prefix string
	info   dataset.Info
}

func connect(cfg Config) (bucket, error) {
	cli, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	return cli.Bucket(cfg.Bucket)
}

func Open(cfg Config) (*Store, error) {
	bkt, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
	}
	return open(bkt, cfg.Prefix)
}

func open(bkt bucket, prefix string) (*Store, error) {
	s := &Store{bkt: bkt, prefix: prefix}

	body, err := bkt.GetObject(MetaObject(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, MetaObject(prefix), err)
	}
	defer body.Close()

	if err := msgpack.NewDecoder(body).Decode(&s.info); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dataset.ErrOpen, MetaObject(prefix), err)
	}
	if err := s.info.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrOpen, err)
	}

	return s, nil
}

// Create writes the dataset description under cfg.Prefix. Pages are
// added with WritePage.
func Create(cfg Config, info dataset.Info) (*Store, error) {
	bkt, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return create(bkt, cfg.Prefix, info)
}

func create(bkt bucket, prefix string, info dataset.Info) (*Store, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	b, err := msgpack.Marshal(&info)
	if err != nil {
		return nil, err
	}
	if err := bkt.PutObject(MetaObject(prefix), bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &Store{bkt: bkt, prefix: prefix, info: info}, nil
}

func notFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == 404 || se.Code == "NoSuchKey"
	}
	return false
}

func (s *Store) Info() dataset.Info {
	return s.info
}

func (s *Store) ReadPage(index int64, level int, buf []byte) (bool, error) {
	n := s.info.PageBytes()
	if len(buf) < n {
		return false, fmt.Errorf("%w: buffer %d < %d", dataset.ErrIO, len(buf), n)
	}

	body, err := s.bkt.GetObject(PageObject(s.prefix, index))
	if notFound(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}
	defer body.Close()

	if _, err := io.ReadFull(body, buf[:n]); err != nil {
		return false, fmt.Errorf("%w: page %d: %w", dataset.ErrIO, index, err)
	}

	return true, nil
}

func (s *Store) PageBounds(index int64) (float32, float32, error) {
	buf := make([]byte, s.info.PageBytes())
	found, err := s.ReadPage(index, dataset.PageLevel(index), buf)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, fmt.Errorf("%w: no page %d", dataset.ErrIO, index)
	}

	min, max := dataset.Bounds(s.info, buf)
	return min, max, nil
}

func (s *Store) WritePage(index int64, pixels []byte) error {
	if len(pixels) != s.info.PageBytes() {
		return fmt.Errorf("%w: page %d has %d bytes, want %d",
			dataset.ErrGeometry, index, len(pixels), s.info.PageBytes())
	}
	return s.bkt.PutObject(PageObject(s.prefix, index), bytes.NewReader(pixels))
}

func (s *Store) Close() error {
	return nil
}
