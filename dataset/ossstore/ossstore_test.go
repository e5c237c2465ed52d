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
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/scmcache/scmcache/dataset"
	"github.com/scmcache/scmcache/tests"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
)

type memBucket struct {
	objects map[string][]byte
	fail    error
	lock    sync.Mutex
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (m *memBucket) GetObject(key string, options ...oss.Option) (io.ReadCloser, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	b, ok := m.objects[key]
	if !ok {
		return nil, oss.ServiceError{Code: "NoSuchKey", StatusCode: 404}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBucket) PutObject(key string, reader io.Reader, options ...oss.Option) error {
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.objects[key] = b

	return nil
}

func TestObjectKeys(t *testing.T) {
	tests.Assert(t, PageObject("earth/color", 42) == "earth/color/pages/42.page")
	tests.Assert(t, PageObject("", 0) == "pages/0.page")
	tests.Assert(t, MetaObject("earth") == "earth/meta.msgpack")
}

func TestParseURL(t *testing.T) {
	t.Setenv(EnvEndpoint, "oss-cn-hangzhou.aliyuncs.com")
	t.Setenv(EnvAccessKeyID, "id")
	t.Setenv(EnvAccessKeySecret, "secret")

	cfg, err := ParseURL("oss://maps/earth/color/")
	require.NoError(t, err)
	tests.Assert(t, cfg.Bucket == "maps")
	tests.Assert(t, cfg.Prefix == "earth/color")
	tests.Assert(t, cfg.Endpoint == "oss-cn-hangzhou.aliyuncs.com")
	tests.Assert(t, cfg.AccessKeyID == "id")

	_, err = ParseURL("s3://maps/earth")
	tests.Assert(t, err != nil)
}

func TestStoreReadWrite(t *testing.T) {
	info := dataset.Info{PageSize: 4, Channels: 1, Depth: 1, Levels: 2}
	bkt := newMemBucket()

	s, err := create(bkt, "earth", info)
	require.NoError(t, err)

	page := make([]byte, info.PageBytes())
	for i := range page {
		page[i] = byte(i)
	}
	require.NoError(t, s.WritePage(8, page))
	tests.Assert(t, errors.Is(s.WritePage(9, page[:3]), dataset.ErrGeometry))

	s, err = open(bkt, "earth")
	require.NoError(t, err)
	tests.Assert(t, s.Info() == info)

	got := make([]byte, info.PageBytes())
	found, err := s.ReadPage(8, 1, got)
	require.NoError(t, err)
	tests.Assert(t, found)
	require.Equal(t, page, got)

	found, err = s.ReadPage(9, 1, got)
	require.NoError(t, err)
	tests.Assert(t, !found)

	min, max, err := s.PageBounds(8)
	require.NoError(t, err)
	wmin, wmax := dataset.Bounds(info, page)
	tests.Assert(t, min == wmin && max == wmax)

	// Anything but a missing object is a read error
	bkt.fail = oss.ServiceError{Code: "AccessDenied", StatusCode: 403}
	_, err = s.ReadPage(8, 1, got)
	tests.Assert(t, errors.Is(err, dataset.ErrIO))
}

func TestStoreOpenMissingMeta(t *testing.T) {
	_, err := open(newMemBucket(), "nothing")
	tests.Assert(t, errors.Is(err, dataset.ErrOpen))
}
