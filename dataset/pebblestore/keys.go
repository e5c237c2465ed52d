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

package pebblestore

import (
	"encoding/binary"
)

const (
	pagePrefix = 'p'
	keySize    = 9
)

var (
	metaKey = []byte("m")
)

// PageKey is the store key of a page: a prefix byte then the index in
// big endian, so pages sort in index order.
func PageKey(index int64) []byte {
	key := make([]byte, keySize)
	key[0] = pagePrefix
	binary.BigEndian.PutUint64(key[1:], uint64(index))
	return key
}

// PageIndex reverses PageKey.
func PageIndex(key []byte) (int64, bool) {
	if len(key) != keySize || key[0] != pagePrefix {
		return -1, false
	}
	return int64(binary.BigEndian.Uint64(key[1:])), true
}
