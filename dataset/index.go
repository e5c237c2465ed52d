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

package dataset

// Page indices number the six cube faces 0-5 and then every
// subdivision breadth first: child k of page i is 6 + 4i + k.

const (
	RootPages = 6
)

func PageParent(i int64) int64 {
	if i < RootPages {
		return -1
	}
	return (i - RootPages) / 4
}

func PageChild(i int64, k int) int64 {
	return RootPages + 4*i + int64(k)
}

// PageOrder is the position of i among its siblings.
func PageOrder(i int64) int {
	if i < RootPages {
		return int(i)
	}
	return int((i - RootPages) % 4)
}

// PageRoot is the cube face a page belongs to.
func PageRoot(i int64) int {
	for i >= RootPages {
		i = PageParent(i)
	}
	return int(i)
}

// PageLevel is the subdivision depth of a page, 0 for faces.
func PageLevel(i int64) int {
	l := 0
	for i >= RootPages {
		i = PageParent(i)
		l++
	}
	return l
}

// PageCount is the number of pages in the first levels levels.
func PageCount(levels int) int64 {
	return 2 * ((int64(1) << (2 * uint(levels))) - 1)
}
