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

package tests

import (
	"fmt"
	"os"
	"sync/atomic"
)

var tempcounter uint64

// Return a filename string in the form of
// /tmp/scmcache_test.<Process Id>-<Counter>
func Tempfile() string {
	return fmt.Sprintf("%s/scmcache_test.%d-%d",
		os.TempDir(), os.Getpid(), atomic.AddUint64(&tempcounter, 1))
}
