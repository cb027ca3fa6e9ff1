/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package goroutine fronts a shared ants.Pool so the broker never spawns
// unbounded raw goroutines per connection or per timer fire.
package goroutine

import (
	"github.com/panjf2000/ants/v2"
)

var pool *ants.Pool

func init() {
	p, err := ants.NewPool(ants.DefaultAntsPoolSize, ants.WithNonblocking(false))
	if err != nil {
		panic(err)
	}
	pool = p
}

// Go submits fn to the shared pool, which blocks the caller while the
// pool is saturated. If Submit returns an error (e.g. the pool has been
// released), Go falls back to a raw goroutine.
func Go(fn func()) {
	if err := pool.Submit(fn); err != nil {
		go fn()
	}
}
