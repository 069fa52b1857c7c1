// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package packedhash

import "github.com/cockroachdb/errors"

// Slot is a handle on the value of one record in a Table. A Slot remains
// valid until the next structural mutation of its table. Two Slots obtained
// for the same key with no mutation in between compare equal.
type Slot[V Value] struct {
	t       *Table[V]
	bucket  int
	off     int
	version uint64
}

func (t *Table[V]) slot(bucket, off int) Slot[V] {
	return Slot[V]{t: t, bucket: bucket, off: off, version: t.version}
}

func (s Slot[V]) bytes() []byte {
	if s.t == nil {
		panic(errors.AssertionFailedf("packedhash: use of zero Slot"))
	}
	if s.version != s.t.version {
		panic(errors.AssertionFailedf("packedhash: slot used after table mutation (version %d, table at %d)",
			s.version, s.t.version))
	}
	return s.t.buckets[s.bucket][s.off : s.off+s.t.valueSize]
}

// Load returns the value held by the slot.
func (s Slot[V]) Load() V {
	return loadValue[V](s.bytes())
}

// Store replaces the value held by the slot.
func (s Slot[V]) Store(v V) {
	storeValue(s.bytes(), v)
}

// Add adds delta to the value held by the slot and returns the new value.
func (s Slot[V]) Add(delta V) V {
	b := s.bytes()
	v := loadValue[V](b) + delta
	storeValue(b, v)
	return v
}
