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

// Iterator walks the records of a Table in bucket order, and within a bucket
// in the order the records were inserted. The order is not sorted and is not
// preserved across expansions.
//
//	for it := t.Iter(); it.Valid(); it.Next() {
//	  fmt.Printf("%s: %d\n", it.Key(), it.Value())
//	}
//
// An Iterator is invalidated by any structural mutation of its table.
type Iterator[V Value] struct {
	t       *Table[V]
	bucket  int
	rec     record
	version uint64
}

// Iter returns an iterator positioned at the first record of the first
// non-empty bucket, or an exhausted iterator if the table is empty.
func (t *Table[V]) Iter() *Iterator[V] {
	it := &Iterator[V]{t: t, version: t.version}
	it.seek(0)
	return it
}

// seek positions the iterator at the first record of the first non-empty
// bucket at or after bucket i.
func (it *Iterator[V]) seek(i int) {
	next, ok := it.t.occupied.NextSet(uint(i))
	if !ok || int(next) >= len(it.t.buckets) {
		it.bucket = len(it.t.buckets)
		it.rec = record{}
		return
	}
	it.bucket = int(next)
	it.rec = decodeRecord(it.t.buckets[it.bucket], 0, it.t.valueSize)
}

func (it *Iterator[V]) checkVersion() {
	if it.version != it.t.version {
		panic(errors.AssertionFailedf("packedhash: iterator used after table mutation (version %d, table at %d)",
			it.version, it.t.version))
	}
}

func (it *Iterator[V]) checkValid() {
	it.checkVersion()
	if !it.Valid() {
		panic(errors.AssertionFailedf("packedhash: use of exhausted iterator"))
	}
}

// Valid returns true while the iterator is positioned at a record.
func (it *Iterator[V]) Valid() bool {
	return it.bucket < len(it.t.buckets)
}

// Next advances the iterator to the next record, skipping empty buckets. It
// is a noop on an exhausted iterator.
func (it *Iterator[V]) Next() {
	it.checkVersion()
	if !it.Valid() {
		return
	}
	b := it.t.buckets[it.bucket]
	if it.rec.end < len(b) {
		it.rec = decodeRecord(b, it.rec.end, it.t.valueSize)
		return
	}
	it.seek(it.bucket + 1)
}

// Key returns the key of the current record. The returned slice aliases the
// table's memory and is only valid until the next structural mutation.
func (it *Iterator[V]) Key() []byte {
	it.checkValid()
	return it.rec.key(it.t.buckets[it.bucket])
}

// Value returns the value of the current record.
func (it *Iterator[V]) Value() V {
	it.checkValid()
	return loadValue[V](it.rec.value(it.t.buckets[it.bucket]))
}

// SetValue replaces the value of the current record. It is not a structural
// mutation and does not invalidate the iterator.
func (it *Iterator[V]) SetValue(v V) {
	it.checkValid()
	storeValue(it.rec.value(it.t.buckets[it.bucket]), v)
}

// encoded returns the complete encoding of the current record.
func (it *Iterator[V]) encoded() []byte {
	return it.t.buckets[it.bucket][it.rec.off:it.rec.end]
}
