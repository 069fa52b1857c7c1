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

// Package packedhash is a hash table from byte-string keys to small
// fixed-width integer values, built for counting and indexing millions of
// short keys (read identifiers, k-mers, encoded reads) without a heap
// allocation per entry.
//
// # Layout
//
// A Table is an array of buckets. The bucket of a key is hash(key) modulo the
// bucket count. Each bucket is a single contiguous byte buffer holding every
// record that hashes to it, packed back to back with no padding:
//
//	bucket 0: [hdr|key|val][hdr|key|val]
//	bucket 1:
//	bucket 2: [hdr|key.........|val]
//	...
//
// The header is one byte for keys shorter than 128 bytes and two bytes
// otherwise (see record.go). Keys are compared by length and then by bytes, so
// they may contain any byte value including zero. A bucket is searched by a
// linear scan, which is cheap because the whole bucket is one or two cache
// lines at the default load. That is also why the table tolerates a high load
// factor: the default is 5 entries per bucket.
//
// # Growth
//
// When an insert finds the table at its maximum load it first doubles the
// bucket count. Expansion makes two passes over the existing records. The
// first pass computes the exact number of bytes every new bucket will hold so
// that each new buffer is allocated once at its final size. The second pass
// copies every encoded record verbatim to the end of its new bucket. No key
// comparisons are needed in the second pass since the keys are already known
// to be unique, which keeps expansion linear in the size of the table.
//
// # Borrowing values
//
// GetOrInsert returns a Slot, a handle on the value of a record. Slots and
// Iterators are only valid until the next structural mutation of the table
// (inserting a new key, deleting a present key, expansion, Clear, Close),
// since any of those may move the bytes they refer to. Using a stale Slot or
// Iterator panics rather than reading moved memory.
//
// A Table is NOT goroutine-safe.
package packedhash

import (
	"bytes"
	"fmt"
	"strings"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

const (
	debug = false

	defaultInitialBuckets = 8
	defaultMaxLoadFactor  = 5.0
)

// Value is the set of types a Table can store as values. Values are encoded
// little-endian in unsafe.Sizeof(V) bytes.
type Value interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint | ~uintptr
}

// Table is an unordered map from byte-string keys to values of type V with
// GetOrInsert, Get, Delete, and All operations.
type Table[V Value] struct {
	// The hash function used to select buckets.
	hash func(key []byte) uint32
	// The allocator to use for bucket buffers.
	allocator Allocator
	// buckets holds one packed buffer per bucket. The length of each buffer is
	// the number of bytes used by its records.
	buckets [][]byte
	// occupied has bit i set iff buckets[i] is non-empty.
	occupied *bitset.BitSet
	// The number of records across all buckets.
	used int
	// The number of records at which the next insert expands the table.
	maxUsed        int
	maxLoadFactor  float64
	initialBuckets int
	valueSize      int
	// version is incremented by every structural mutation. Slots and
	// iterators capture it to detect use after the table changed under them.
	version uint64
}

// New constructs a new Table with the specified initial number of buckets. If
// initialBuckets is <= 0 the table starts with 8 buckets.
func New[V Value](initialBuckets int, options ...option[V]) *Table[V] {
	if initialBuckets <= 0 {
		initialBuckets = defaultInitialBuckets
	}
	var zero V
	t := &Table[V]{
		hash:           Hash,
		allocator:      defaultAllocator{},
		maxLoadFactor:  defaultMaxLoadFactor,
		initialBuckets: initialBuckets,
		valueSize:      int(unsafe.Sizeof(zero)),
	}

	for _, op := range options {
		op.apply(t)
	}

	t.reset(initialBuckets)
	t.checkInvariants()
	return t
}

// reset installs n empty buckets. Existing buffers must already have been
// released.
func (t *Table[V]) reset(n int) {
	t.buckets = make([][]byte, n)
	t.occupied = bitset.New(uint(n))
	t.used = 0
	t.maxUsed = t.threshold(n)
}

func (t *Table[V]) threshold(n int) int {
	return int(t.maxLoadFactor * float64(n))
}

func (t *Table[V]) bucketIndex(key []byte, n int) int {
	return int(uint64(t.hash(key)) % uint64(n))
}

// Close closes the table, releasing every bucket buffer back to its
// configured allocator. It is unnecessary to close a table using the default
// allocator. It is invalid to use a Table after it has been closed, though
// Close itself is idempotent.
func (t *Table[V]) Close() {
	t.release()
	t.buckets = nil
	t.occupied = bitset.New(0)
	t.used = 0
	t.maxUsed = 0
	t.version++
}

// Clear removes all entries, releases every bucket buffer and resets the
// table to its initial bucket count.
func (t *Table[V]) Clear() {
	t.release()
	t.reset(t.initialBuckets)
	t.version++
	t.checkInvariants()
}

func (t *Table[V]) release() {
	for i, b := range t.buckets {
		if cap(b) > 0 {
			t.allocator.Free(b[:cap(b)])
		}
		t.buckets[i] = nil
	}
}

// Len returns the number of entries in the table.
func (t *Table[V]) Len() int {
	return t.used
}

// lookup finds the record for key. It returns the index of the bucket the
// key hashes to whether or not the key was found.
func (t *Table[V]) lookup(key []byte) (bucket int, r record, ok bool) {
	bucket = t.bucketIndex(key, len(t.buckets))
	b := t.buckets[bucket]
	for off := 0; off < len(b); off = r.end {
		r = decodeRecord(b, off, t.valueSize)
		// Skip keys of a different length without touching their bytes.
		if r.keyLen() == len(key) && bytes.Equal(r.key(b), key) {
			return bucket, r, true
		}
	}
	return bucket, record{}, false
}

// GetOrInsert returns the Slot holding the value for key, inserting key with
// a zero value if it is not present. Inserting may expand the table, which
// invalidates every outstanding Slot and Iterator. Looking up a key that is
// already present does not. GetOrInsert panics if key is longer than
// MaxKeyLen.
func (t *Table[V]) GetOrInsert(key []byte) Slot[V] {
	checkKey(key)

	// Before performing the lookup we may decide the table is getting
	// overcrowded. Expanding up front means a newly inserted record is never
	// immediately moved again.
	for t.used >= t.maxUsed {
		t.expand()
	}

	i, r, ok := t.lookup(key)
	if ok {
		return t.slot(i, r.valOff)
	}

	size := recordSize(len(key), t.valueSize)
	b := t.grow(i, size)
	start := len(b) - size
	valOff := start + putRecord(b[start:], key, t.valueSize)
	t.occupied.Set(uint(i))
	t.used++
	t.version++

	if debug {
		fmt.Printf("insert(%q): bucket=%d offset=%d size=%d used=%d\n", key, i, start, size, t.used)
	}

	t.checkInvariants()
	return t.slot(i, valOff)
}

// grow extends bucket i by exactly n bytes, reallocating its buffer only if
// the existing capacity is insufficient.
func (t *Table[V]) grow(i, n int) []byte {
	b := t.buckets[i]
	newLen := len(b) + n
	if newLen <= cap(b) {
		b = b[:newLen]
	} else {
		nb := t.allocator.Alloc(newLen)[:newLen]
		copy(nb, b)
		if cap(b) > 0 {
			t.allocator.Free(b[:cap(b)])
		}
		b = nb
	}
	t.buckets[i] = b
	return b
}

// Get retrieves the value for the specified key, returning ok=false if the
// key is not present. Get never inserts and never expands the table.
func (t *Table[V]) Get(key []byte) (value V, ok bool) {
	i, r, ok := t.lookup(key)
	if !ok {
		return value, false
	}
	return loadValue[V](r.value(t.buckets[i])), true
}

// Lookup returns the Slot holding the value for key, returning ok=false if
// the key is not present. Like Get it never inserts.
func (t *Table[V]) Lookup(key []byte) (s Slot[V], ok bool) {
	i, r, ok := t.lookup(key)
	if !ok {
		return s, false
	}
	return t.slot(i, r.valOff), true
}

// Put inserts an entry into the table, overwriting an existing value if an
// entry with the same key already exists.
func (t *Table[V]) Put(key []byte, value V) {
	t.GetOrInsert(key).Store(value)
}

// Inc increments the value for key, inserting it with a value of 1 if it is
// not present, and returns the new value.
func (t *Table[V]) Inc(key []byte) V {
	return t.GetOrInsert(key).Add(1)
}

// Delete deletes the entry corresponding to the specified key from the
// table. It is a noop to delete a non-existent key. Deleting never shrinks
// the bucket array.
func (t *Table[V]) Delete(key []byte) {
	i, r, ok := t.lookup(key)
	if !ok {
		return
	}

	// Shift everything after the record left over it.
	b := t.buckets[i]
	n := copy(b[r.off:], b[r.end:])
	b = b[:r.off+n]
	t.buckets[i] = b
	if len(b) == 0 {
		t.occupied.Clear(uint(i))
	}
	t.used--
	t.version++

	if debug {
		fmt.Printf("delete(%q): bucket=%d offset=%d size=%d used=%d\n", key, i, r.off, r.size(), t.used)
	}

	t.checkInvariants()
}

// All calls yield sequentially for each key and value present in the table
// in bucket order. If yield returns false, iteration stops. The key passed to
// yield aliases the table's memory and must be copied to be retained. The
// table must not be structurally modified during iteration. Use Iter and
// Iterator.SetValue to update values while iterating.
func (t *Table[V]) All(yield func(key []byte, value V) bool) {
	for it := t.Iter(); it.Valid(); it.Next() {
		if !yield(it.Key(), it.Value()) {
			return
		}
	}
}

// expand doubles the bucket count and redistributes every record.
func (t *Table[V]) expand() {
	oldN := len(t.buckets)
	newN := 2 * oldN
	if newN == 0 {
		panic(errors.AssertionFailedf("packedhash: use of closed table"))
	}

	// Size every new bucket up front so that each buffer is allocated once.
	sizes := make([]int, newN)
	var m int
	for it := t.Iter(); it.Valid(); it.Next() {
		sizes[t.bucketIndex(it.Key(), newN)] += it.rec.size()
		m++
	}
	if m != t.used {
		panic(errors.AssertionFailedf("packedhash: found %d records during expansion, but used count is %d", m, t.used))
	}

	buckets := make([][]byte, newN)
	occupied := bitset.New(uint(newN))
	for i, size := range sizes {
		if size > 0 {
			buckets[i] = t.allocator.Alloc(size)[:0]
			occupied.Set(uint(i))
		}
	}

	// Place every record at the end of its new bucket. The keys are known to
	// be unique so there is nothing to compare against.
	for it := t.Iter(); it.Valid(); it.Next() {
		i := t.bucketIndex(it.Key(), newN)
		buckets[i] = append(buckets[i], it.encoded()...)
	}
	for i, b := range buckets {
		if len(b) != sizes[i] {
			panic(errors.AssertionFailedf("packedhash: bucket %d holds %d bytes, expected %d", i, len(b), sizes[i]))
		}
	}

	t.release()
	t.buckets = buckets
	t.occupied = occupied
	t.maxUsed = t.threshold(newN)
	t.version++

	if debug {
		fmt.Printf("expand: buckets=%d->%d used=%d max-used=%d\n", oldN, newN, t.used, t.maxUsed)
	}

	t.checkInvariants()
}

func (t *Table[V]) checkInvariants() {
	if invariants {
		var used int
		for i, b := range t.buckets {
			if t.occupied.Test(uint(i)) != (len(b) > 0) {
				panic(fmt.Sprintf("invariant failed: bucket %d has %d bytes but occupied=%t\n%s",
					i, len(b), t.occupied.Test(uint(i)), t.debugString()))
			}
			seen := make(map[string]struct{})
			for off := 0; off < len(b); {
				r := decodeRecord(b, off, t.valueSize)
				key := r.key(b)
				if j := t.bucketIndex(key, len(t.buckets)); j != i {
					panic(fmt.Sprintf("invariant failed: key %q found in bucket %d but hashes to %d\n%s",
						key, i, j, t.debugString()))
				}
				if _, ok := seen[string(key)]; ok {
					panic(fmt.Sprintf("invariant failed: duplicate key %q in bucket %d\n%s",
						key, i, t.debugString()))
				}
				seen[string(key)] = struct{}{}
				used++
				off = r.end
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d records, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if t.buckets != nil && t.used > t.maxUsed {
			panic(fmt.Sprintf("invariant failed: used count %d exceeds max %d\n%s",
				t.used, t.maxUsed, t.debugString()))
		}
	}
}

func (t *Table[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d  max-used=%d\n", len(t.buckets), t.used, t.maxUsed)
	for i, b := range t.buckets {
		if len(b) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %4d: %d bytes\n", i, len(b))
		for off := 0; off < len(b); {
			r := decodeRecord(b, off, t.valueSize)
			fmt.Fprintf(&buf, "        %4d: %q = %v\n", off, r.key(b), loadValue[V](r.value(b)))
			off = r.end
		}
	}
	return buf.String()
}
