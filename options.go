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

import (
	"math"

	"github.com/cockroachdb/errors"
)

// option provide an interface to do work on Table while it is being created.
type option[V Value] interface {
	apply(t *Table[V])
}

type hashOption[V Value] struct {
	hash func(key []byte) uint32
}

func (op hashOption[V]) apply(t *Table[V]) {
	t.hash = op.hash
}

// WithHash is an option to specify the hash function used to pick the bucket
// of a key. The bucket is hash(key) modulo the bucket count.
func WithHash[V Value](hash func(key []byte) uint32) option[V] {
	return hashOption[V]{hash}
}

type maxLoadFactorOption[V Value] struct {
	factor float64
}

func (op maxLoadFactorOption[V]) apply(t *Table[V]) {
	if !(op.factor > 0) || math.IsInf(op.factor, 0) {
		panic(errors.Newf("packedhash: invalid max load factor %v", op.factor))
	}
	t.maxLoadFactor = op.factor
}

// WithMaxLoadFactor is an option to specify the average number of entries
// per bucket at which the table doubles its bucket count. The default is 5.
func WithMaxLoadFactor[V Value](factor float64) option[V] {
	return maxLoadFactorOption[V]{factor}
}

// Allocator specifies an interface for allocating and releasing the bucket
// buffers used by a Table. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that buffers be
// freed then Table.Close must be called in order to ensure Free is called
// for every outstanding buffer.
type Allocator interface {
	// Alloc should return a slice equivalent to make([]byte, n).
	Alloc(n int) []byte

	// Free can optionally release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by Alloc. The slice
	// spans the full capacity returned by Alloc.
	Free(b []byte)
}

type defaultAllocator struct{}

func (defaultAllocator) Alloc(n int) []byte {
	return make([]byte, n)
}

func (defaultAllocator) Free(b []byte) {
}

type allocatorOption[V Value] struct {
	allocator Allocator
}

func (op allocatorOption[V]) apply(t *Table[V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Table[V].
func WithAllocator[V Value](allocator Allocator) option[V] {
	return allocatorOption[V]{allocator}
}
