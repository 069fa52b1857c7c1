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

// Package rank orders the contents of a packedhash.Table by value.
package rank

import (
	"bytes"
	"sort"

	psort "github.com/exascience/pargo/sort"
	"github.com/seqhash/packedhash"
)

// Entry is a key/value pair copied out of a table.
type Entry[V packedhash.Value] struct {
	Key   []byte
	Value V
}

// Collect copies every entry of t whose value is at least min. The keys are
// packed into a single shared allocation and stay valid after t changes.
func Collect[V packedhash.Value](t *packedhash.Table[V], min V) []Entry[V] {
	var n, size int
	t.All(func(k []byte, v V) bool {
		if v >= min {
			n++
			size += len(k)
		}
		return true
	})
	entries := make([]Entry[V], 0, n)
	arena := make([]byte, 0, size)
	t.All(func(k []byte, v V) bool {
		if v >= min {
			off := len(arena)
			arena = append(arena, k...)
			entries = append(entries, Entry[V]{Key: arena[off:len(arena):len(arena)], Value: v})
		}
		return true
	})
	return entries
}

func less[V packedhash.Value](a, b *Entry[V]) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return bytes.Compare(a.Key, b.Key) < 0
}

type byValue[V packedhash.Value] []Entry[V]

func (s byValue[V]) SequentialSort(i, j int) {
	s = s[i:j]
	sort.SliceStable(s, func(i, j int) bool {
		return less(&s[i], &s[j])
	})
}

func (s byValue[V]) NewTemp() psort.StableSorter {
	return make(byValue[V], len(s))
}

func (s byValue[V]) Len() int {
	return len(s)
}

func (s byValue[V]) Less(i, j int) bool {
	return less(&s[i], &s[j])
}

func (s byValue[V]) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(byValue[V])
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ByValue sorts entries by descending value, breaking ties by ascending key,
// using a parallel merge sort.
func ByValue[V packedhash.Value](entries []Entry[V]) {
	psort.StableSort(byValue[V](entries))
}

// Top returns the n highest ranked entries of sorted, or all of them when n
// is not positive.
func Top[V packedhash.Value](sorted []Entry[V], n int) []Entry[V] {
	if n > 0 && n < len(sorted) {
		return sorted[:n]
	}
	return sorted
}
