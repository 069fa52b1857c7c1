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

import "fmt"

// Stats describes how the entries of a Table are spread over its buckets.
type Stats struct {
	Buckets      int
	Entries      int
	EmptyBuckets int
	// MaxBucketEntries and MaxBucketBytes describe the most populated bucket.
	MaxBucketEntries int
	MaxBucketBytes   int
	// Bytes is the total size of all packed records.
	Bytes      int
	LoadFactor float64
}

// Stats walks every bucket of the table and summarizes its occupancy.
func (t *Table[V]) Stats() Stats {
	s := Stats{Buckets: len(t.buckets), Entries: t.used}
	for _, b := range t.buckets {
		if len(b) == 0 {
			s.EmptyBuckets++
			continue
		}
		var n int
		for off := 0; off < len(b); n++ {
			off = decodeRecord(b, off, t.valueSize).end
		}
		s.Bytes += len(b)
		s.MaxBucketEntries = max(s.MaxBucketEntries, n)
		s.MaxBucketBytes = max(s.MaxBucketBytes, len(b))
	}
	if s.Buckets > 0 {
		s.LoadFactor = float64(s.Entries) / float64(s.Buckets)
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("buckets=%d entries=%d empty=%d load=%.2f bytes=%d max-bucket=%d/%dB",
		s.Buckets, s.Entries, s.EmptyBuckets, s.LoadFactor, s.Bytes, s.MaxBucketEntries, s.MaxBucketBytes)
}
