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
	"math/rand"
	"strconv"
	"testing"
)

func BenchmarkTableIter(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapIter))
	b.Run("impl=packedTable", benchSizes(benchmarkPackedTableIter))
}

func BenchmarkTableGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetHit))
	b.Run("impl=packedTable", benchSizes(benchmarkPackedTableGetHit))
}

func BenchmarkTableGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetMiss))
	b.Run("impl=packedTable", benchSizes(benchmarkPackedTableGetMiss))
}

func BenchmarkTableIncGrow(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapIncGrow))
	b.Run("impl=packedTable", benchSizes(benchmarkPackedTableIncGrow))
}

func BenchmarkTablePutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutDelete))
	b.Run("impl=packedTable", benchSizes(benchmarkPackedTablePutDelete))
}

func benchSizes(f func(b *testing.B, n int)) func(*testing.B) {
	var cases = []int{
		64,
		512,
		4096,
		1 << 16,
		1 << 20,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n) })
		}
	}
}

// genKeys returns 32-mers drawn from a fixed seed, the typical key of a
// k-mer counting workload.
func genKeys(seed int64, n int) [][]byte {
	const k = 32
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n*k)
	for i := range buf {
		buf[i] = "ACGT"[rng.Intn(4)]
	}
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = buf[i*k : (i+1)*k : (i+1)*k]
	}
	return keys
}

func benchmarkRuntimeMapIter(b *testing.B, n int) {
	m := make(map[string]uint64, n)
	for _, k := range genKeys(1, n) {
		m[string(k)]++
	}
	b.ResetTimer()
	var tmp uint64
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += uint64(len(k)) + v
		}
	}
}

func benchmarkPackedTableIter(b *testing.B, n int) {
	m := New[uint64](0)
	for _, k := range genKeys(1, n) {
		m.Inc(k)
	}
	b.ResetTimer()
	var tmp uint64
	for i := 0; i < b.N; i++ {
		m.All(func(k []byte, v uint64) bool {
			tmp += uint64(len(k)) + v
			return true
		})
	}
}

func benchmarkRuntimeMapGetHit(b *testing.B, n int) {
	m := make(map[string]uint64, n)
	keys := genKeys(1, n)
	for _, k := range keys {
		m[string(k)]++
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[string(keys[i%len(keys)])]
	}
}

func benchmarkPackedTableGetHit(b *testing.B, n int) {
	m := New[uint64](0)
	keys := genKeys(1, n)
	for _, k := range keys {
		m.Inc(k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(keys[i%len(keys)])
	}
	b.StopTimer()
	b.ReportMetric(float64(m.Stats().Bytes)/float64(m.Len()), "bytes/entry")
}

func benchmarkRuntimeMapGetMiss(b *testing.B, n int) {
	m := make(map[string]uint64, n)
	for _, k := range genKeys(1, n) {
		m[string(k)]++
	}
	miss := genKeys(2, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[string(miss[i%len(miss)])]
	}
}

func benchmarkPackedTableGetMiss(b *testing.B, n int) {
	m := New[uint64](0)
	for _, k := range genKeys(1, n) {
		m.Inc(k)
	}
	miss := genKeys(2, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(miss[i%len(miss)])
	}
}

func benchmarkRuntimeMapIncGrow(b *testing.B, n int) {
	keys := genKeys(1, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[string]uint64)
		for _, k := range keys {
			m[string(k)]++
		}
	}
}

func benchmarkPackedTableIncGrow(b *testing.B, n int) {
	keys := genKeys(1, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := New[uint64](0)
		for _, k := range keys {
			m.Inc(k)
		}
	}
}

func benchmarkRuntimeMapPutDelete(b *testing.B, n int) {
	m := make(map[string]uint64, n)
	keys := genKeys(1, n)
	for _, k := range keys {
		m[string(k)]++
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % len(keys)
		delete(m, string(keys[j]))
		m[string(keys[j])] = 1
	}
}

func benchmarkPackedTablePutDelete(b *testing.B, n int) {
	m := New[uint64](0)
	keys := genKeys(1, n)
	for _, k := range keys {
		m.Inc(k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % len(keys)
		m.Delete(keys[j])
		m.Put(keys[j], 1)
	}
}
