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
	"fmt"
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	key := []byte("@SRR000001.1 HWI-EAS110_103327062:6:13:1092:579 length=36")
	require.Equal(t, Hash(key), Hash(append([]byte(nil), key...)))
}

func TestHashUnaligned(t *testing.T) {
	buf := make([]byte, 64)
	rand.Read(buf)
	key := append([]byte(nil), buf[:40]...)
	for off := 1; off < 8; off++ {
		copy(buf[off:], key)
		require.Equal(t, Hash(key), Hash(buf[off:off+len(key)]), "offset %d", off)
	}
}

func TestHashLengths(t *testing.T) {
	// Every prefix length exercises a different combination of full blocks
	// and tail bytes, including a zero byte tail.
	buf := make([]byte, 40)
	seen := make(map[uint32]int)
	for n := 0; n <= len(buf); n++ {
		h := Hash(buf[:n])
		prev, dup := seen[h]
		require.False(t, dup, "length %d collides with length %d", n, prev)
		seen[h] = n
	}
}

func TestHashZeroBytes(t *testing.T) {
	keys := []string{"", "\x00", "a", "a\x00", "\x00a", "a\x00b", "a\x00c", "ab"}
	seen := make(map[uint32]string)
	for _, k := range keys {
		h := Hash([]byte(k))
		prev, dup := seen[h]
		require.False(t, dup, "%q collides with %q", k, prev)
		seen[h] = k
	}
}

func TestHashDistribution(t *testing.T) {
	const (
		buckets = 64
		count   = 100000
	)
	var counts [buckets]int
	for i := 0; i < count; i++ {
		counts[Hash([]byte(fmt.Sprintf("read%d", i)))%buckets]++
	}
	const mean = count / buckets
	for i, n := range counts {
		require.InDelta(t, mean, n, mean/4, "bucket %d", i)
	}
}

func TestHashAvalanche(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const trials = 2000
	var total int
	key := make([]byte, 16)
	for i := 0; i < trials; i++ {
		rng.Read(key)
		h1 := Hash(key)
		bit := rng.Intn(len(key) * 8)
		key[bit/8] ^= 1 << (bit % 8)
		h2 := Hash(key)
		total += bits.OnesCount32(h1 ^ h2)
	}
	avg := float64(total) / trials
	require.InDelta(t, 16, avg, 2, "average flipped bits %.2f", avg)
}
