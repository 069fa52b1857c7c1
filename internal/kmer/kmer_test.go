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

package kmer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(seq string, k int, canonical bool) []string {
	var res []string
	Each([]byte(seq), k, canonical, func(km []byte) {
		res = append(res, string(km))
	})
	return res
}

func TestReverseComplement(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{"", ""},
		{"A", "T"},
		{"ACGT", "ACGT"},
		{"AACG", "CGTT"},
		{"acgN", "Ncgt"},
		{"RYKM", "KMRY"},
		{"A.X", "NNT"},
	}
	for _, c := range testCases {
		require.Equal(t, c.out, string(ReverseComplement(nil, []byte(c.in))), "%q", c.in)
	}

	dst := ReverseComplement([]byte("xx"), []byte("GG"))
	require.Equal(t, "xxCC", string(dst))
}

func TestReverseComplementInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seq := make([]byte, 100)
	for i := range seq {
		seq[i] = "ACGTacgtNRYKMBVDHSW"[rng.Intn(19)]
	}
	require.Equal(t, seq, ReverseComplement(nil, ReverseComplement(nil, seq)))
}

func TestEach(t *testing.T) {
	require.Equal(t, []string{"ACG", "CGT", "GTA"}, collect("ACGTA", 3, false))
	require.Equal(t, []string{"ACGTA"}, collect("ACGTA", 5, false))
	require.Nil(t, collect("ACGTA", 6, false))
	require.Nil(t, collect("ACGTA", 0, false))
	require.Nil(t, collect("", 1, false))
}

func TestEachUpperCases(t *testing.T) {
	require.Equal(t, []string{"AC", "CG", "GT"}, collect("acGt", 2, false))
}

func TestEachSkipsAmbiguous(t *testing.T) {
	require.Equal(t, []string{"ACG", "TTA"}, collect("ACGNTTA", 3, false))
	require.Equal(t, []string{"AC", "TT"}, collect("ACN.TT", 2, false))
	require.Nil(t, collect("NNNN", 1, false))
	require.Equal(t, 0, Count([]byte("ANANA"), 2))
	require.Equal(t, 3, Count([]byte("ANANA"), 1))
}

func TestEachCanonical(t *testing.T) {
	// AAC and GTT are reverse complements of each other.
	require.Equal(t, []string{"AAC", "AAC"}, collect("AACNGTT", 3, true))
	require.Equal(t, []string{"AC", "CG", "AC"}, collect("ACGT", 2, true))
}

func TestEachCanonicalStrandInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	seq := make([]byte, 200)
	for i := range seq {
		seq[i] = "ACGTN"[rng.Intn(5)]
	}
	const k = 4
	fwd := make(map[string]int)
	Each(seq, k, true, func(km []byte) { fwd[string(km)]++ })
	rev := make(map[string]int)
	Each(ReverseComplement(nil, seq), k, true, func(km []byte) { rev[string(km)]++ })
	require.Equal(t, fwd, rev)
}
