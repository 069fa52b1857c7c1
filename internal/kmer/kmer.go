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

// Package kmer enumerates the fixed-length substrings of nucleotide
// sequences.
package kmer

import "bytes"

var (
	complement [256]byte
	// unambiguous maps A, C, G and T in either case to upper case and every
	// other byte to zero.
	unambiguous [256]byte
)

func init() {
	pairs := []string{"AT", "CG", "RY", "KM", "BV", "DH", "SS", "WW", "NN"}
	for i := range complement {
		complement[i] = 'N'
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		complement[a], complement[b] = b, a
		complement[a|0x20], complement[b|0x20] = b|0x20, a|0x20
	}
	for _, c := range []byte("ACGT") {
		unambiguous[c] = c
		unambiguous[c|0x20] = c
	}
}

// ReverseComplement appends the reverse complement of seq to dst and returns
// the extended slice. IUPAC ambiguity codes are complemented, case is
// preserved and any other byte becomes 'N'.
func ReverseComplement(dst, seq []byte) []byte {
	for i := len(seq) - 1; i >= 0; i-- {
		dst = append(dst, complement[seq[i]])
	}
	return dst
}

// Each calls fn with every k-mer of seq in order, upper-cased. K-mers holding
// anything other than A, C, G or T are skipped. With canonical set, the
// lexicographically smaller of each k-mer and its reverse complement is
// passed instead. The slice given to fn is only valid during the call.
func Each(seq []byte, k int, canonical bool, fn func(kmer []byte)) {
	if k <= 0 || k > len(seq) {
		return
	}
	up := make([]byte, len(seq))
	var rc []byte
	if canonical {
		rc = make([]byte, 0, k)
	}
	// Position of the most recent ambiguous base.
	bad := -1
	for i, c := range seq {
		u := unambiguous[c]
		if u == 0 {
			bad = i
			u = 'N'
		}
		up[i] = u
		if i+1 < k || bad > i-k {
			continue
		}
		km := up[i+1-k : i+1]
		if canonical {
			rc = ReverseComplement(rc[:0], km)
			if bytes.Compare(rc, km) < 0 {
				km = rc
			}
		}
		fn(km)
	}
}

// Count returns the number of k-mers Each would produce for seq.
func Count(seq []byte, k int) int {
	var n int
	Each(seq, k, false, func([]byte) { n++ })
	return n
}
