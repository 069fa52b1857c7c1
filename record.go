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
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// A record is encoded within a bucket as:
//
//	+--------+-----------------+--------------+
//	| header | key (keyLen B)  | value (V)    |
//	+--------+-----------------+--------------+
//
// The header is a single byte holding keyLen<<1 when keyLen < 128. Longer
// keys use a two byte little-endian header holding keyLen<<1|1, so the low
// bit of the first byte always tells the two widths apart.
const (
	longKeyFlag    = 0x1
	maxShortKeyLen = 1<<7 - 1

	// MaxKeyLen is the longest key a Table can store.
	MaxKeyLen = 1<<15 - 1
)

// ErrKeyTooLong is the error carried by the panic raised when inserting a key
// longer than MaxKeyLen.
var ErrKeyTooLong = errors.New("packedhash: key too long")

func checkKey(key []byte) {
	if len(key) > MaxKeyLen {
		panic(errors.Wrapf(ErrKeyTooLong, "length %d exceeds %d", len(key), MaxKeyLen))
	}
}

func headerSize(keyLen int) int {
	if keyLen > maxShortKeyLen {
		return 2
	}
	return 1
}

// recordSize returns the number of bytes needed to encode a record with a
// key of length keyLen.
func recordSize(keyLen, valueSize int) int {
	return headerSize(keyLen) + keyLen + valueSize
}

// putRecord encodes key and a zero value into dst, which must be exactly
// recordSize(len(key), valueSize) bytes long. It returns the offset of the
// value within dst.
func putRecord(dst, key []byte, valueSize int) int {
	h := headerSize(len(key))
	if h == 2 {
		binary.LittleEndian.PutUint16(dst, uint16(len(key))<<1|longKeyFlag)
	} else {
		dst[0] = byte(len(key) << 1)
	}
	n := copy(dst[h:], key)
	clear(dst[h+n : h+n+valueSize])
	return h + n
}

// record is a decoded view of a single record within a bucket buffer. All
// fields are offsets into that buffer.
type record struct {
	off    int
	keyOff int
	valOff int
	end    int
}

// decodeRecord decodes the header of the record starting at buf[off].
func decodeRecord(buf []byte, off, valueSize int) record {
	var keyLen int
	r := record{off: off}
	if buf[off]&longKeyFlag != 0 {
		if off+2 > len(buf) {
			panic(errors.AssertionFailedf("packedhash: truncated header at offset %d of %d", off, len(buf)))
		}
		keyLen = int(binary.LittleEndian.Uint16(buf[off:]) >> 1)
		r.keyOff = off + 2
	} else {
		keyLen = int(buf[off] >> 1)
		r.keyOff = off + 1
	}
	r.valOff = r.keyOff + keyLen
	r.end = r.valOff + valueSize
	if r.end > len(buf) {
		panic(errors.AssertionFailedf("packedhash: record at offset %d overruns bucket of %d bytes", off, len(buf)))
	}
	return r
}

func (r record) keyLen() int {
	return r.valOff - r.keyOff
}

func (r record) key(buf []byte) []byte {
	return buf[r.keyOff:r.valOff:r.valOff]
}

func (r record) value(buf []byte) []byte {
	return buf[r.valOff:r.end]
}

func (r record) size() int {
	return r.end - r.off
}

// loadValue decodes a little-endian value occupying all of b.
func loadValue[V Value](b []byte) V {
	switch len(b) {
	case 1:
		return V(b[0])
	case 2:
		return V(binary.LittleEndian.Uint16(b))
	case 4:
		return V(binary.LittleEndian.Uint32(b))
	default:
		return V(binary.LittleEndian.Uint64(b))
	}
}

// storeValue encodes v little-endian into all of b.
func storeValue[V Value](b []byte, v V) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}
