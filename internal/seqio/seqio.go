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

// Package seqio reads and writes the sequencing read formats handled by
// seqhash: FASTQ, FASTA, CSFASTA and one sequence per line. Input may be
// gzip or zstd compressed.
package seqio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies a read file format.
type Format int

const (
	// Auto picks FASTQ, FASTA or Lines from the first non-empty line.
	Auto Format = iota
	FASTQ
	FASTA
	// CSFASTA is SOLiD color space FASTA. Lines starting with '#' are
	// comments and each record holds a single sequence line.
	CSFASTA
	// Lines treats every non-empty line as a sequence without an ID.
	Lines
)

var formatNames = [...]string{
	Auto:    "auto",
	FASTQ:   "fastq",
	FASTA:   "fasta",
	CSFASTA: "csfasta",
	Lines:   "lines",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "unknown"
	}
	return formatNames[f]
}

// ParseFormat returns the Format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if strings.EqualFold(s, name) {
			return Format(f), nil
		}
	}
	return Auto, errors.Newf("unknown format %q", s)
}

// DetectFormat guesses the format of a file from the first byte of its first
// non-empty line. CSFASTA is never detected since its records look like
// FASTA records.
func DetectFormat(first byte) Format {
	switch first {
	case '@':
		return FASTQ
	case '>':
		return FASTA
	default:
		return Lines
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// Decompress sniffs the leading bytes of r and returns a reader producing the
// decompressed stream for gzip and zstd input, or r itself otherwise. Closing
// the result releases the decompressor but never closes r.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading magic bytes")
	}
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		return gz, nil
	case bytes.HasPrefix(magic, zstdMagic):
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "opening zstd stream")
		}
		return dec.IOReadCloser(), nil
	}
	return readCloser{Reader: br, close: func() error { return nil }}, nil
}

// Open opens the named file, or standard input for "-", and transparently
// decompresses it.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return Decompress(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := Decompress(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return readCloser{
		Reader: r,
		close: func() error {
			return errors.CombineErrors(r.Close(), f.Close())
		},
	}, nil
}

// Record is a single read. Its slices alias the Reader's buffers and are only
// valid until the next call to Next.
type Record struct {
	ID   []byte
	Seq  []byte
	Qual []byte
}

const maxLineLen = 16 << 20

// Reader parses records from a stream.
type Reader struct {
	s      *bufio.Scanner
	format Format
	line   int
	// pending is set when the scanner holds a line that has been looked at
	// but not consumed, such as the header following a FASTA sequence.
	pending bool
	id      []byte
	seq     []byte
	qual    []byte
}

// NewReader returns a Reader parsing r as f. With Auto the format is detected
// from the first non-empty line.
func NewReader(r io.Reader, f Format) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), maxLineLen)
	return &Reader{
		s:      s,
		format: f,
		qual:   make([]byte, 0, 256),
	}
}

// Format returns the format being parsed. It is Auto until the first record
// has been read from an auto-detected stream.
func (r *Reader) Format() Format {
	return r.format
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// scan advances to the next line, honoring a pending line.
func (r *Reader) scan() bool {
	if r.pending {
		r.pending = false
		return true
	}
	if !r.s.Scan() {
		return false
	}
	r.line++
	return true
}

func (r *Reader) bytes() []byte {
	return bytes.TrimSuffix(r.s.Bytes(), []byte{'\r'})
}

// scanNonEmpty advances to the next non-empty line, also skipping '#'
// comment lines when comments is set.
func (r *Reader) scanNonEmpty(comments bool) bool {
	for r.scan() {
		b := r.bytes()
		if len(b) == 0 || (comments && b[0] == '#') {
			continue
		}
		return true
	}
	return false
}

func (r *Reader) scanErr() error {
	if err := r.s.Err(); err != nil {
		return errors.Wrapf(err, "line %d", r.line+1)
	}
	return nil
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Record, error) {
	if !r.scanNonEmpty(r.format == CSFASTA) {
		if err := r.scanErr(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	if r.format == Auto {
		r.format = DetectFormat(r.bytes()[0])
	}
	switch r.format {
	case FASTQ:
		return r.nextFASTQ()
	case FASTA:
		return r.nextFASTA()
	case CSFASTA:
		return r.nextCSFASTA()
	default:
		r.seq = append(r.seq[:0], r.bytes()...)
		return Record{Seq: r.seq}, nil
	}
}

func (r *Reader) truncated(what string) error {
	if err := r.scanErr(); err != nil {
		return err
	}
	return errors.Newf("line %d: truncated record, missing %s", r.line, what)
}

func (r *Reader) nextFASTQ() (Record, error) {
	b := r.bytes()
	if b[0] != '@' {
		return Record{}, errors.Newf("line %d: expected '@' at start of FASTQ record", r.line)
	}
	r.id = append(r.id[:0], b[1:]...)

	if !r.scan() {
		return Record{}, r.truncated("sequence")
	}
	r.seq = append(r.seq[:0], r.bytes()...)

	if !r.scan() {
		return Record{}, r.truncated("'+' line")
	}
	if b := r.bytes(); len(b) == 0 || b[0] != '+' {
		return Record{}, errors.Newf("line %d: expected '+' separator", r.line)
	}

	if !r.scan() {
		return Record{}, r.truncated("quality")
	}
	r.qual = append(r.qual[:0], r.bytes()...)
	if len(r.qual) != len(r.seq) {
		return Record{}, errors.Newf("line %d: quality length %d does not match sequence length %d",
			r.line, len(r.qual), len(r.seq))
	}
	return Record{ID: r.id, Seq: r.seq, Qual: r.qual}, nil
}

func (r *Reader) nextFASTA() (Record, error) {
	b := r.bytes()
	if b[0] != '>' {
		return Record{}, errors.Newf("line %d: expected '>' at start of FASTA record", r.line)
	}
	r.id = append(r.id[:0], b[1:]...)
	r.seq = r.seq[:0]
	for r.scan() {
		b := r.bytes()
		if len(b) > 0 && b[0] == '>' {
			r.pending = true
			break
		}
		r.seq = append(r.seq, b...)
	}
	if err := r.scanErr(); err != nil {
		return Record{}, err
	}
	return Record{ID: r.id, Seq: r.seq}, nil
}

func (r *Reader) nextCSFASTA() (Record, error) {
	b := r.bytes()
	if b[0] != '>' {
		return Record{}, errors.Newf("line %d: expected '>' at start of CSFASTA record", r.line)
	}
	r.id = append(r.id[:0], b[1:]...)
	if !r.scanNonEmpty(true) {
		return Record{}, r.truncated("sequence")
	}
	r.seq = append(r.seq[:0], r.bytes()...)
	return Record{ID: r.id, Seq: r.seq}, nil
}

// ReadID returns the read name of a record header: its first
// whitespace-delimited field with any "/1" or "/2" mate suffix removed.
func ReadID(header []byte) []byte {
	if i := bytes.IndexAny(header, " \t"); i >= 0 {
		header = header[:i]
	}
	if n := len(header); n >= 2 && header[n-2] == '/' && (header[n-1] == '1' || header[n-1] == '2') {
		header = header[:n-2]
	}
	return header
}

// Writer writes records as FASTQ, or as FASTA when a record has no quality
// string.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a buffered Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64<<10)}
}

// Write appends rec to the output.
func (w *Writer) Write(rec Record) error {
	if rec.Qual == nil {
		w.w.WriteByte('>')
	} else {
		w.w.WriteByte('@')
	}
	w.w.Write(rec.ID)
	w.w.WriteByte('\n')
	w.w.Write(rec.Seq)
	if rec.Qual != nil {
		w.w.WriteString("\n+\n")
		w.w.Write(rec.Qual)
	}
	// bufio.Writer errors are sticky, so checking the last write suffices.
	return w.w.WriteByte('\n')
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
