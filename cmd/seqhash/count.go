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

package main

import (
	"bufio"
	"io"
	"log"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/seqhash/packedhash"
	"github.com/seqhash/packedhash/internal/kmer"
	"github.com/seqhash/packedhash/internal/rank"
	"github.com/seqhash/packedhash/internal/seqio"
	"github.com/spf13/cobra"
)

const logInterval = 100000

type countOptions struct {
	format    string
	k         int
	canonical bool
	minCount  uint32
	top       int
	stats     bool
	progress  bool
}

func countCommand() *cobra.Command {
	var opts countOptions
	cmd := &cobra.Command{
		Use:   "count [flags] input",
		Short: "Count distinct reads or k-mers",
		Long: `Count how often every distinct read sequence, or every k-mer with -k,
occurs in the input and print "sequence<TAB>count" lines, most frequent
first. K-mers containing bases other than A, C, G or T are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "auto", "Input format: auto, fastq, fasta, csfasta or lines")
	cmd.Flags().IntVarP(&opts.k, "kmer", "k", 0, "Count k-mers of this length instead of whole reads")
	cmd.Flags().BoolVarP(&opts.canonical, "canonical", "c", false, "Count a k-mer and its reverse complement together")
	cmd.Flags().Uint32VarP(&opts.minCount, "min-count", "m", 1, "Only print entries seen at least this often")
	cmd.Flags().IntVarP(&opts.top, "top", "n", 0, "Only print the n most frequent entries")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Log hash table statistics")
	cmd.Flags().BoolVarP(&opts.progress, "progress", "p", false, "Show a progress bar")
	return cmd
}

func runCount(w io.Writer, path string, opts countOptions) error {
	format, err := seqio.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.k < 0 || opts.k > packedhash.MaxKeyLen {
		return errors.Newf("k-mer length %d out of range [0, %d]", opts.k, packedhash.MaxKeyLen)
	}
	if opts.canonical && opts.k == 0 {
		return errors.New("--canonical requires --kmer")
	}

	in, err := openInput(path, opts.progress)
	if err != nil {
		return err
	}
	defer in.Close()

	t := packedhash.New[uint32](0)
	defer t.Close()
	inc := func(key []byte) { t.Inc(key) }

	log.Printf("hashing reads from %s", path)
	rd := seqio.NewReader(in, format)
	var reads int
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		reads++
		if opts.k > 0 {
			kmer.Each(rec.Seq, opts.k, opts.canonical, inc)
		} else {
			if len(rec.Seq) > packedhash.MaxKeyLen {
				return errors.Newf("%s: line %d: read length %d exceeds %d",
					path, rd.Line(), len(rec.Seq), packedhash.MaxKeyLen)
			}
			t.Inc(rec.Seq)
		}
		if !opts.progress && reads%logInterval == 0 {
			log.Printf("\t%d reads", reads)
		}
	}
	log.Printf("done. (%d reads hashed, %d are unique)", reads, t.Len())
	if opts.stats {
		log.Printf("table: %s", t.Stats())
	}

	entries := rank.Collect(t, opts.minCount)
	rank.ByValue(entries)
	entries = rank.Top(entries, opts.top)

	bw := bufio.NewWriter(w)
	var buf []byte
	for _, e := range entries {
		buf = append(buf[:0], e.Key...)
		buf = append(buf, '\t')
		buf = strconv.AppendUint(buf, uint64(e.Value), 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
