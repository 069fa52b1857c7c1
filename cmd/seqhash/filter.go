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
	"io"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/seqhash/packedhash"
	"github.com/seqhash/packedhash/internal/seqio"
	"github.com/spf13/cobra"
)

type filterOptions struct {
	idsFormat string
	format    string
	invert    bool
	output    string
	progress  bool
}

func filterCommand() *cobra.Command {
	var opts filterOptions
	cmd := &cobra.Command{
		Use:   "filter [flags] ids input",
		Short: "Keep reads whose names appear in a list of ids",
		Long: `Filter the reads of input, keeping those whose name occurs in ids, or
those whose name does not occur in ids with -v.

ids is a FASTQ or FASTA file, whose record names are used, or a plain list
with one read name per line. Read names are compared up to the first
whitespace and without a trailing /1 or /2 mate suffix.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVar(&opts.idsFormat, "ids-format", "auto", "Format of the ids file: auto, fastq, fasta, csfasta or lines")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "auto", "Input format: auto, fastq, fasta or csfasta")
	cmd.Flags().BoolVarP(&opts.invert, "invert", "v", false, "Keep reads whose names are not in ids")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Output file")
	cmd.Flags().BoolVarP(&opts.progress, "progress", "p", false, "Show a progress bar")
	return cmd
}

// hashIDs loads the read names of the ids file into a set.
func hashIDs(path string, format seqio.Format) (*packedhash.Table[uint8], error) {
	in, err := seqio.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	ids := packedhash.New[uint8](0)
	rd := seqio.NewReader(in, format)
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			ids.Close()
			return nil, errors.Wrapf(err, "%s", path)
		}
		name := rec.ID
		if rd.Format() == seqio.Lines {
			name = rec.Seq
		}
		id := seqio.ReadID(name)
		if len(id) > packedhash.MaxKeyLen {
			ids.Close()
			return nil, errors.Newf("%s: line %d: read name longer than %d bytes",
				path, rd.Line(), packedhash.MaxKeyLen)
		}
		ids.Put(id, 1)
	}
	return ids, nil
}

func runFilter(stdout io.Writer, idsPath, inputPath string, opts filterOptions) (err error) {
	idsFormat, err := seqio.ParseFormat(opts.idsFormat)
	if err != nil {
		return err
	}
	format, err := seqio.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if format == seqio.Lines {
		return errors.New("input format lines has no read names")
	}

	ids, err := hashIDs(idsPath, idsFormat)
	if err != nil {
		return err
	}
	defer ids.Close()
	log.Printf("hashed %d read ids from %s", ids.Len(), idsPath)

	in, err := openInput(inputPath, opts.progress)
	if err != nil {
		return err
	}
	defer in.Close()

	out := stdout
	if opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.CombineErrors(err, f.Close())
		}()
		out = f
	}
	w := seqio.NewWriter(out)

	rd := seqio.NewReader(in, format)
	var reads, kept int
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "%s", inputPath)
		}
		if rd.Format() == seqio.Lines {
			return errors.Newf("%s: input has no read names", inputPath)
		}
		reads++
		if _, ok := ids.Get(seqio.ReadID(rec.ID)); ok != opts.invert {
			kept++
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		if !opts.progress && reads%logInterval == 0 {
			log.Printf("\t%d reads processed", reads)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Printf("done. (kept %d of %d reads)", kept, reads)
	return nil
}
