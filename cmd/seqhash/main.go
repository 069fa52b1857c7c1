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

// Command seqhash counts and filters sequencing reads using a packed hash
// table keyed by read sequence or read name.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/seqhash/packedhash/internal/seqio"
	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "seqhash version %s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seqhash",
		Short: "Count and filter sequencing reads",
		Long: `seqhash hashes reads from FASTQ, FASTA, CSFASTA or plain sequence files.

  count   ranks distinct reads or k-mers by how often they occur
  filter  keeps the reads whose names appear in a list of ids

Input files may be gzip or zstd compressed; "-" reads standard input.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(countCommand())
	rootCmd.AddCommand(filterCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("seqhash: ")
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type progressReader struct {
	io.ReadCloser
	f   *os.File
	bar *pb.ProgressBar
}

func (r *progressReader) Close() error {
	r.bar.Finish()
	return errors.CombineErrors(r.ReadCloser.Close(), r.f.Close())
}

// openInput opens path for reading. With progress set, a byte progress bar
// tracking the compressed input is drawn on stderr until the reader is
// closed.
func openInput(path string, progress bool) (io.ReadCloser, error) {
	if !progress || path == "-" {
		return seqio.Open(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	bar := pb.Full.Start64(fi.Size())
	bar.Set(pb.Bytes, true)
	r, err := seqio.Decompress(bar.NewProxyReader(f))
	if err != nil {
		bar.Finish()
		_ = f.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &progressReader{ReadCloser: r, f: f, bar: bar}, nil
}
