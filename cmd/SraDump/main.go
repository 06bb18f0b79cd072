package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"SraDump/pkg/extract"
)

var usage = `Usage: SraDump <command> [options] <archive|accession...>

Commands:
  describe   sample a spot window and print per-segment statistics
  dump       extract spots as FASTQ or FASTA
  recode     re-encode spots into the packed binary format
  prefetch   resolve accessions and download archives

Run 'SraDump <command> -h' for command options.
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "describe":
		mainDescribe(args)
	case "dump":
		mainDump(args)
	case "recode":
		mainRecode(args)
	case "prefetch":
		mainPrefetch(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// exitConfig reports a configuration error with the dedicated status code.
func exitConfig(err error) {
	fmt.Fprintln(os.Stderr, "configuration error:", err)
	os.Exit(2)
}

// exitPreflight classifies a pre-flight failure: configuration problems get
// the configuration status code, archive faults the runtime one.
func exitPreflight(err error) {
	var cerr *extract.ConfigError
	if errors.As(err, &cerr) {
		exitConfig(err)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
