package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"SraDump/pkg/archive"
	"SraDump/pkg/encoder"
	"SraDump/pkg/extract"
	"SraDump/pkg/sink"
)

func mainDump(args []string) {
	var (
		fs = flag.NewFlagSet("dump", flag.ExitOnError)

		threads = fs.Int(
			"T",
			0,
			"worker threads, 0 = all CPUs",
		)
		minLen = fs.Int(
			"L",
			0,
			"minimum read length",
		)
		limit = fs.Uint64(
			"l",
			0,
			"stop after this many spots, 0 = all",
		)
		skip = fs.Uint64(
			"skip",
			0,
			"skip this many leading spots",
		)
		include = fs.String(
			"I",
			"all",
			"segment indices to emit, comma separated, or 'all'",
		)
		skipTechnical = fs.Bool(
			"t",
			false,
			"skip technical segments",
		)
		split = fs.Bool(
			"s",
			false,
			"one output file per segment",
		)
		outdir = fs.String(
			"o",
			"output",
			"output directory for split mode",
		)
		prefix = fs.String(
			"p",
			"seg_",
			"split file name prefix",
		)
		outfile = fs.String(
			"O",
			"",
			"combined output file, empty = stdout",
		)
		format = fs.String(
			"f",
			"q",
			"record format: q fastq, a fasta",
		)
		comp = fs.String(
			"c",
			"u",
			"compression: u none, g gzip, z zstd",
		)
		pipe = fs.Bool(
			"pipe",
			false,
			"split outputs are named pipes instead of files",
		)
		keepEmpty = fs.Bool(
			"keep-empty",
			false,
			"keep split files that received no records",
		)
		failFast = fs.Bool(
			"fail-fast",
			false,
			"abort the whole run on the first sink write error",
		)
		revComp = fs.Bool(
			"rc",
			false,
			"emit reverse-complemented bases (qualities reversed)",
		)
		motifs = fs.String(
			"m",
			"",
			"keep only spots containing one of these motifs, comma separated",
		)
		summaryXlsx = fs.String(
			"summary-xlsx",
			"",
			"also write the run summary as an xlsx workbook",
		)
	)
	fs.Parse(args)
	if fs.NArg() != 1 {
		exitConfig(fmt.Errorf("dump expects exactly one archive path"))
	}

	sel, err := extract.ParseSelection(*include)
	if err != nil {
		exitConfig(err)
	}
	recFormat, err := encoder.ParseFormat(*format)
	if err != nil {
		exitConfig(err)
	}
	compression, err := sink.ParseCompression(*comp)
	if err != nil {
		exitConfig(err)
	}
	if *pipe && !*split {
		exitConfig(fmt.Errorf("-pipe requires -s"))
	}
	var motifList []string
	if *motifs != "" {
		motifList = strings.Split(*motifs, ",")
	}

	arch, err := archive.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer arch.Close()

	rng := extract.Range{Skip: *skip, Limit: *limit}
	start, end := rng.Narrow(arch.SpotCount())

	layout, err := extract.ProbeLayout(arch, start)
	if err != nil {
		exitPreflight(err)
	}
	if err := extract.ValidateSelection(sel, layout); err != nil {
		exitConfig(err)
	}

	// sink layout: combined stream, or one sink per selected segment
	var (
		sinks   []*sink.Sink
		sinkFor map[int]int
	)
	if *split {
		keep, _, err := sel.Select(layout, *skipTechnical)
		if err != nil {
			exitConfig(err)
		}
		if len(keep) == 0 {
			exitConfig(fmt.Errorf("selection leaves no segments to split"))
		}
		sinks, err = sink.BuildSplit(*outdir, *prefix, keep, recFormat.Ext(), compression, *pipe)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		sinkFor = make(map[int]int, len(keep))
		for i, seg := range keep {
			sinkFor[seg] = i
		}
	} else {
		var s *sink.Sink
		if *outfile != "" {
			s, err = sink.FileSink(*outfile, compression)
		} else {
			s, err = sink.Stdout(compression)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		sinks = []*sink.Sink{s}
	}
	router := sink.NewRouter(sinks, *failFast)

	enc := &encoder.Text{Name: arch.Name(), Format: recFormat, RevComp: *revComp}
	engine := extract.New(arch, enc, router, sinkFor, extract.Config{
		Selection:     sel,
		SkipTechnical: *skipTechnical,
		Filter:        extract.NewFilter(*minLen, *split, motifList),
		Workers:       *threads,
	})

	slog.Info("dump", "archive", arch.Name(), "spots", end-start, "workers", *threads)
	sum, fatal := engine.Run(start, end)
	if err := router.Close(); err != nil && fatal == nil {
		fatal = err
		sum.Aborted = true
		sum.Err = err
	}

	stats := router.Stats()
	sum.Print(os.Stderr, stats)
	if *split {
		for _, path := range router.RemoveEmpty(*keepEmpty) {
			slog.Info("removed empty output", "path", path)
		}
	}
	if *summaryXlsx != "" {
		if err := sum.SaveXlsx(*summaryXlsx, stats); err != nil {
			fmt.Fprintln(os.Stderr, "write xlsx:", err)
			os.Exit(1)
		}
	}
	if fatal != nil {
		os.Exit(1)
	}
}
