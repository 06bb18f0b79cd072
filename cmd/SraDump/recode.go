package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"SraDump/pkg/archive"
	"SraDump/pkg/binseq"
	"SraDump/pkg/extract"
	"SraDump/pkg/sink"
)

func mainRecode(args []string) {
	var (
		fs = flag.NewFlagSet("recode", flag.ExitOnError)

		threads = fs.Int(
			"T",
			0,
			"worker threads, 0 = all CPUs",
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
			"",
			"segment indices to pack (1 or 2, comma separated)",
		)
		skipTechnical = fs.Bool(
			"t",
			false,
			"skip technical segments",
		)
		flavor = fs.String(
			"f",
			"b",
			"container flavor: b fixed length, v variable length",
		)
		withQual = fs.Bool(
			"q",
			false,
			"carry qualities (variable flavor only)",
		)
		outfile = fs.String(
			"o",
			"",
			"output file, default output.bq / output.vbq",
		)
		comp = fs.String(
			"c",
			"u",
			"compression: u none, g gzip, z zstd",
		)
		failFast = fs.Bool(
			"fail-fast",
			false,
			"abort the whole run on the first sink write error",
		)
	)
	fs.Parse(args)
	if fs.NArg() != 1 {
		exitConfig(fmt.Errorf("recode expects exactly one archive path"))
	}

	sel, err := extract.ParseSelection(*include)
	if err != nil {
		exitConfig(err)
	}
	if sel.All || len(sel.Indices) < 1 || len(sel.Indices) > 2 {
		exitConfig(fmt.Errorf("recode needs -I with 1 or 2 explicit segment indices"))
	}
	compression, err := sink.ParseCompression(*comp)
	if err != nil {
		exitConfig(err)
	}

	var header binseq.Header
	switch *flavor {
	case "b":
		if *withQual {
			exitConfig(fmt.Errorf("-q requires the variable flavor (-f v)"))
		}
	case "v":
		header.Flags |= binseq.FlagVariable
		if *withQual {
			header.Flags |= binseq.FlagQual
		}
	default:
		exitConfig(fmt.Errorf("unknown flavor %q (use b or v)", *flavor))
	}
	if len(sel.Indices) == 2 {
		header.Flags |= binseq.FlagPaired
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

	if !header.Variable() {
		lengths, err := extract.ProbeLengths(arch, start)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fixed := make([]uint32, len(sel.Indices))
		for i, idx := range sel.Indices {
			if idx >= len(lengths) || lengths[idx] <= 0 {
				exitConfig(fmt.Errorf("segment %d has varying lengths; use the variable flavor (-f v)", idx))
			}
			fixed[i] = uint32(lengths[idx])
		}
		header.PrimaryLen = fixed[0]
		if header.Paired() {
			header.ExtendedLen = fixed[1]
		}
	}

	path := *outfile
	if path == "" {
		path = "output." + header.Ext()
	}
	s, err := sink.FileSink(path+compression.Ext(), compression)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	router := sink.NewRouter([]*sink.Sink{s}, *failFast)

	// the container header goes out before any worker writes a record
	if err := router.Write(0, header.Append(nil), 0); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	enc := &binseq.Encoder{Header: header}
	engine := extract.New(arch, enc, router, nil, extract.Config{
		Selection:     sel,
		SkipTechnical: *skipTechnical,
		Workers:       *threads,
	})

	slog.Info("recode", "archive", arch.Name(), "spots", end-start, "flavor", header.Ext())
	sum, fatal := engine.Run(start, end)
	if err := router.Close(); err != nil && fatal == nil {
		fatal = err
		sum.Aborted = true
		sum.Err = err
	}
	sum.Print(os.Stderr, router.Stats())
	if n := enc.Substituted(); n > 0 {
		fmt.Fprintf(os.Stderr, "Non-ACGT bases substituted: %d\n", n)
	}
	if fatal != nil {
		os.Exit(1)
	}
}
