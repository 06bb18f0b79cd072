package main

import (
	"flag"
	"fmt"
	"os"

	"SraDump/pkg/archive"
	"SraDump/pkg/describe"
)

func mainDescribe(args []string) {
	var (
		fs = flag.NewFlagSet("describe", flag.ExitOnError)

		limit = fs.Uint64(
			"l",
			100,
			"spots to sample, 0 = all",
		)
		skip = fs.Uint64(
			"s",
			0,
			"skip this many leading spots",
		)
		plot = fs.String(
			"plot",
			"",
			"also render a per-position quality chart to this html file",
		)
	)
	fs.Parse(args)
	if fs.NArg() != 1 {
		exitConfig(fmt.Errorf("describe expects exactly one archive path"))
	}

	arch, err := archive.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer arch.Close()

	rep, err := describe.Run(arch, *skip, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rep.WriteJSON(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *plot != "" {
		rep.PlotQuality(*plot)
	}
}
