package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"SraDump/pkg/prefetch"
)

func mainPrefetch(args []string) {
	var (
		fs = flag.NewFlagSet("prefetch", flag.ExitOnError)

		outdir = fs.String(
			"o",
			".",
			"download directory",
		)
		fullQuality = fs.Bool(
			"full",
			false,
			"prefer the original-quality archive over the lite one",
		)
		liteOnly = fs.Bool(
			"lite-only",
			false,
			"never fall back from lite to full quality",
		)
		retries = fs.Int(
			"retry",
			10,
			"rate-limit retries per accession",
		)
		retryDelay = fs.Duration(
			"retry-delay",
			time.Second,
			"base delay between rate-limit retries",
		)
	)
	fs.Parse(args)
	if fs.NArg() < 1 {
		exitConfig(fmt.Errorf("prefetch expects at least one accession"))
	}
	if *fullQuality && *liteOnly {
		exitConfig(fmt.Errorf("-full and -lite-only are mutually exclusive"))
	}
	if err := os.MkdirAll(*outdir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opt := prefetch.Options{
		FullQuality: *fullQuality,
		LiteOnly:    *liteOnly,
		RetryLimit:  *retries,
		RetryDelay:  *retryDelay,
	}
	failed := 0
	for _, res := range prefetch.FetchAll(fs.Args(), *outdir, opt) {
		if res.Err != nil {
			slog.Error("prefetch failed", "accession", res.Accession, "err", res.Err)
			failed++
			continue
		}
		fmt.Println(res.Path)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
