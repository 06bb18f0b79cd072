// Package prefetch resolves run accessions to archive download URLs through
// the NCBI eutils service and fetches them to local files.
package prefetch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the eutils efetch endpoint queried per accession.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// Options tune URL resolution and download behavior.
type Options struct {
	// FullQuality requests the original-quality archive instead of the
	// lite rendition.
	FullQuality bool
	// LiteOnly forbids the fallback from lite to full quality.
	LiteOnly bool

	// RetryLimit caps rate-limit retries per accession.
	RetryLimit int
	// RetryDelay is the base delay; attempt n waits n times this.
	RetryDelay time.Duration

	BaseURL string
	Client  *http.Client
}

func (o Options) withDefaults() Options {
	if o.RetryLimit == 0 {
		o.RetryLimit = 10
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 10 * time.Minute}
	}
	return o
}

// ErrNoURL means the metadata response held no usable archive URL for the
// requested quality.
var ErrNoURL = errors.New("no archive url in metadata")

// isRateLimited covers both the dedicated status and the service's habit of
// answering bursts with a plain 400.
func isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusBadRequest
}

// ParseURL scans an efetch run-info response for the archive URL of the
// accession. Lines carry url="..." attributes; fastq mirrors are skipped.
// full selects the original-quality archive over the lite one.
func ParseURL(body, accession string, full bool) (string, error) {
	for _, line := range strings.Split(body, "\n") {
		for _, field := range strings.Fields(line) {
			val, ok := strings.CutPrefix(field, `url="`)
			if !ok {
				continue
			}
			val = strings.TrimSuffix(val, `"`)
			if !strings.Contains(val, accession) || !strings.HasPrefix(val, "https://") {
				continue
			}
			if strings.Contains(val, ".fastq") || strings.HasSuffix(val, ".gz") {
				continue
			}
			lite := strings.Contains(val, ".lite")
			if full != lite {
				return val, nil
			}
		}
	}
	return "", ErrNoURL
}

// ParseURLWithFallback prefers the requested quality but accepts the other
// one when the requested flavor is absent, unless LiteOnly pins it.
func ParseURLWithFallback(body, accession string, opt Options) (string, error) {
	u, err := ParseURL(body, accession, opt.FullQuality)
	if err == nil {
		return u, nil
	}
	if !opt.FullQuality && opt.LiteOnly {
		return "", err
	}
	u, err2 := ParseURL(body, accession, !opt.FullQuality)
	if err2 != nil {
		return "", err
	}
	slog.Warn("requested quality unavailable, using alternate archive", "accession", accession, "url", u)
	return u, nil
}

// IdentifyURL queries the metadata service for accession and extracts the
// archive URL, retrying rate-limited responses with a growing delay.
func IdentifyURL(accession string, opt Options) (string, error) {
	opt = opt.withDefaults()
	query := fmt.Sprintf("%s?db=sra&rettype=runinfo&id=%s", opt.BaseURL, url.QueryEscape(accession))

	for attempt := 1; ; attempt++ {
		resp, err := opt.Client.Get(query)
		if err != nil {
			return "", fmt.Errorf("identify %s: %w", accession, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("identify %s: %w", accession, err)
		}
		if isRateLimited(resp.StatusCode) {
			if attempt > opt.RetryLimit {
				return "", fmt.Errorf("identify %s: rate limited after %d attempts", accession, opt.RetryLimit)
			}
			delay := time.Duration(attempt) * opt.RetryDelay
			slog.Info("rate limited, backing off", "accession", accession, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("identify %s: status %s", accession, resp.Status)
		}
		return ParseURLWithFallback(string(body), accession, opt)
	}
}

// Download streams u to path.
func Download(u, path string, opt Options) error {
	opt = opt.withDefaults()

	resp, err := opt.Client.Get(u)
	if err != nil {
		return fmt.Errorf("download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", u, resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	slog.Info("downloading", "url", u, "path", path, "size", resp.ContentLength)
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("download %s: %w", u, err)
	}
	slog.Info("downloaded", "path", path, "bytes", n)
	return nil
}

// Fetch resolves accession and downloads it to <dir>/<accession>.sra,
// returning the local path.
func Fetch(accession, dir string, opt Options) (string, error) {
	u, err := IdentifyURL(accession, opt)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, accession+".sra")
	if err := Download(u, path, opt); err != nil {
		return "", err
	}
	return path, nil
}

// maxConcurrent bounds parallel downloads so the mirror is not hammered.
const maxConcurrent = 3

// Result pairs one accession with its outcome.
type Result struct {
	Accession string
	Path      string
	Err       error
}

// FetchAll downloads the accessions with bounded concurrency and returns a
// result per accession, in input order.
func FetchAll(accessions []string, dir string, opt Options) []Result {
	results := make([]Result, len(accessions))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i, acc := range accessions {
		wg.Add(1)
		go func(i int, acc string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			path, err := Fetch(acc, dir, opt)
			results[i] = Result{Accession: acc, Path: path, Err: err}
		}(i, acc)
	}
	wg.Wait()
	return results
}
