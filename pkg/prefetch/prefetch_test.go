package prefetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const runInfo = `spots=1000 url="https://sra-download.ncbi.nlm.nih.gov/traces/SRR000001/SRR000001.lite.1" size=12345
spots=1000 url="https://sra-download.ncbi.nlm.nih.gov/traces/SRR000001/SRR000001.1" size=45678
mirror url="https://ftp.example.org/fastq/SRR000001_1.fastq.gz"
other url="http://insecure.example.org/SRR000001.lite.1"
`

func TestParseURL(t *testing.T) {
	t.Run("lite preferred by default", func(t *testing.T) {
		u, err := ParseURL(runInfo, "SRR000001", false)
		if err != nil {
			t.Fatalf("Expected no error, but got: %v", err)
		}
		if u != "https://sra-download.ncbi.nlm.nih.gov/traces/SRR000001/SRR000001.lite.1" {
			t.Errorf("Unexpected url %q", u)
		}
	})

	t.Run("full quality on request", func(t *testing.T) {
		u, err := ParseURL(runInfo, "SRR000001", true)
		if err != nil {
			t.Fatalf("Expected no error, but got: %v", err)
		}
		if u != "https://sra-download.ncbi.nlm.nih.gov/traces/SRR000001/SRR000001.1" {
			t.Errorf("Unexpected url %q", u)
		}
	})

	t.Run("fastq mirrors and http urls skipped", func(t *testing.T) {
		body := `url="https://ftp.example.org/fastq/SRR1_1.fastq.gz" url="http://x/SRR1.lite.1"`
		if _, err := ParseURL(body, "SRR1", false); !errors.Is(err, ErrNoURL) {
			t.Errorf("Expected ErrNoURL, got %v", err)
		}
	})

	t.Run("wrong accession ignored", func(t *testing.T) {
		if _, err := ParseURL(runInfo, "SRR999999", false); !errors.Is(err, ErrNoURL) {
			t.Errorf("Expected ErrNoURL, got %v", err)
		}
	})
}

func TestParseURLWithFallback(t *testing.T) {
	fullOnly := `url="https://host/SRR1/SRR1.1"`

	t.Run("falls back from lite to full", func(t *testing.T) {
		u, err := ParseURLWithFallback(fullOnly, "SRR1", Options{})
		if err != nil {
			t.Fatalf("Expected no error, but got: %v", err)
		}
		if u != "https://host/SRR1/SRR1.1" {
			t.Errorf("Unexpected url %q", u)
		}
	})

	t.Run("lite-only forbids the fallback", func(t *testing.T) {
		if _, err := ParseURLWithFallback(fullOnly, "SRR1", Options{LiteOnly: true}); err == nil {
			t.Error("Expected an error, but got nil")
		}
	})
}

func TestIdentifyURL(t *testing.T) {
	t.Run("retries rate limited responses", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(runInfo))
		}))
		defer srv.Close()

		u, err := IdentifyURL("SRR000001", Options{
			BaseURL:    srv.URL,
			RetryDelay: time.Millisecond,
			Client:     srv.Client(),
		})
		if err != nil {
			t.Fatalf("Expected no error, but got: %v", err)
		}
		if u == "" || calls.Load() != 3 {
			t.Errorf("Expected success on the third call, got %q after %d calls", u, calls.Load())
		}
	})

	t.Run("gives up after the retry limit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := IdentifyURL("SRR000001", Options{
			BaseURL:    srv.URL,
			RetryLimit: 2,
			RetryDelay: time.Millisecond,
			Client:     srv.Client(),
		})
		if err == nil {
			t.Error("Expected an error, but got nil")
		}
	})

	t.Run("hard failure is not retried", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := IdentifyURL("SRR000001", Options{
			BaseURL:    srv.URL,
			RetryDelay: time.Millisecond,
			Client:     srv.Client(),
		})
		if err == nil {
			t.Error("Expected an error, but got nil")
		}
		if calls.Load() != 1 {
			t.Errorf("Expected a single attempt, got %d", calls.Load())
		}
	})
}

func TestDownload(t *testing.T) {
	payload := []byte("binary archive payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/SRR1.lite.1" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	t.Run("streams to the target path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "SRR1.sra")
		err := Download(srv.URL+"/SRR1.lite.1", path, Options{Client: srv.Client()})
		if err != nil {
			t.Fatalf("Expected no error, but got: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != string(payload) {
			t.Errorf("Expected payload round trip, got %q (err %v)", got, err)
		}
	})

	t.Run("bad status leaves no file behind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.sra")
		if err := Download(srv.URL+"/missing", path, Options{Client: srv.Client()}); err == nil {
			t.Error("Expected an error, but got nil")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected no file, got %v", err)
		}
	})
}
