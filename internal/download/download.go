// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches PMC Open Access bulk archives from the NCBI
// FTP mirror: it scrapes the subset index pages for archive and
// filelist links, merges the filelists into one parquet table, and
// downloads the archives concurrently.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/dovmed/dovmed/internal/httputil"
	"github.com/dovmed/dovmed/pkg/types"
)

// DefaultBaseURL is the NCBI bulk download root.
const DefaultBaseURL = "https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_bulk"

const (
	pmcDir                = "pmc_oa"
	filelistsFile         = "filelists.parquet"
	defaultMaxConnections = 5
)

// Subsets are the PMC Open Access license tiers available for bulk
// download.
var Subsets = []string{"oa_comm", "oa_noncomm", "oa_other"}

// ValidSubset reports whether name is a known OA subset.
func ValidSubset(name string) bool {
	for _, s := range Subsets {
		if s == name {
			return true
		}
	}
	return false
}

// The index pages are plain directory listings; the links of interest
// are the .tar.gz archives and the .csv filelists.
var (
	hrefArchive  = regexp.MustCompile(`href="([^"]+\.tar\.gz)"`)
	hrefFilelist = regexp.MustCompile(`href="([^"]+\.csv)"`)
)

// Downloader fetches OA bulk data for one or more subsets.
type Downloader struct {
	client  *http.Client
	cfg     types.DownloadConfig
	baseURL string
	log     *slog.Logger
}

// New builds a Downloader. A nil client falls back to
// http.DefaultClient; an empty baseURL falls back to the NCBI mirror.
func New(client *http.Client, cfg types.DownloadConfig, baseURL string, log *slog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{client: client, cfg: cfg, baseURL: baseURL, log: log}
}

// SubsetURL returns the XML listing URL for a subset.
func (d *Downloader) SubsetURL(subset string) string {
	return d.baseURL + "/" + subset + "/xml/"
}

// BatchResult holds the outcome of one subset download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Total returns the number of archives processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any archive failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Run downloads every requested subset under OutputDir/pmc_oa/[subset]:
// the merged filelist parquet first, then the archives. It continues
// past individual archive failures and returns the aggregate result.
func (d *Downloader) Run(ctx context.Context, subsets []string) (BatchResult, error) {
	var total BatchResult

	for _, subset := range subsets {
		if !ValidSubset(subset) {
			return total, fmt.Errorf("unknown subset %q: must be one of %v", subset, Subsets)
		}

		subsetDir := filepath.Join(d.cfg.OutputDir, pmcDir, subset)
		if err := os.MkdirAll(subsetDir, 0o755); err != nil {
			return total, fmt.Errorf("creating subset directory: %w", err)
		}

		archives, filelists, err := d.ListSubset(ctx, subset)
		if err != nil {
			return total, fmt.Errorf("listing subset %s: %w", subset, err)
		}
		d.log.Info("subset listed", "subset", subset,
			"archives", len(archives), "filelists", len(filelists))

		if err := d.MergeFileLists(ctx, filelists, filepath.Join(subsetDir, filelistsFile)); err != nil {
			return total, fmt.Errorf("merging filelists for %s: %w", subset, err)
		}

		res, err := d.DownloadArchives(ctx, archives, subsetDir)
		total.Downloaded += res.Downloaded
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		total.Bytes += res.Bytes
		if err != nil {
			return total, err
		}
		d.log.Info("subset complete", "subset", subset,
			"downloaded", res.Downloaded, "skipped", res.Skipped,
			"failed", res.Failed, "bytes", res.Bytes)
	}

	return total, nil
}

// ListSubset scrapes the subset index page and returns absolute URLs
// for the .tar.gz archives and the .csv filelists.
func (d *Downloader) ListSubset(ctx context.Context, subset string) (archives, filelists []string, err error) {
	base := d.SubsetURL(subset)
	body, err := d.fetch(ctx, base)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range hrefArchive.FindAllStringSubmatch(string(body), -1) {
		archives = append(archives, base+m[1])
	}
	for _, m := range hrefFilelist.FindAllStringSubmatch(string(body), -1) {
		filelists = append(filelists, base+m[1])
	}
	return archives, filelists, nil
}

// DownloadArchives fetches the archive URLs into destDir, at most
// MaxConnections at a time. Archives already on disk are skipped, so
// an interrupted run can resume. Failures are logged and counted but
// do not stop the batch.
func (d *Downloader) DownloadArchives(ctx context.Context, urls []string, destDir string) (BatchResult, error) {
	pool, err := ants.NewPool(d.cfg.MaxConnections)
	if err != nil {
		return BatchResult{}, fmt.Errorf("creating download pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result BatchResult
	)

	for _, url := range urls {
		url := url
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			dest := filepath.Join(destDir, path.Base(url))
			if _, err := os.Stat(dest); err == nil {
				d.log.Debug("archive exists, skipping", "file", path.Base(url))
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return
			}

			n, err := d.downloadFile(ctx, url, dest)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Error("archive download failed", "url", url, "error", err)
				result.Failed++
				return
			}
			result.Downloaded++
			result.Bytes += n
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return result, fmt.Errorf("submitting download: %w", submitErr)
		}
	}

	wg.Wait()
	return result, nil
}

// downloadFile fetches url to dest using a temporary file renamed into
// place on success, so a failed transfer leaves no partial archive.
func (d *Downloader) downloadFile(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, 0)
	if err != nil {
		return 0, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
