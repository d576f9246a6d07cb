// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/parquet-go/parquet-go"

	"github.com/dovmed/dovmed/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
	Documents int
}

// Total returns the number of archives processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any archives failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ShardName returns the parquet shard filename for an archive. The
// conversion is lossy (markup is flattened), so the shard keeps the
// archive's base name to stay traceable to its source.
func ShardName(archivePath string) string {
	base := filepath.Base(archivePath)
	base = strings.TrimSuffix(base, ".tar.gz")
	return base + ".parquet"
}

// ConvertArchive converts one .tar.gz of JATS XML articles into a
// parquet shard under parquetDir. Articles that fail to parse are
// logged and skipped; the shard is written to a temporary name and
// renamed into place. It returns the number of documents written.
func ConvertArchive(archivePath, parquetDir string, log *slog.Logger) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("reading gzip: %w", err)
	}
	defer gz.Close()

	var docs []types.Document
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".xml") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}

		doc, err := ParseArticle(data)
		if err != nil {
			log.Warn("article skipped", "archive", filepath.Base(archivePath),
				"file", hdr.Name, "error", err)
			continue
		}
		if doc.PMCID == "" {
			// Fall back to the member filename ("oa_comm/PMC123.xml").
			doc.PMCID = strings.TrimSuffix(filepath.Base(hdr.Name), ".xml")
		}
		docs = append(docs, doc)
	}

	shardPath := filepath.Join(parquetDir, ShardName(archivePath))
	tmp := shardPath + ".tmp"
	if err := parquet.WriteFile(tmp, docs); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("writing shard: %w", err)
	}
	if err := os.Rename(tmp, shardPath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("renaming shard: %w", err)
	}
	return len(docs), nil
}

// ConvertBatch converts every .tar.gz under cfg.ArchiveDir (searched
// recursively) into parquet shards under cfg.ParquetDir, one shard per
// archive, with at most cfg.Workers conversions in flight. Archives
// whose shard already exists are skipped, so an interrupted run can
// resume. Individual failures are logged and counted but do not stop
// the batch.
func ConvertBatch(ctx context.Context, cfg types.ConvertConfig, log *slog.Logger) (BatchResult, error) {
	archives, err := findArchives(cfg.ArchiveDir)
	if err != nil {
		return BatchResult{}, err
	}
	if len(archives) == 0 {
		return BatchResult{}, fmt.Errorf("no .tar.gz archives under %s", cfg.ArchiveDir)
	}

	if err := os.MkdirAll(cfg.ParquetDir, 0o755); err != nil {
		return BatchResult{}, fmt.Errorf("creating parquet directory: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return BatchResult{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result BatchResult
	)

	for _, archive := range archives {
		archive := archive
		if ctx.Err() != nil {
			break
		}

		shardPath := filepath.Join(cfg.ParquetDir, ShardName(archive))
		if _, err := os.Stat(shardPath); err == nil {
			log.Debug("shard exists, skipping", "archive", filepath.Base(archive))
			result.Skipped++
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			n, err := ConvertArchive(archive, cfg.ParquetDir, log)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("archive conversion failed",
					"archive", filepath.Base(archive), "error", err)
				result.Failed++
				return
			}
			log.Info("archive converted",
				"archive", filepath.Base(archive), "documents", n)
			result.Converted++
			result.Documents += n
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return result, fmt.Errorf("submitting conversion: %w", submitErr)
		}
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func findArchives(dir string) ([]string, error) {
	var archives []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".tar.gz") {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking archive directory: %w", err)
	}
	return archives, nil
}
