// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// FileListEntry is one cleaned row of the NCBI filelist CSVs. The
// article_file column ("collection/PMC123.xml") is split into
// Collection and PMCID, with the .xml suffix stripped; PMID values of
// "0" or "" become empty.
type FileListEntry struct {
	Collection  string `parquet:"collection,optional"`
	PMCID       string `parquet:"pmc_id,optional"`
	Citation    string `parquet:"article_citation,optional"`
	AccessionID string `parquet:"accession_id,optional"`
	LastUpdated string `parquet:"last_updated,optional"`
	PMID        string `parquet:"pmid,optional"`
	License     string `parquet:"license,optional"`
	Retracted   string `parquet:"retracted,optional"`
}

// MergeFileLists fetches each filelist CSV, normalizes and cleans the
// rows, and writes the combined table as one parquet file. The output
// is written to a temporary name and renamed into place.
func (d *Downloader) MergeFileLists(ctx context.Context, urls []string, outPath string) error {
	var entries []FileListEntry
	for _, url := range urls {
		body, err := d.fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("fetching filelist %s: %w", url, err)
		}
		rows, err := parseFileList(strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("parsing filelist %s: %w", url, err)
		}
		entries = append(entries, rows...)
	}
	d.log.Info("filelists merged", "files", len(urls), "entries", len(entries))

	tmp := outPath + ".tmp"
	if err := parquet.WriteFile(tmp, entries); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing filelist parquet: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming filelist parquet: %w", err)
	}
	return nil
}

// parseFileList reads one filelist CSV. Columns are located by
// normalized header name, so cosmetic header changes upstream do not
// break the mapping.
func parseFileList(r io.Reader) ([]FileListEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := map[string]int{}
	for i, name := range header {
		index[normalizeColumn(name)] = i
	}
	if _, ok := index["article_file"]; !ok {
		return nil, fmt.Errorf("missing article_file column in header %v", header)
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var entries []FileListEntry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		e := FileListEntry{
			Citation:    field(row, "article_citation"),
			AccessionID: field(row, "accessionid"),
			PMID:        field(row, "pmid"),
			License:     field(row, "license"),
			Retracted:   field(row, "retracted"),
		}
		for name, i := range index {
			if strings.HasPrefix(name, "lastupdated") && i < len(row) {
				e.LastUpdated = row[i]
			}
		}
		e.Collection, e.PMCID = splitArticleFile(field(row, "article_file"))
		if e.PMID == "0" {
			e.PMID = ""
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// splitArticleFile splits "collection/PMC123.xml" into its collection
// and identifier parts.
func splitArticleFile(s string) (collection, pmcID string) {
	pmcID = strings.TrimSuffix(filepath.Base(s), ".xml")
	if i := strings.Index(s, "/"); i >= 0 {
		collection = s[:i]
	}
	return collection, pmcID
}

// normalizeColumn lowercases a CSV header and collapses every
// non-alphanumeric run to a single underscore.
func normalizeColumn(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
