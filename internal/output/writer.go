// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output serializes flattened scan results: parquet and CSV
// files for downstream analysis, a YAML run manifest, and an optional
// SQLite store for interactive review.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/dovmed/dovmed/internal/scan"
)

const (
	parquetFile  = "results.parquet"
	csvFile      = "results.csv"
	manifestFile = "manifest.yaml"
)

// WriteTable writes the flattened table as results.parquet and
// results.csv under dir. Both files are written to temporary names
// first and renamed into place only once both succeed, so a failed run
// leaves no output behind at all, not even one of the pair.
func WriteTable(dir string, t *scan.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	parquetPath := filepath.Join(dir, parquetFile)
	csvPath := filepath.Join(dir, csvFile)

	if err := writeTemp(parquetPath+".tmp", t, writeParquet); err != nil {
		return err
	}
	if err := writeTemp(csvPath+".tmp", t, writeCSV); err != nil {
		os.Remove(parquetPath + ".tmp")
		return err
	}

	if err := os.Rename(parquetPath+".tmp", parquetPath); err != nil {
		os.Remove(parquetPath + ".tmp")
		os.Remove(csvPath + ".tmp")
		return fmt.Errorf("renaming %s: %w", parquetPath, err)
	}
	if err := os.Rename(csvPath+".tmp", csvPath); err != nil {
		os.Remove(csvPath + ".tmp")
		return fmt.Errorf("renaming %s: %w", csvPath, err)
	}
	return nil
}

func writeTemp(tmp string, t *scan.Table, write func(*os.File, *scan.Table) error) error {
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	if err := write(f, t); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return nil
}

// tableSchema builds a parquet schema from the table's column kinds.
// The flattened layout is dynamic (per-group columns), so the schema
// cannot come from a struct tag.
func tableSchema(t *scan.Table) *parquet.Schema {
	group := parquet.Group{}
	for _, c := range t.Columns {
		switch c.Kind {
		case scan.KindInt:
			group[c.Name] = parquet.Int(64)
		case scan.KindBool:
			group[c.Name] = parquet.Leaf(parquet.BooleanType)
		default:
			group[c.Name] = parquet.String()
		}
	}
	return parquet.NewSchema("scan_result", group)
}

func writeParquet(f *os.File, t *scan.Table) error {
	w := parquet.NewGenericWriter[map[string]any](f, tableSchema(t))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c.Name] = row[i]
		}
		if _, err := w.Write([]map[string]any{rec}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	return w.Close()
}

func writeCSV(f *os.File, t *scan.Table) error {
	w := csv.NewWriter(f)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
