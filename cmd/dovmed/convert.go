// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dovmed/dovmed/internal/convert"
	"github.com/dovmed/dovmed/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert downloaded .tar.gz archives into parquet document shards",
	Long: `Convert extracts the JATS XML articles from every .tar.gz under the
archive directory and writes one parquet shard per archive. The conversion is
lossy: markup is flattened to plain text columns (title, abstract, authors,
journal, publication date, identifiers, full text). Archives whose shard
already exists are skipped.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("archive-dir", "data/pmc_oa", "directory searched recursively for .tar.gz archives")
	convertCmd.Flags().String("parquet-dir", "data/parquet", "directory receiving the parquet shards")
	convertCmd.Flags().Int("workers", 0, "concurrent archive conversions (0 = one per CPU)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	parquetDir, _ := cmd.Flags().GetString("parquet-dir")
	workers, _ := cmd.Flags().GetInt("workers")

	cfg := types.ConvertConfig{
		ArchiveDir: archiveDir,
		ParquetDir: parquetDir,
		Workers:    workers,
	}

	result, err := convert.ConvertBatch(context.Background(), cfg, slog.Default())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Convert summary: %d converted, %d skipped, %d failed (total: %d), %d documents\n",
		result.Converted, result.Skipped, result.Failed, result.Total(), result.Documents)
	if result.HasFailures() {
		return fmt.Errorf("%d archive(s) failed conversion", result.Failed)
	}
	return nil
}
