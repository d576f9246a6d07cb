// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dovmed/dovmed/internal/expr"
	"github.com/dovmed/dovmed/internal/output"
	"github.com/dovmed/dovmed/internal/query"
	"github.com/dovmed/dovmed/internal/scan"
	"github.com/dovmed/dovmed/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a concept-group query over the parquet document shards",
	Long: `Scan filters the converted document shards with a concept-group query:
a document is retained when any primary group matches a searched column and no
disqualifying term does. Retained documents can be annotated with per-group
match counts and context windows, re-filtered or annotated with a secondary
query, and are written as parquet, CSV, a YAML run manifest, and optionally
a SQLite store for later review.

Queries come either from JSON files mapping group names to lists of
alternative pattern sets (--queries-file, repeatable), or from a plain text
file with one pattern per line (--simple-queries). JSON queries may carry a
reserved "disqualifying_terms" group; simple queries are always matched
case-insensitively.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().String("parquet-pattern", "", "glob matching the input parquet shards")
	scanCmd.Flags().StringSlice("queries-file", nil, "JSON concept-group query file (repeatable; groups are merged)")
	scanCmd.Flags().String("simple-queries", "", "plain text pattern file, one pattern per line")
	scanCmd.Flags().String("secondary-queries-file", "", "JSON query for the secondary stage")
	scanCmd.Flags().StringSlice("search-columns", []string{"title", "abstract_text", "full_text"}, "document columns to match against")
	scanCmd.Flags().StringSlice("secondary-search-columns", nil, "columns for the secondary query (default: same as --search-columns)")
	scanCmd.Flags().String("extract-matches", "primary", "extract context windows: primary, secondary, both, or none")
	scanCmd.Flags().String("add-group-counts", "primary", "add per-group match counts: primary, secondary, both, or none")
	scanCmd.Flags().Int("min-queries-per-match", 1, "drop documents matched by fewer distinct primary groups")
	scanCmd.Flags().Bool("secondary-filter", false, "drop documents the secondary query does not match")
	scanCmd.Flags().Bool("case-sensitive", false, "match JSON-mode patterns case-sensitively")
	scanCmd.Flags().Int("context-width", types.DefaultContextWidth, "characters captured on each side of a match")
	scanCmd.Flags().String("layout", "doc", "output layout: doc (one row per document) or match (one row per match)")
	scanCmd.Flags().String("read-mode", "stream", "shard read strategy: stream or eager")
	scanCmd.Flags().Int("batch-size", 0, "row batch size for streamed reads")
	scanCmd.Flags().Int("workers", 0, "shard worker pool size (0 = one per CPU)")
	scanCmd.Flags().String("output-dir", "results", "directory for results.parquet, results.csv, and manifest.yaml")
	scanCmd.Flags().String("store", "", "also write results to this SQLite store")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := scanConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	primarySpec, disq, secondarySpec, err := loadSpecs(cmd)
	if err != nil {
		return err
	}

	// Simple-mode patterns are plain strings and always matched
	// case-insensitively; JSON queries default to case-insensitive with
	// an opt-out.
	simple, _ := cmd.Flags().GetString("simple-queries")
	opts := expr.Options{CaseInsensitive: !cfg.CaseSensitive || simple != ""}

	primary, err := expr.Compile(primarySpec, disq, opts)
	if err != nil {
		return err
	}
	var secondary *expr.Program
	if secondarySpec != nil {
		if secondary, err = expr.Compile(secondarySpec, nil, opts); err != nil {
			return err
		}
	}

	pipeline, err := scan.New(cfg, primary, secondary, slog.Default())
	if err != nil {
		return err
	}
	res, err := pipeline.Run()
	if err != nil {
		return err
	}

	if err := output.WriteTable(cfg.OutputDir, res.Flatten()); err != nil {
		return err
	}
	if err := output.WriteManifest(cfg.OutputDir, cfg, primarySpec, secondarySpec, disq, res); err != nil {
		return err
	}

	if cfg.StorePath != "" {
		store, err := output.NewStore(cfg.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveResult(context.Background(), res); err != nil {
			return err
		}
	}

	s := res.Summary
	fmt.Fprintf(os.Stdout,
		"Scan summary: %d shards, %d records, %d retained (%d disqualified, %d below threshold, %d secondary-filtered), %d matches in %s\n",
		s.Shards, s.TotalRecords, s.Retained, s.Disqualified,
		s.BelowThreshold, s.SecondaryFiltered, s.MatchRecords, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stdout, "Results written to %s\n", cfg.OutputDir)
	return nil
}

// loadSpecs reads the primary query (JSON or simple mode, mutually
// exclusive) and the optional secondary query.
func loadSpecs(cmd *cobra.Command) (*query.Spec, query.Disqualifiers, *query.Spec, error) {
	jsonFiles, _ := cmd.Flags().GetStringSlice("queries-file")
	simple, _ := cmd.Flags().GetString("simple-queries")

	if len(jsonFiles) > 0 && simple != "" {
		return nil, nil, nil, fmt.Errorf("--queries-file and --simple-queries are mutually exclusive")
	}
	if len(jsonFiles) == 0 && simple == "" {
		return nil, nil, nil, fmt.Errorf("a query is required: provide --queries-file or --simple-queries")
	}

	var (
		primary *query.Spec
		disq    query.Disqualifiers
		err     error
	)
	if simple != "" {
		primary, err = query.LoadSimple(simple)
	} else {
		primary, disq, err = query.LoadJSON(jsonFiles...)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var secondary *query.Spec
	if path, _ := cmd.Flags().GetString("secondary-queries-file"); path != "" {
		// Disqualifiers only apply to the primary stage.
		secondary, _, err = query.LoadJSON(path)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return primary, disq, secondary, nil
}

func scanConfigFromFlags(cmd *cobra.Command) (types.ScanConfig, error) {
	pattern, _ := cmd.Flags().GetString("parquet-pattern")
	if pattern == "" {
		pattern = viper.GetString("scan.parquet_pattern")
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if !cmd.Flags().Changed("output-dir") && viper.IsSet("scan.output_dir") {
		outputDir = viper.GetString("scan.output_dir")
	}

	extractStr, _ := cmd.Flags().GetString("extract-matches")
	extract, err := types.ParseExtractMode(extractStr)
	if err != nil {
		return types.ScanConfig{}, err
	}
	countsStr, _ := cmd.Flags().GetString("add-group-counts")
	counts, err := types.ParseCountMode(countsStr)
	if err != nil {
		return types.ScanConfig{}, err
	}
	layoutStr, _ := cmd.Flags().GetString("layout")
	layout, err := types.ParseLayout(layoutStr)
	if err != nil {
		return types.ScanConfig{}, err
	}
	readModeStr, _ := cmd.Flags().GetString("read-mode")
	readMode, err := types.ParseReadMode(readModeStr)
	if err != nil {
		return types.ScanConfig{}, err
	}

	searchCols, _ := cmd.Flags().GetStringSlice("search-columns")
	secondaryCols, _ := cmd.Flags().GetStringSlice("secondary-search-columns")
	minQueries, _ := cmd.Flags().GetInt("min-queries-per-match")
	secondaryFilter, _ := cmd.Flags().GetBool("secondary-filter")
	caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
	contextWidth, _ := cmd.Flags().GetInt("context-width")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	workers, _ := cmd.Flags().GetInt("workers")
	storePath, _ := cmd.Flags().GetString("store")

	return types.ScanConfig{
		ParquetPattern:         pattern,
		SearchColumns:          searchCols,
		SecondarySearchColumns: secondaryCols,
		ExtractMatches:         extract,
		AddGroupCounts:         counts,
		MinQueriesPerMatch:     minQueries,
		SecondaryFilter:        secondaryFilter,
		CaseSensitive:          caseSensitive,
		ContextWidth:           contextWidth,
		Layout:                 layout,
		ReadMode:               readMode,
		BatchSize:              batchSize,
		Workers:                workers,
		OutputDir:              outputDir,
		StorePath:              storePath,
	}, nil
}
