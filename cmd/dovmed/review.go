// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dovmed/dovmed/internal/output"
)

var reviewCmd = &cobra.Command{
	Use:   "review [query]",
	Short: "Search the stored matches of a previous scan",
	Long: `Review queries the SQLite store written by scan --store. The positional
query is FTS5 full-text search over the match context windows; --group and
--pmcid filter structurally. Full-text hits are ranked by relevance.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("store", "results/results.db", "path to the scan results store")
	reviewCmd.Flags().String("group", "", "filter by concept group")
	reviewCmd.Flags().String("pmcid", "", "filter by document identifier")
	reviewCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	reviewCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	storePath, _ := cmd.Flags().GetString("store")
	if _, err := os.Stat(storePath); err != nil {
		return fmt.Errorf("no results store at %s: run scan with --store first", storePath)
	}

	group, _ := cmd.Flags().GetString("group")
	pmcid, _ := cmd.Flags().GetString("pmcid")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := output.SearchOptions{
		Query:      strings.Join(args, " "),
		Group:      group,
		PMCID:      pmcid,
		MaxResults: limit,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search terms, --group, or --pmcid")
	}

	store, err := output.NewStore(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatReviewOutput(hits, jsonOutput)
}

func formatReviewOutput(hits []output.SearchHit, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-12s  %-12s  %-14s  %s\n",
		"Rank", "PMC ID", "Group", "Column", "Context")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, h := range hits {
		fmt.Fprintf(os.Stdout, "%-4d  %-12s  %-12s  %-14s  %s\n",
			i+1, h.PMCID, h.Group, h.Column, truncateSnippet(h.Context, 60))
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

// truncateSnippet shortens s to at most width runes, replacing the
// tail with an ellipsis. Truncation happens on rune boundaries so
// multi-byte contexts never render as mojibake.
func truncateSnippet(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
