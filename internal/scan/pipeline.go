// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scan runs the two-stage filter/extract pipeline over a
// parquet document collection: primary predicate filtering with
// disqualifier veto, optional secondary annotation/filtering, context
// window extraction, per-group counts, and flattening to tabular form.
package scan

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/dovmed/dovmed/internal/expr"
	"github.com/dovmed/dovmed/pkg/types"
)

// secondaryPrefix marks result columns and match groups that came
// from the secondary query.
const secondaryPrefix = "secondary_"

// Pipeline holds a validated scan configuration and the compiled
// predicates. It is immutable after New and safe for the shard
// workers to share.
type Pipeline struct {
	cfg       types.ScanConfig
	primary   *expr.Program
	secondary *expr.Program
	cols      []string
	secCols   []string
	log       *slog.Logger
}

// DocResult is one retained document with its per-group results.
// Count and Matched slices are index-aligned with the group name
// slices on Result.
type DocResult struct {
	Doc types.Document

	PrimaryMatched   []bool
	PrimaryCounts    []int
	SecondaryMatched []bool
	SecondaryCounts  []int

	Matches []types.MatchRecord

	// DistinctGroups is the number of primary concept groups with at
	// least one match.
	DistinctGroups int

	// TotalMatches orders the output; it sums located occurrences
	// when extraction or counting ran and falls back to the distinct
	// group count otherwise.
	TotalMatches int
}

// GroupTally pairs a concept group with the number of retained
// documents it matched.
type GroupTally struct {
	Group string `yaml:"group" json:"group"`
	Docs  int    `yaml:"docs" json:"docs"`
}

// Summary holds run statistics for logging and the run manifest.
type Summary struct {
	Shards            int           `yaml:"shards" json:"shards"`
	TotalRecords      int64         `yaml:"total_records" json:"total_records"`
	Retained          int           `yaml:"retained" json:"retained"`
	Disqualified      int           `yaml:"disqualified" json:"disqualified"`
	BelowThreshold    int           `yaml:"below_threshold" json:"below_threshold"`
	SecondaryFiltered int           `yaml:"secondary_filtered" json:"secondary_filtered"`
	MatchRecords      int           `yaml:"match_records" json:"match_records"`
	GroupTallies      []GroupTally  `yaml:"group_tallies" json:"group_tallies"`
	Duration          time.Duration `yaml:"duration" json:"duration"`
}

// Result is the outcome of one scan run.
type Result struct {
	Docs            []DocResult
	PrimaryGroups   []string
	SecondaryGroups []string
	Summary         Summary

	cfg types.ScanConfig
}

// New validates the configuration against the compiled programs.
// Configuration errors surface here, before any file is opened.
func New(cfg types.ScanConfig, primary, secondary *expr.Program, log *slog.Logger) (*Pipeline, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary query program is required")
	}
	if cfg.ParquetPattern == "" {
		return nil, fmt.Errorf("parquet pattern is required")
	}
	if len(cfg.SearchColumns) == 0 {
		return nil, fmt.Errorf("at least one search column is required")
	}
	if err := knownColumns(cfg.SearchColumns); err != nil {
		return nil, err
	}
	if err := knownColumns(cfg.SecondarySearchColumns); err != nil {
		return nil, err
	}
	if cfg.MinQueriesPerMatch < 1 {
		return nil, fmt.Errorf("min-queries-per-match must be >= 1, got %d", cfg.MinQueriesPerMatch)
	}
	if secondary == nil && (cfg.SecondaryFilter || cfg.ExtractMatches.Secondary() || cfg.AddGroupCounts.Secondary()) {
		return nil, fmt.Errorf("secondary query options set but no secondary query file given")
	}
	if cfg.Layout == types.LayoutMatch && !cfg.ExtractMatches.Primary() && !cfg.ExtractMatches.Secondary() {
		return nil, fmt.Errorf("layout %q requires match extraction (--extract-matches)", cfg.Layout)
	}
	if cfg.ContextWidth <= 0 {
		cfg.ContextWidth = types.DefaultContextWidth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4096
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if log == nil {
		log = slog.Default()
	}

	secCols := cfg.SecondarySearchColumns
	if len(secCols) == 0 {
		secCols = cfg.SearchColumns
	}

	return &Pipeline{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		cols:      cfg.SearchColumns,
		secCols:   secCols,
		log:       log,
	}, nil
}

func knownColumns(cols []string) error {
	known := make(map[string]bool)
	for _, c := range types.SearchableColumns() {
		known[c] = true
	}
	for _, c := range cols {
		if !known[c] {
			return fmt.Errorf("unknown search column %q: searchable columns are %v", c, types.SearchableColumns())
		}
	}
	return nil
}

// shardOutcome is what one shard worker reports back.
type shardOutcome struct {
	shard    string
	docs     []DocResult
	counters shardCounters
	err      error
}

type shardCounters struct {
	scanned           int64
	disqualified      int
	belowThreshold    int
	secondaryFiltered int
}

// Run executes the scan: schema preflight, parallel shard processing,
// then merge and sort. It returns an error without partial results if
// any shard fails.
func (p *Pipeline) Run() (*Result, error) {
	start := time.Now()

	shards, err := filepath.Glob(p.cfg.ParquetPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet pattern %q: %w", p.cfg.ParquetPattern, err)
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no parquet files match pattern %q", p.cfg.ParquetPattern)
	}
	sort.Strings(shards)
	p.log.Info("scanning collection", "shards", len(shards), "pattern", p.cfg.ParquetPattern)

	// Fail on missing columns before any row work begins.
	need := append([]string{types.IDColumn}, p.cols...)
	if p.secondary != nil {
		need = append(need, p.secCols...)
	}
	if err := preflight(shards, dedup(need)); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(p.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	ch := make(chan shardOutcome, len(shards))
	var wg sync.WaitGroup
	for _, shard := range shards {
		shard := shard
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			ch <- p.processShard(shard)
		}); err != nil {
			wg.Done()
			return nil, fmt.Errorf("submitting shard %s: %w", shard, err)
		}
	}
	wg.Wait()
	close(ch)

	result := &Result{
		PrimaryGroups:   groupNames(p.primary),
		SecondaryGroups: groupNames(p.secondary),
		cfg:             p.cfg,
	}
	var counters shardCounters
	for out := range ch {
		if out.err != nil {
			return nil, fmt.Errorf("shard %s: %w", out.shard, out.err)
		}
		result.Docs = append(result.Docs, out.docs...)
		counters.scanned += out.counters.scanned
		counters.disqualified += out.counters.disqualified
		counters.belowThreshold += out.counters.belowThreshold
		counters.secondaryFiltered += out.counters.secondaryFiltered
	}

	// Row order across shards is unspecified; sort so runs over the
	// same immutable collection are reproducible.
	sort.Slice(result.Docs, func(i, j int) bool {
		if result.Docs[i].TotalMatches != result.Docs[j].TotalMatches {
			return result.Docs[i].TotalMatches > result.Docs[j].TotalMatches
		}
		return result.Docs[i].Doc.PMCID < result.Docs[j].Doc.PMCID
	})

	result.Summary = p.summarize(result, shards, counters, time.Since(start))
	p.log.Info("scan complete",
		"scanned", result.Summary.TotalRecords,
		"retained", result.Summary.Retained,
		"disqualified", result.Summary.Disqualified,
		"duration", result.Summary.Duration)
	return result, nil
}

func (p *Pipeline) processShard(shard string) shardOutcome {
	out := shardOutcome{shard: shard}
	handle := func(batch []types.Document) error {
		for i := range batch {
			out.counters.scanned++
			if dr, keep := p.processDoc(&batch[i], &out.counters); keep {
				out.docs = append(out.docs, dr)
			}
		}
		return nil
	}

	switch p.cfg.ReadMode {
	case types.ReadEager:
		out.err = readEager(shard, handle)
	default:
		out.err = readStream(shard, p.cfg.BatchSize, handle)
	}
	if out.err == nil {
		p.log.Debug("shard done", "shard", shard, "retained", len(out.docs))
	}
	return out
}

// processDoc runs both stages for one document. The returned bool is
// false when the document is filtered out at any point.
func (p *Pipeline) processDoc(doc *types.Document, counters *shardCounters) (DocResult, bool) {
	// Stage 1: primary filter.
	if !p.primary.EvalDoc(p.primary.Primary, doc, p.cols) {
		return DocResult{}, false
	}
	if p.primary.Disqualified(doc, p.cols) {
		counters.disqualified++
		return DocResult{}, false
	}

	dr := DocResult{Doc: *doc}

	dr.PrimaryMatched = make([]bool, len(p.primary.Groups))
	for gi, gp := range p.primary.Groups {
		dr.PrimaryMatched[gi] = p.groupMatchesDoc(gp, doc, p.cols)
		if dr.PrimaryMatched[gi] {
			dr.DistinctGroups++
		}
	}
	if dr.DistinctGroups < p.cfg.MinQueriesPerMatch {
		counters.belowThreshold++
		return DocResult{}, false
	}

	// Stage 2: secondary as filter, when enabled.
	if p.secondary != nil && p.cfg.SecondaryFilter && !p.secondary.Retain(doc, p.secCols) {
		counters.secondaryFiltered++
		return DocResult{}, false
	}

	// Stage 2: annotation. Occurrences are located once per group and
	// serve both extraction and counting.
	if p.cfg.ExtractMatches.Primary() || p.cfg.AddGroupCounts.Primary() {
		dr.PrimaryCounts = make([]int, len(p.primary.Groups))
		p.annotate(&dr, p.primary, p.cols, "", dr.PrimaryCounts, p.cfg.ExtractMatches.Primary())
	}
	if p.secondary != nil {
		dr.SecondaryMatched = make([]bool, len(p.secondary.Groups))
		for gi, gp := range p.secondary.Groups {
			dr.SecondaryMatched[gi] = p.groupMatchesDoc(gp, doc, p.secCols)
		}
		if p.cfg.ExtractMatches.Secondary() || p.cfg.AddGroupCounts.Secondary() {
			dr.SecondaryCounts = make([]int, len(p.secondary.Groups))
			p.annotate(&dr, p.secondary, p.secCols, secondaryPrefix, dr.SecondaryCounts, p.cfg.ExtractMatches.Secondary())
		}
	}

	dr.TotalMatches = totalMatches(&dr)
	return dr, true
}

func (p *Pipeline) groupMatchesDoc(gp *expr.GroupProgram, doc *types.Document, cols []string) bool {
	for _, col := range cols {
		if text, ok := doc.Column(col); ok && text != "" && gp.Matches(text) {
			return true
		}
	}
	return false
}

// annotate locates every occurrence of every group pattern in the
// given columns, filling counts and (when extract is set) emitting one
// MatchRecord per occurrence.
func (p *Pipeline) annotate(dr *DocResult, prog *expr.Program, cols []string, prefix string, counts []int, extract bool) {
	for gi, gp := range prog.Groups {
		for _, col := range cols {
			text, ok := dr.Doc.Column(col)
			if !ok || text == "" {
				continue
			}
			spans := gp.FindAll(text)
			counts[gi] += len(spans)
			if !extract {
				continue
			}
			for _, s := range spans {
				dr.Matches = append(dr.Matches, types.MatchRecord{
					PMCID:   dr.Doc.PMCID,
					Group:   prefix + gp.Name,
					Pattern: s.Pattern,
					Column:  col,
					Start:   int64(s.Start),
					End:     int64(s.End),
					Context: contextWindow(text, s.Start, s.End, p.cfg.ContextWidth),
				})
			}
		}
	}
}

func totalMatches(dr *DocResult) int {
	total := 0
	for _, c := range dr.PrimaryCounts {
		total += c
	}
	for _, c := range dr.SecondaryCounts {
		total += c
	}
	if total == 0 {
		total = dr.DistinctGroups
	}
	return total
}

func (p *Pipeline) summarize(result *Result, shards []string, counters shardCounters, dur time.Duration) Summary {
	s := Summary{
		Shards:            len(shards),
		TotalRecords:      counters.scanned,
		Retained:          len(result.Docs),
		Disqualified:      counters.disqualified,
		BelowThreshold:    counters.belowThreshold,
		SecondaryFiltered: counters.secondaryFiltered,
		Duration:          dur.Round(time.Millisecond),
	}
	for gi, name := range result.PrimaryGroups {
		tally := GroupTally{Group: name}
		for _, dr := range result.Docs {
			if gi < len(dr.PrimaryMatched) && dr.PrimaryMatched[gi] {
				tally.Docs++
			}
		}
		s.GroupTallies = append(s.GroupTallies, tally)
	}
	for _, dr := range result.Docs {
		s.MatchRecords += len(dr.Matches)
	}
	return s
}

func groupNames(prog *expr.Program) []string {
	if prog == nil {
		return nil
	}
	names := make([]string, len(prog.Groups))
	for i, g := range prog.Groups {
		names[i] = g.Name
	}
	return names
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
