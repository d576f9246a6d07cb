// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dovmed/dovmed/internal/query"
	"github.com/dovmed/dovmed/internal/scan"
	"github.com/dovmed/dovmed/pkg/types"
)

func sampleTable() *scan.Table {
	return &scan.Table{
		Columns: []scan.Column{
			{Name: "pmc_id"},
			{Name: "viruses_count", Kind: scan.KindInt},
			{Name: "retained", Kind: scan.KindBool},
		},
		Rows: [][]any{
			{"PMC1", int64(3), true},
			{"PMC2", int64(0), false},
		},
	}
}

func sampleScanResult() *scan.Result {
	return &scan.Result{
		PrimaryGroups: []string{"viruses"},
		Docs: []scan.DocResult{
			{
				Doc: types.Document{
					PMCID:   "PMC1",
					Title:   "Avian influenza surveillance",
					Journal: "Vet Res",
				},
				DistinctGroups: 1,
				TotalMatches:   2,
				Matches: []types.MatchRecord{
					{PMCID: "PMC1", Group: "viruses", Pattern: "influenza", Column: "title", Start: 6, End: 15, Context: "Avian influenza surveillance"},
					{PMCID: "PMC1", Group: "viruses", Pattern: "influenza", Column: "full_text", Start: 0, End: 9, Context: "influenza in poultry flocks"},
				},
			},
			{
				Doc: types.Document{
					PMCID:   "PMC3",
					Title:   "Coronavirus genomics",
					Journal: "Virol J",
				},
				DistinctGroups: 1,
				TotalMatches:   1,
				Matches: []types.MatchRecord{
					{PMCID: "PMC3", Group: "viruses", Pattern: "coronavirus", Column: "title", Start: 0, End: 11, Context: "Coronavirus genomics"},
				},
			},
		},
		Summary: scan.Summary{Shards: 1, TotalRecords: 3, Retained: 2, MatchRecords: 3},
	}
}

func TestWriteTableCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteTable(dir, sampleTable()))

	f, err := os.Open(filepath.Join(dir, "results.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"pmc_id", "viruses_count", "retained"}, records[0])
	assert.Equal(t, []string{"PMC1", "3", "true"}, records[1])
	assert.Equal(t, []string{"PMC2", "0", "false"}, records[2])
}

func TestWriteTableParquet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteTable(dir, sampleTable()))

	path := filepath.Join(dir, "results.parquet")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(2), pf.NumRows())

	for _, col := range []string{"pmc_id", "viruses_count", "retained"} {
		_, ok := pf.Schema().Lookup(col)
		assert.True(t, ok, "missing column %s", col)
	}

	// No stray temporary file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTableNoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	// Occupy the CSV temp path with a directory so the CSV stage fails
	// after the parquet temp has been written.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "results.csv.tmp"), 0o755))

	require.Error(t, WriteTable(dir, sampleTable()))

	// Neither final file may exist, and the parquet temp is cleaned up.
	for _, name := range []string{"results.parquet", "results.csv", "results.parquet.tmp"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestStoreSaveAndSearch(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveResult(ctx, sampleScanResult()))

	hits, err := store.Search(ctx, SearchOptions{Query: "poultry"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "PMC1", hits[0].PMCID)
	assert.Equal(t, "Avian influenza surveillance", hits[0].Title)
	assert.Equal(t, "full_text", hits[0].Column)

	hits, err = store.Search(ctx, SearchOptions{PMCID: "PMC3"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "coronavirus", hits[0].Pattern)

	hits, err = store.Search(ctx, SearchOptions{Group: "viruses", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	res := sampleScanResult()
	require.NoError(t, store.SaveResult(ctx, res))
	require.NoError(t, store.SaveResult(ctx, res))

	hits, err := store.Search(ctx, SearchOptions{PMCID: "PMC1", MaxResults: 100})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	primary := &query.Spec{Groups: []query.Group{
		{Name: "viruses", Alternatives: [][]string{{"influenza", "h5n1"}, {"coronavirus"}}},
	}}
	disq := query.Disqualifiers{"advance light source"}
	cfg := types.ScanConfig{
		ParquetPattern:     "data/*.parquet",
		SearchColumns:      []string{"title", "full_text"},
		MinQueriesPerMatch: 1,
		Layout:             types.LayoutDoc,
	}

	require.NoError(t, WriteManifest(dir, cfg, primary, nil, disq, sampleScanResult()))

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Query.PrimaryGroups, 1)
	assert.Equal(t, "viruses", m.Query.PrimaryGroups[0].Name)
	assert.Equal(t, 3, m.Query.PrimaryGroups[0].Patterns)
	assert.Equal(t, 1, m.Query.Disqualifiers)
	assert.Empty(t, m.Query.SecondaryGroups)
	assert.Equal(t, "data/*.parquet", m.Config.ParquetPattern)
	assert.Equal(t, 2, m.Summary.Retained)
	assert.False(t, m.Timestamp.IsZero())
}
