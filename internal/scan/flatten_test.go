// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dovmed/dovmed/pkg/types"
)

func sampleResult(layout types.Layout, counts types.CountMode) *Result {
	return &Result{
		PrimaryGroups: []string{"viruses", "hosts"},
		Docs: []DocResult{
			{
				Doc:            types.Document{PMCID: "PMC1", Title: "A"},
				PrimaryMatched: []bool{true, true},
				PrimaryCounts:  []int{2, 1},
				DistinctGroups: 2,
				TotalMatches:   3,
				Matches: []types.MatchRecord{
					{PMCID: "PMC1", Group: "viruses", Pattern: "influenza", Column: "title", Start: 0, End: 9, Context: "influenza ctx"},
					{PMCID: "PMC1", Group: "viruses", Pattern: "influenza", Column: "full_text", Start: 4, End: 13, Context: "more influenza"},
					{PMCID: "PMC1", Group: "hosts", Pattern: "avian", Column: "full_text", Start: 0, End: 5, Context: "avian ctx"},
				},
			},
			{
				Doc:            types.Document{PMCID: "PMC2", Title: "B"},
				PrimaryMatched: []bool{true, false},
				PrimaryCounts:  []int{1, 0},
				DistinctGroups: 1,
				TotalMatches:   1,
				Matches: []types.MatchRecord{
					{PMCID: "PMC2", Group: "viruses", Pattern: "coronavirus", Column: "title", Start: 0, End: 11, Context: "corona ctx"},
				},
			},
		},
		cfg: types.ScanConfig{
			Layout:         layout,
			ExtractMatches: types.ExtractPrimary,
			AddGroupCounts: counts,
		},
	}
}

func columnIndex(t *testing.T, tbl *Table, name string) int {
	t.Helper()
	for i, c := range tbl.Columns {
		if c.Name == name {
			return i
		}
	}
	t.Fatalf("column %q not found in %v", name, tbl.Columns)
	return -1
}

func TestFlattenMatchLayout(t *testing.T) {
	tbl := sampleResult(types.LayoutMatch, types.CountPrimary).Flatten()

	// One row per match, identifier on every row.
	require.Len(t, tbl.Rows, 4)
	idCol := columnIndex(t, tbl, "pmc_id")
	ids := map[string]int{}
	for _, row := range tbl.Rows {
		ids[row[idCol].(string)]++
	}
	assert.Equal(t, map[string]int{"PMC1": 3, "PMC2": 1}, ids)
}

func TestFlattenDocLayoutCounts(t *testing.T) {
	tbl := sampleResult(types.LayoutDoc, types.CountPrimary).Flatten()

	require.Len(t, tbl.Rows, 2)
	vCol := columnIndex(t, tbl, "viruses_count")
	hCol := columnIndex(t, tbl, "hosts_count")
	mgCol := columnIndex(t, tbl, "matched_groups")

	assert.Equal(t, int64(2), tbl.Rows[0][vCol])
	assert.Equal(t, int64(1), tbl.Rows[0][hCol])
	assert.Equal(t, int64(2), tbl.Rows[0][mgCol])
	assert.Equal(t, int64(1), tbl.Rows[1][vCol])
	assert.Equal(t, int64(0), tbl.Rows[1][hCol])
}

func TestFlattenDocLayoutBooleans(t *testing.T) {
	tbl := sampleResult(types.LayoutDoc, types.CountNone).Flatten()

	vCol := columnIndex(t, tbl, "viruses_matched")
	hCol := columnIndex(t, tbl, "hosts_matched")
	assert.Equal(t, true, tbl.Rows[0][vCol])
	assert.Equal(t, true, tbl.Rows[0][hCol])
	assert.Equal(t, false, tbl.Rows[1][hCol])
}

func TestFlattenDocLayoutKeepsEveryContext(t *testing.T) {
	tbl := sampleResult(types.LayoutDoc, types.CountPrimary).Flatten()

	ctxCol := columnIndex(t, tbl, "viruses_contexts")
	got := tbl.Rows[0][ctxCol].(string)
	assert.Contains(t, got, "influenza ctx")
	assert.Contains(t, got, "more influenza")

	hostCol := columnIndex(t, tbl, "hosts_contexts")
	assert.Equal(t, "avian ctx", tbl.Rows[0][hostCol])
}
