// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import (
	"strings"

	"github.com/dovmed/dovmed/pkg/types"
)

// Kind is the column type of a flattened table.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Column describes one column of a flattened table.
type Column struct {
	Name string
	Kind Kind
}

// Table is the serialization-ready form of a scan result. The sinks
// (parquet, CSV, SQLite) consume it without knowing the layout.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// contextSeparator joins multiple context windows into one cell in the
// doc layout. Chosen so comma-delimited export stays parseable.
const contextSeparator = " | "

// Flatten pivots the result into tabular form. The doc layout emits
// one row per document with per-group indicator/count columns and
// joined contexts; the match layout emits one row per located match.
// Every row carries the document identifier.
func (r *Result) Flatten() *Table {
	if r.cfg.Layout == types.LayoutMatch {
		return r.flattenMatches()
	}
	return r.flattenDocs()
}

func (r *Result) flattenMatches() *Table {
	t := &Table{Columns: []Column{
		{Name: "pmc_id"},
		{Name: "group"},
		{Name: "pattern"},
		{Name: "column"},
		{Name: "start", Kind: KindInt},
		{Name: "end", Kind: KindInt},
		{Name: "context"},
	}}
	for _, dr := range r.Docs {
		for _, m := range dr.Matches {
			t.Rows = append(t.Rows, []any{
				m.PMCID, m.Group, m.Pattern, m.Column, m.Start, m.End, m.Context,
			})
		}
	}
	return t
}

func (r *Result) flattenDocs() *Table {
	counts := r.cfg.AddGroupCounts
	extract := r.cfg.ExtractMatches
	hasSecondary := len(r.SecondaryGroups) > 0

	t := &Table{Columns: []Column{
		{Name: "pmc_id"},
		{Name: "title"},
		{Name: "journal"},
		{Name: "publication_date"},
		{Name: "doi"},
	}}

	for _, g := range r.PrimaryGroups {
		if counts.Primary() {
			t.Columns = append(t.Columns, Column{Name: g + "_count", Kind: KindInt})
		} else {
			t.Columns = append(t.Columns, Column{Name: g + "_matched", Kind: KindBool})
		}
	}
	if hasSecondary {
		for _, g := range r.SecondaryGroups {
			if counts.Secondary() {
				t.Columns = append(t.Columns, Column{Name: secondaryPrefix + g + "_count", Kind: KindInt})
			} else {
				t.Columns = append(t.Columns, Column{Name: secondaryPrefix + g + "_matched", Kind: KindBool})
			}
		}
	}
	t.Columns = append(t.Columns,
		Column{Name: "matched_groups", Kind: KindInt},
		Column{Name: "total_matches", Kind: KindInt},
	)
	if extract.Primary() {
		for _, g := range r.PrimaryGroups {
			t.Columns = append(t.Columns, Column{Name: g + "_contexts"})
		}
	}
	if extract.Secondary() {
		for _, g := range r.SecondaryGroups {
			t.Columns = append(t.Columns, Column{Name: secondaryPrefix + g + "_contexts"})
		}
	}

	for _, dr := range r.Docs {
		row := []any{
			dr.Doc.PMCID, dr.Doc.Title, dr.Doc.Journal, dr.Doc.PublicationDate, dr.Doc.DOI,
		}
		for gi := range r.PrimaryGroups {
			if counts.Primary() {
				row = append(row, int64(at(dr.PrimaryCounts, gi)))
			} else {
				row = append(row, gi < len(dr.PrimaryMatched) && dr.PrimaryMatched[gi])
			}
		}
		if hasSecondary {
			for gi := range r.SecondaryGroups {
				if counts.Secondary() {
					row = append(row, int64(at(dr.SecondaryCounts, gi)))
				} else {
					row = append(row, gi < len(dr.SecondaryMatched) && dr.SecondaryMatched[gi])
				}
			}
		}
		row = append(row, int64(dr.DistinctGroups), int64(dr.TotalMatches))
		if extract.Primary() {
			for _, g := range r.PrimaryGroups {
				row = append(row, joinContexts(dr.Matches, g))
			}
		}
		if extract.Secondary() {
			for _, g := range r.SecondaryGroups {
				row = append(row, joinContexts(dr.Matches, secondaryPrefix+g))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func at(counts []int, i int) int {
	if i < len(counts) {
		return counts[i]
	}
	return 0
}

// joinContexts concatenates every context window the group produced in
// the document, so the wide layout drops no match information.
func joinContexts(matches []types.MatchRecord, group string) string {
	var parts []string
	for _, m := range matches {
		if m.Group == group {
			parts = append(parts, m.Context)
		}
	}
	return strings.Join(parts, contextSeparator)
}
