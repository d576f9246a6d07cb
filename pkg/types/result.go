// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MatchRecord is one pattern hit inside one document column. Match
// results stay in this long form through the whole pipeline and are
// only pivoted into a wide table at serialization time, so the
// document identifier travels with every hit.
type MatchRecord struct {
	// PMCID identifies the source document.
	PMCID string `parquet:"pmc_id" json:"pmc_id" yaml:"pmc_id"`

	// Group is the concept group the matching pattern belongs to.
	// Secondary-stage groups carry a "secondary_" prefix.
	Group string `parquet:"group" json:"group" yaml:"group"`

	// Pattern is the pattern string that produced the hit.
	Pattern string `parquet:"pattern" json:"pattern" yaml:"pattern"`

	// Column names the searched column the hit was found in.
	Column string `parquet:"column" json:"column" yaml:"column"`

	// Start and End are the byte offsets of the match span.
	Start int64 `parquet:"start" json:"start" yaml:"start"`
	End   int64 `parquet:"end" json:"end" yaml:"end"`

	// Context is the match plus a symmetric window of surrounding
	// characters, clipped at the text boundaries.
	Context string `parquet:"context" json:"context" yaml:"context"`
}
