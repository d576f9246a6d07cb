// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	// NCBI asks bulk clients to identify themselves with a contact
	// address, so the CLI appends the configured email when present.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ExtractMode selects which query stages have their matches extracted
// into context windows.
type ExtractMode string

const (
	ExtractPrimary   ExtractMode = "primary"
	ExtractSecondary ExtractMode = "secondary"
	ExtractBoth      ExtractMode = "both"
	ExtractNone      ExtractMode = "none"
)

// ParseExtractMode validates a string flag value.
func ParseExtractMode(s string) (ExtractMode, error) {
	switch ExtractMode(s) {
	case ExtractPrimary, ExtractSecondary, ExtractBoth, ExtractNone:
		return ExtractMode(s), nil
	}
	return "", fmt.Errorf("invalid extract mode %q: must be primary, secondary, both, or none", s)
}

// Primary reports whether primary-stage matches are extracted.
func (m ExtractMode) Primary() bool { return m == ExtractPrimary || m == ExtractBoth }

// Secondary reports whether secondary-stage matches are extracted.
func (m ExtractMode) Secondary() bool { return m == ExtractSecondary || m == ExtractBoth }

// CountMode selects which query stages get per-group match-count columns.
type CountMode string

const (
	CountPrimary   CountMode = "primary"
	CountSecondary CountMode = "secondary"
	CountBoth      CountMode = "both"
	CountNone      CountMode = "none"
)

// ParseCountMode validates a string flag value.
func ParseCountMode(s string) (CountMode, error) {
	switch CountMode(s) {
	case CountPrimary, CountSecondary, CountBoth, CountNone:
		return CountMode(s), nil
	}
	return "", fmt.Errorf("invalid group-count mode %q: must be primary, secondary, both, or none", s)
}

// Primary reports whether primary groups get count columns.
func (m CountMode) Primary() bool { return m == CountPrimary || m == CountBoth }

// Secondary reports whether secondary groups get count columns.
func (m CountMode) Secondary() bool { return m == CountSecondary || m == CountBoth }

// Layout selects the shape of the flattened output table.
type Layout string

const (
	// LayoutDoc emits one row per retained document with per-group
	// indicator/count columns and joined context strings.
	LayoutDoc Layout = "doc"

	// LayoutMatch emits one row per individual pattern match.
	LayoutMatch Layout = "match"
)

// ParseLayout validates a string flag value.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutDoc, LayoutMatch:
		return Layout(s), nil
	}
	return "", fmt.Errorf("invalid layout %q: must be doc or match", s)
}

// ReadMode selects the shard collection strategy: streamed row batches
// (bounded memory) or a full eager read per shard (fewer decode passes).
type ReadMode string

const (
	ReadStream ReadMode = "stream"
	ReadEager  ReadMode = "eager"
)

// ParseReadMode validates a string flag value.
func ParseReadMode(s string) (ReadMode, error) {
	switch ReadMode(s) {
	case ReadStream, ReadEager:
		return ReadMode(s), nil
	}
	return "", fmt.Errorf("invalid read mode %q: must be stream or eager", s)
}

// ScanConfig holds settings for the scan stage.
type ScanConfig struct {
	// ParquetPattern is the glob matching the input shard files.
	ParquetPattern string `json:"parquet_pattern" yaml:"parquet_pattern"`

	// SearchColumns are the document columns primary patterns are
	// matched against.
	SearchColumns []string `json:"search_columns" yaml:"search_columns"`

	// SecondarySearchColumns are the columns for the secondary query.
	// Empty means "same as SearchColumns".
	SecondarySearchColumns []string `json:"secondary_search_columns,omitempty" yaml:"secondary_search_columns,omitempty"`

	// ExtractMatches selects which stages produce context windows.
	ExtractMatches ExtractMode `json:"extract_matches" yaml:"extract_matches"`

	// AddGroupCounts selects which stages produce per-group count columns.
	AddGroupCounts CountMode `json:"add_group_counts" yaml:"add_group_counts"`

	// MinQueriesPerMatch drops documents matched by fewer than this
	// many distinct primary concept groups. Must be >= 1.
	MinQueriesPerMatch int `json:"min_queries_per_match" yaml:"min_queries_per_match"`

	// SecondaryFilter makes the secondary predicate drop non-matching
	// rows. Without it the secondary query only annotates.
	SecondaryFilter bool `json:"secondary_filter" yaml:"secondary_filter"`

	// CaseSensitive disables the default case-insensitive matching for
	// JSON-mode queries. Simple-mode patterns are always matched
	// case-insensitively.
	CaseSensitive bool `json:"case_sensitive" yaml:"case_sensitive"`

	// ContextWidth is the number of characters captured on each side
	// of a match (default 100).
	ContextWidth int `json:"context_width" yaml:"context_width"`

	// Layout selects the flattened output shape.
	Layout Layout `json:"layout" yaml:"layout"`

	// ReadMode selects the shard collection strategy.
	ReadMode ReadMode `json:"read_mode" yaml:"read_mode"`

	// BatchSize is the row-batch size for streamed reads (default 4096).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Workers caps the shard worker pool. Zero means one per CPU.
	Workers int `json:"workers" yaml:"workers"`

	// OutputDir receives results.parquet, results.csv, and manifest.yaml.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// StorePath, when set, also writes results into a SQLite store for
	// post-hoc review.
	StorePath string `json:"store_path,omitempty" yaml:"store_path,omitempty"`
}

// DefaultContextWidth is the context window half-width in characters.
const DefaultContextWidth = 100

// DownloadConfig holds settings for the bulk download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutputDir is the base directory; each subset gets a subdirectory
	// under OutputDir/pmc_oa/.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxConnections caps concurrent archive downloads (default 5).
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
}

// ConvertConfig holds settings for the archive conversion stage.
type ConvertConfig struct {
	// ArchiveDir is the directory holding downloaded .tar.gz archives.
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir"`

	// ParquetDir receives one parquet shard per archive.
	ParquetDir string `json:"parquet_dir" yaml:"parquet_dir"`

	// Workers caps concurrent archive conversions. Zero means one per CPU.
	Workers int `json:"workers" yaml:"workers"`
}
