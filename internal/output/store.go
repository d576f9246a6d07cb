// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dovmed/dovmed/internal/scan"
	"github.com/dovmed/dovmed/pkg/types"
)

const defaultMaxResults = 20

// Store persists scan results in a SQLite database with a full-text
// index over the match contexts, so hits can be reviewed interactively
// without re-scanning the corpus.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the results database at path. It creates
// the schema if it does not exist.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS docs (
			pmc_id TEXT PRIMARY KEY,
			title TEXT,
			journal TEXT,
			publication_date TEXT,
			doi TEXT,
			matched_groups INTEGER,
			total_matches INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			pmc_id TEXT NOT NULL REFERENCES docs(pmc_id),
			group_name TEXT NOT NULL,
			pattern TEXT NOT NULL,
			column_name TEXT NOT NULL,
			start_offset INTEGER,
			end_offset INTEGER,
			context TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_pmc_id ON matches(pmc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_group ON matches(group_name)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='matches_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE matches_fts USING fts5(context, content=matches, content_rowid=rowid)`,
			`CREATE TRIGGER matches_ai AFTER INSERT ON matches BEGIN
				INSERT INTO matches_fts(rowid, context) VALUES (new.rowid, new.context);
			END`,
			`CREATE TRIGGER matches_ad AFTER DELETE ON matches BEGIN
				INSERT INTO matches_fts(matches_fts, rowid, context) VALUES('delete', old.rowid, old.context);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure (binary must be built with -tags sqlite_fts5): %w", err)
			}
		}
	}

	return nil
}

// SaveResult writes the retained documents and their matches. A
// document already present from an earlier run is replaced together
// with its matches, so repeated scans stay idempotent.
func (s *Store) SaveResult(ctx context.Context, res *scan.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO docs (pmc_id, title, journal, publication_date, doi, matched_groups, total_matches)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pmc_id) DO UPDATE SET
			title=excluded.title, journal=excluded.journal,
			publication_date=excluded.publication_date, doi=excluded.doi,
			matched_groups=excluded.matched_groups, total_matches=excluded.total_matches`)
	if err != nil {
		return fmt.Errorf("preparing doc insert: %w", err)
	}
	defer docStmt.Close()

	matchStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (pmc_id, group_name, pattern, column_name, start_offset, end_offset, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing match insert: %w", err)
	}
	defer matchStmt.Close()

	for _, dr := range res.Docs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM matches WHERE pmc_id = ?`, dr.Doc.PMCID); err != nil {
			return fmt.Errorf("deleting old matches for %s: %w", dr.Doc.PMCID, err)
		}

		_, err := docStmt.ExecContext(ctx,
			dr.Doc.PMCID, dr.Doc.Title, dr.Doc.Journal,
			dr.Doc.PublicationDate, dr.Doc.DOI,
			dr.DistinctGroups, dr.TotalMatches,
		)
		if err != nil {
			return fmt.Errorf("upserting doc %s: %w", dr.Doc.PMCID, err)
		}

		for _, m := range dr.Matches {
			_, err := matchStmt.ExecContext(ctx,
				m.PMCID, m.Group, m.Pattern, m.Column, m.Start, m.End, m.Context,
			)
			if err != nil {
				return fmt.Errorf("inserting match for %s: %w", m.PMCID, err)
			}
		}
	}

	return tx.Commit()
}

// SearchOptions holds parameters for reviewing stored matches.
type SearchOptions struct {
	// Query is the FTS5 full-text search string over match contexts.
	Query string

	// Group filters by concept group name.
	Group string

	// PMCID filters by document.
	PMCID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the search has no terms or filters.
func (o SearchOptions) IsEmpty() bool {
	return o.Query == "" && o.Group == "" && o.PMCID == ""
}

// SearchHit is a stored match with its document metadata.
type SearchHit struct {
	types.MatchRecord `yaml:",inline"`
	Title             string `yaml:"title" json:"title"`
	Journal           string `yaml:"journal" json:"journal"`
}

// Search queries the stored matches with optional full-text search
// over contexts and structured filters. Full-text hits are ranked by
// relevance; filter-only queries sort by document and position.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]SearchHit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT m.pmc_id, m.group_name, m.pattern, m.column_name,
				m.start_offset, m.end_offset, m.context,
				d.title, d.journal
			FROM matches_fts
			JOIN matches m ON m.rowid = matches_fts.rowid
			LEFT JOIN docs d ON m.pmc_id = d.pmc_id
			WHERE matches_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT m.pmc_id, m.group_name, m.pattern, m.column_name,
				m.start_offset, m.end_offset, m.context,
				d.title, d.journal
			FROM matches m
			LEFT JOIN docs d ON m.pmc_id = d.pmc_id
			WHERE 1=1`)
	}

	if opts.Group != "" {
		qb.WriteString(` AND m.group_name = ?`)
		args = append(args, opts.Group)
	}
	if opts.PMCID != "" {
		qb.WriteString(` AND m.pmc_id = ?`)
		args = append(args, opts.PMCID)
	}

	if useFTS {
		qb.WriteString(` ORDER BY matches_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY m.pmc_id, m.column_name, m.start_offset`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying store: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			h       SearchHit
			title   sql.NullString
			journal sql.NullString
		)
		if err := rows.Scan(
			&h.PMCID, &h.Group, &h.Pattern, &h.Column,
			&h.Start, &h.End, &h.Context,
			&title, &journal,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Title = title.String
		h.Journal = journal.String
		hits = append(hits, h)
	}

	return hits, rows.Err()
}
