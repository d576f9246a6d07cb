// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// SchemaError reports a search column missing from an input shard. It
// is raised before any row is scanned.
type SchemaError struct {
	Column string
	Shard  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("search column %q not present in shard %s", e.Column, e.Shard)
}

// preflight opens every shard's footer and verifies the identifier
// column and all requested search columns exist. Footer reads touch
// only file metadata, so this stays cheap even for large collections.
func preflight(shards []string, columns []string) error {
	for _, shard := range shards {
		if err := checkShard(shard, columns); err != nil {
			return err
		}
	}
	return nil
}

func checkShard(shard string, columns []string) error {
	f, err := os.Open(shard)
	if err != nil {
		return fmt.Errorf("opening shard: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading shard %s: %w", shard, err)
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return fmt.Errorf("reading parquet footer of %s: %w", shard, err)
	}

	schema := pf.Schema()
	for _, col := range columns {
		if _, ok := schema.Lookup(col); !ok {
			return &SchemaError{Column: col, Shard: shard}
		}
	}
	return nil
}
