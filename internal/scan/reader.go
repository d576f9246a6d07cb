// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/dovmed/dovmed/pkg/types"
)

// readEager materializes a whole shard before filtering. Costs memory
// proportional to the shard but decodes in one pass.
func readEager(path string, fn func([]types.Document) error) error {
	docs, err := parquet.ReadFile[types.Document](path)
	if err != nil {
		return fmt.Errorf("reading shard %s: %w", path, err)
	}
	return fn(docs)
}

// readStream pipes fixed-size row batches through fn so memory stays
// bounded regardless of shard size.
func readStream(path string, batchSize int, fn func([]types.Document) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening shard: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[types.Document](f)
	defer r.Close()

	buf := make([]types.Document, batchSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading shard %s: %w", path, err)
		}
	}
}
