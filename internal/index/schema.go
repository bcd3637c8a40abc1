package index

import (
	"context"

	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/parser"
)

// GraphIndex is the write side of the index used by Sync and Watch.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type GraphIndex interface {
	graph.Source
	UpsertPage(ctx context.Context, path, checksum string, p *parser.Page) error
	DeletePage(ctx context.Context, path string) error
	AllChecksums(ctx context.Context) (map[string]string, error)
	Close() error
}

// Verify *DB satisfies GraphIndex at compile time.
var _ GraphIndex = (*DB)(nil)
