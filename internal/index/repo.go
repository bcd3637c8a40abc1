package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/serendip/internal/parser"
)

// UpsertPage replaces the indexed form of the file at path within a transaction.
func (db *DB) UpsertPage(ctx context.Context, path, checksum string, p *parser.Page) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var pageID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO pages (uuid, path, name, original_name, journal, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			uuid          = excluded.uuid,
			name          = excluded.name,
			original_name = excluded.original_name,
			journal       = excluded.journal,
			checksum      = excluded.checksum,
			updated_at    = excluded.updated_at
		RETURNING id
	`, p.UUID, path, p.Name, p.OriginalName, p.Journal, checksum, time.Now()).Scan(&pageID)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("index: clear blocks: %w", err)
	}

	for i, b := range p.Blocks {
		id, err := claimBlockUUID(ctx, tx, pageID, path, i, b.UUID)
		if err != nil {
			return err
		}
		var blockID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO blocks (uuid, page_id, position, content, pre_block)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`, id, pageID, i, b.Content, b.PreBlock).Scan(&blockID)
		if err != nil {
			return fmt.Errorf("index: insert block: %w", err)
		}

		for _, name := range b.Refs {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO refs (block_id, name) VALUES (?, ?)`, blockID, name); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
		for k, v := range b.Properties {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO properties (block_id, key, value) VALUES (?, ?, ?)`, blockID, k, v); err != nil {
				return fmt.Errorf("index: insert property: %w", err)
			}
		}
	}

	return tx.Commit()
}

// claimBlockUUID returns the uuid block i of pageID is stored under. An id::
// already owned by another page stays with that page; the duplicate gets the
// derived id it would have had without one.
func claimBlockUUID(ctx context.Context, tx *sql.Tx, pageID int64, path string, i int, id string) (string, error) {
	var owner int64
	err := tx.QueryRowContext(ctx, `SELECT page_id FROM blocks WHERE uuid = ?`, id).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return id, nil
	case err != nil:
		return "", fmt.Errorf("index: block owner: %w", err)
	case owner == pageID:
		return id, nil
	}
	slog.Warn("index: duplicate block id, keeping the first page",
		slog.String("uuid", id),
		slog.String("path", path))
	return parser.DerivedUUID(path, i), nil
}

// DeletePage removes a file's page and, by cascade, its blocks.
func (db *DB) DeletePage(ctx context.Context, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM pages WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete page: %w", err)
	}
	return nil
}

// AllChecksums returns path → checksum for every indexed file.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Stats returns the number of indexed pages and blocks.
func (db *DB) Stats(ctx context.Context) (pages, blocks int, err error) {
	err = db.conn.QueryRowContext(ctx, `SELECT (SELECT count(*) FROM pages), (SELECT count(*) FROM blocks)`).Scan(&pages, &blocks)
	if err != nil {
		return 0, 0, fmt.Errorf("index: stats: %w", err)
	}
	return pages, blocks, nil
}
