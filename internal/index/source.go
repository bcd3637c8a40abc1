package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/graph"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/query"
)

var _ graph.Source = (*DB)(nil)

var (
	simpleRefRe      = regexp.MustCompile(`^#?\[\[([^\[\]]+)\]\]$`)
	simpleTagRe      = regexp.MustCompile(`^#([^\s#\[\]]+)$`)
	simplePropertyRe = regexp.MustCompile(`^\((page-property|property)\s+:?([A-Za-z0-9_\-]+)\s+"?([^"]*?)"?\s*\)$`)
)

const pageColumns = `p.id, p.uuid, p.name, p.original_name, p.journal`
const blockColumns = `b.id, b.uuid, b.content, b.page_id, b.pre_block`

// ExecuteQuery evaluates builder-made queries through their Plan. Raw datalog
// needs the Logseq host and is rejected.
func (db *DB) ExecuteQuery(ctx context.Context, q *query.Query) ([]any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", apperr.ErrExecution)
	}
	switch q.Plan.Kind {
	case query.PlanPages:
		return db.pagesWithBlocks(ctx, q.Plan.IncludeJournals)
	case query.PlanTaggedBlocks:
		return db.blocksReferencing(ctx, q.Plan.Tags)
	default:
		return nil, fmt.Errorf("%w: the local graph cannot evaluate datalog; use the logseq source", apperr.ErrExecution)
	}
}

// ExecuteSimpleQuery supports [[page]], #tag, (property :k "v") and
// (page-property :k "v").
func (db *DB) ExecuteSimpleQuery(ctx context.Context, q *query.Query) ([]any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", apperr.ErrExecution)
	}
	text := strings.TrimSpace(q.Text)
	if m := simpleRefRe.FindStringSubmatch(text); m != nil {
		return db.blocksReferencing(ctx, []string{strings.ToLower(strings.TrimSpace(m[1]))})
	}
	if m := simpleTagRe.FindStringSubmatch(text); m != nil {
		return db.blocksReferencing(ctx, []string{strings.ToLower(m[1])})
	}
	if m := simplePropertyRe.FindStringSubmatch(text); m != nil {
		key, value := strings.ToLower(m[2]), strings.TrimSpace(m[3])
		if m[1] == "page-property" {
			return db.pagesWithProperty(ctx, key, value)
		}
		return db.blocksWithProperty(ctx, key, value)
	}
	return nil, fmt.Errorf("%w: unsupported simple query %q", apperr.ErrExecution, text)
}

// LookupNamespace returns the pages whose name lies under namespace.
func (db *DB) LookupNamespace(ctx context.Context, namespace string) ([]any, error) {
	ns := strings.ToLower(strings.Trim(strings.TrimSpace(namespace), "/"))
	if ns == "" {
		return nil, nil
	}
	prefix := ns + "/"
	return db.pages(ctx, `SELECT `+pageColumns+` FROM pages p
		WHERE substr(p.name, 1, length(?)) = ?
		ORDER BY p.name`, prefix, prefix)
}

// GetBlock fetches a block by uuid or numeric id.
func (db *DB) GetBlock(ctx context.Context, id string) (*models.Block, error) {
	id = strings.TrimSpace(id)
	where, arg := `b.uuid = ?`, any(strings.ToLower(id))
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		where, arg = `b.id = ?`, n
	}
	row := db.conn.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks b WHERE `+where, arg)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get block: %w", err)
	}
	return b, nil
}

// GetPage fetches a page by id.
func (db *DB) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages p WHERE p.id = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get page: %w", err)
	}
	return p, nil
}

func (db *DB) pagesWithBlocks(ctx context.Context, includeJournals bool) ([]any, error) {
	q := `SELECT ` + pageColumns + ` FROM pages p
		WHERE EXISTS (SELECT 1 FROM blocks b WHERE b.page_id = p.id)`
	if !includeJournals {
		q += ` AND p.journal = 0`
	}
	return db.pages(ctx, q+` ORDER BY p.id`)
}

func (db *DB) blocksReferencing(ctx context.Context, names []string) ([]any, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	return db.blocks(ctx, `SELECT DISTINCT `+blockColumns+` FROM blocks b
		JOIN refs r ON r.block_id = b.id
		WHERE r.name IN (`+marks+`)
		ORDER BY b.id`, args...)
}

func (db *DB) blocksWithProperty(ctx context.Context, key, value string) ([]any, error) {
	return db.blocks(ctx, `SELECT `+blockColumns+` FROM blocks b
		JOIN properties pr ON pr.block_id = b.id
		WHERE pr.key = ? AND lower(pr.value) IN (lower(?), lower('[[' || ? || ']]'))
		ORDER BY b.id`, key, value, value)
}

func (db *DB) pagesWithProperty(ctx context.Context, key, value string) ([]any, error) {
	return db.pages(ctx, `SELECT `+pageColumns+` FROM pages p
		JOIN blocks b ON b.page_id = p.id AND b.pre_block = 1
		JOIN properties pr ON pr.block_id = b.id
		WHERE pr.key = ? AND lower(pr.value) IN (lower(?), lower('[[' || ? || ']]'))
		ORDER BY p.id`, key, value, value)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*models.Page, error) {
	var p models.Page
	if err := s.Scan(&p.ID, &p.UUID, &p.Name, &p.OriginalName, &p.Journal); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanBlock(s scanner) (*models.Block, error) {
	var b models.Block
	if err := s.Scan(&b.ID, &b.UUID, &b.Content, &b.PageID, &b.PreBlock); err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) pages(ctx context.Context, q string, args ...any) ([]any, error) {
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query pages: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) blocks(ctx context.Context, q string, args ...any) ([]any, error) {
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query blocks: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
