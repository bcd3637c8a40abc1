package index

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/parser"
	"github.com/starford/serendip/internal/query"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "serendip-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// put parses src as the file at path and indexes it.
func put(t *testing.T, db *DB, path, src string) {
	t.Helper()
	if err := indexFile(context.Background(), db, path, []byte(src)); err != nil {
		t.Fatalf("index %s: %v", path, err)
	}
}

// checksumOf returns the stored checksum for path, or "" when it is not indexed.
func checksumOf(t *testing.T, db *DB, path string) string {
	t.Helper()
	all, err := db.AllChecksums(context.Background())
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	return all[path]
}

func pageNames(t *testing.T, rows []any) map[string]bool {
	t.Helper()
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		p, ok := r.(*models.Page)
		if !ok {
			t.Fatalf("row %T is not a page", r)
		}
		out[p.Name] = true
	}
	return out
}

func blockContents(t *testing.T, rows []any) []string {
	t.Helper()
	var out []string
	for _, r := range rows {
		b, ok := r.(*models.Block)
		if !ok {
			t.Fatalf("row %T is not a block", r)
		}
		out = append(out, b.Content)
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"pages", "blocks", "refs", "properties"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertPage_ChecksumAndBlocks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	page, err := parser.Parse("pages/hello.md", []byte("- hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPage(ctx, "pages/hello.md", "abc123", page); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	if cs := checksumOf(t, db, "pages/hello.md"); cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	// Re-upserting replaces blocks rather than appending.
	if err := db.UpsertPage(ctx, "pages/hello.md", "def456", page); err != nil {
		t.Fatalf("UpsertPage again: %v", err)
	}
	pages, blocks, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pages != 1 || blocks != 1 {
		t.Errorf("stats = %d pages, %d blocks, want 1, 1", pages, blocks)
	}
}

func TestDeletePage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	put(t, db, "pages/del.md", "- one\n- two #tag")

	if err := db.DeletePage(ctx, "pages/del.md"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	cs := checksumOf(t, db, "pages/del.md")
	if cs != "" {
		t.Error("expected empty checksum after delete")
	}
	_, blocks, _ := db.Stats(ctx)
	if blocks != 0 {
		t.Errorf("blocks after delete = %d, want 0", blocks)
	}
}

func TestUpsertPage_DuplicateBlockIDKeepsFirstPage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	const id = "00000000-0000-4000-8000-0000000000d1"
	put(t, db, "pages/first.md", "- original\n  id:: "+id)
	put(t, db, "pages/second.md", "- copy\n  id:: "+id)

	b, err := db.GetBlock(ctx, id)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if !strings.HasPrefix(b.Content, "original") {
		t.Errorf("content = %q, want first page's block", b.Content)
	}
	_, blocks, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blocks != 2 {
		t.Errorf("blocks = %d, want 2 (duplicate stored under a derived id)", blocks)
	}

	// Re-indexing the first page and deleting the second leaves the id in place.
	put(t, db, "pages/first.md", "- original edited\n  id:: "+id)
	if err := db.DeletePage(ctx, "pages/second.md"); err != nil {
		t.Fatal(err)
	}
	b, err = db.GetBlock(ctx, id)
	if err != nil {
		t.Fatalf("GetBlock after delete: %v", err)
	}
	if !strings.HasPrefix(b.Content, "original edited") {
		t.Errorf("content = %q", b.Content)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	put(t, db, "pages/a.md", "- a")
	put(t, db, "journals/2024_01_01.md", "- b")

	all, err := db.AllChecksums(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["pages/a.md"] == "" || all["journals/2024_01_01.md"] == "" {
		t.Errorf("AllChecksums = %v", all)
	}
}

func TestExecuteQuery_Pages(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	put(t, db, "pages/alpha.md", "- a")
	put(t, db, "pages/empty.md", "")
	put(t, db, "journals/2024_01_01.md", "- day")

	all, err := db.ExecuteQuery(ctx, &query.Query{Plan: query.Plan{Kind: query.PlanPages, IncludeJournals: true}})
	if err != nil {
		t.Fatal(err)
	}
	got := pageNames(t, all)
	if !got["alpha"] || !got["2024_01_01"] || got["empty"] {
		t.Errorf("pages with journals = %v", got)
	}

	noJournals, err := db.ExecuteQuery(ctx, &query.Query{Plan: query.Plan{Kind: query.PlanPages}})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range noJournals {
		if r.(*models.Page).Journal {
			t.Errorf("journal page %q returned with journals excluded", r.(*models.Page).Name)
		}
	}
}

func TestExecuteQuery_TaggedBlocks(t *testing.T) {
	db := testDB(t)
	put(t, db, "pages/reading.md", "- Dune #book\n- Running [[Sport]]\n- nothing here")

	rows, err := db.ExecuteQuery(context.Background(), &query.Query{
		Plan: query.Plan{Kind: query.PlanTaggedBlocks, Tags: []string{"book", "sport"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := blockContents(t, rows)
	if len(got) != 2 {
		t.Fatalf("tagged blocks = %q, want 2", got)
	}
}

func TestExecuteQuery_RawRejected(t *testing.T) {
	db := testDB(t)
	_, err := db.ExecuteQuery(context.Background(), &query.Query{Text: "[:find ?b]", Plan: query.Plan{Kind: query.PlanRaw}})
	if !errors.Is(err, apperr.ErrExecution) {
		t.Errorf("err = %v, want ErrExecution", err)
	}
}

func TestExecuteSimpleQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	put(t, db, "pages/books.md", "type:: reading\n\n- Dune #book\n- status:: done\n  finished it")
	put(t, db, "pages/other.md", "- see [[Books]]")

	tests := []struct {
		query string
		want  int
	}{
		{"[[books]]", 1},
		{"#book", 1},
		{`(property :status "done")`, 1},
		{`(page-property :type "reading")`, 1},
		{`(property status done)`, 1},
	}
	for _, tt := range tests {
		rows, err := db.ExecuteSimpleQuery(ctx, &query.Query{Text: tt.query, Lang: query.Simple})
		if err != nil {
			t.Errorf("%s: %v", tt.query, err)
			continue
		}
		if len(rows) != tt.want {
			t.Errorf("%s: %d rows, want %d", tt.query, len(rows), tt.want)
		}
	}

	if _, err := db.ExecuteSimpleQuery(ctx, &query.Query{Text: "(and [[a]] [[b]])"}); !errors.Is(err, apperr.ErrExecution) {
		t.Errorf("unsupported query err = %v, want ErrExecution", err)
	}
}

func TestLookupNamespace(t *testing.T) {
	db := testDB(t)
	put(t, db, "pages/projects___alpha.md", "- a")
	put(t, db, "pages/projects___beta___notes.md", "- b")
	put(t, db, "pages/projects.md", "- root")
	put(t, db, "pages/projectsx.md", "- not a child")

	rows, err := db.LookupNamespace(context.Background(), "Projects")
	if err != nil {
		t.Fatal(err)
	}
	got := pageNames(t, rows)
	if len(got) != 2 || !got["projects/alpha"] || !got["projects/beta/notes"] {
		t.Errorf("namespace pages = %v", got)
	}
}

func TestGetBlockAndPage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	put(t, db, "pages/p.md", "- target\n  id:: 6650f0a1-0000-4000-8000-000000000001")

	b, err := db.GetBlock(ctx, "6650F0A1-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("GetBlock by uuid: %v", err)
	}
	byID, err := db.GetBlock(ctx, "1")
	if err != nil || byID.UUID != b.UUID {
		t.Fatalf("GetBlock by id = %+v, %v", byID, err)
	}

	p, err := db.GetPage(ctx, b.PageID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if p.Name != "p" {
		t.Errorf("page name = %q", p.Name)
	}

	if _, err := db.GetBlock(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing block err = %v, want ErrNotFound", err)
	}
	if _, err := db.GetPage(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing page err = %v, want ErrNotFound", err)
	}
}
