package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempGraph(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempGraph(t)
	content := []byte("- Hello\n- World\n")
	if err := s.Write("pages/note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("pages/note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingWrapsNotExist(t *testing.T) {
	s := tempGraph(t)
	_, err := s.Read("nope.md")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestListSkipsLogseqAndHiddenDirs(t *testing.T) {
	s := tempGraph(t)
	_ = s.Write("pages/a.md", []byte("- a"))
	_ = s.Write("journals/2024_01_02.md", []byte("- b"))
	_ = s.Write("logseq/bak/pages/a.md", []byte("- old"))
	_ = s.Write(".recycle/x.md", []byte("- gone"))
	_ = s.Write("pages/readme.txt", []byte("not md"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
}

func TestSkipped(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		".":             false,
		"pages":         false,
		"logseq":        true,
		"logseq/bak":    true,
		".git":          true,
		"pages/.hidden": true,
		"journals/2024": false,
	}
	for in, want := range cases {
		if got := Skipped(in); got != want {
			t.Errorf("Skipped(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempGraph(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempGraph(t)
	_ = s.Write("settings.yaml", []byte("randomMode: page\n"))
	if err := s.Write("settings.yaml", []byte("randomMode: tags\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("settings.yaml")
	if string(got) != "randomMode: tags\n" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".serendip-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/serendip-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "serendip-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
