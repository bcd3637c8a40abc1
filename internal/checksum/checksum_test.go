package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSumKnownValue(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestFileMatchesSum(t *testing.T) {
	data := []byte("- first block\n- second [[page]]\n")
	p := filepath.Join(t.TempDir(), "page.md")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := File(p)
	if err != nil {
		t.Fatal(err)
	}
	if want := Sum(data); got != want {
		t.Errorf("File = %s, Sum = %s", got, want)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope.md")); !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
