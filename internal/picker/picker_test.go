package picker

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/starford/serendip/internal/apperr"
)

func TestPick_Empty(t *testing.T) {
	_, err := Pick(New(), []string(nil))
	if !errors.Is(err, apperr.ErrEmptyResult) {
		t.Errorf("err = %v, want ErrEmptyResult", err)
	}
}

func TestPick_Membership(t *testing.T) {
	p := NewSeeded(1, 2)
	for n := 1; n <= 20; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i * 7
		}
		for range 200 {
			got, err := Pick(p, items)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Contains(items, got) {
				t.Fatalf("Pick returned %d, not in %v", got, items)
			}
		}
	}
}

func TestPick_CoversAllIndexes(t *testing.T) {
	p := NewSeeded(42, 7)
	items := []string{"a", "b", "c", "d"}
	seen := make(map[string]int)
	for range 4000 {
		got, _ := Pick(p, items)
		seen[got]++
	}
	for _, it := range items {
		// Expect ~1000 each; anything under 800 means the draw is skewed.
		if seen[it] < 800 {
			t.Errorf("%q picked %d times out of 4000", it, seen[it])
		}
	}
}

func TestPick_Seeded(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	a, b := NewSeeded(9, 9), NewSeeded(9, 9)
	for range 50 {
		x, _ := Pick(a, items)
		y, _ := Pick(b, items)
		if x != y {
			t.Fatal("equal seeds produced different picks")
		}
	}
}

func TestPicker_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				if i := p.Index(3); i < 0 || i >= 3 {
					t.Errorf("Index out of range: %d", i)
				}
			}
		}()
	}
	wg.Wait()
}
