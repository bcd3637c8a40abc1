package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/testutil"
)

func source(blocks map[string]string) *testutil.FakeSource {
	src := testutil.NewFakeSource()
	for id, content := range blocks {
		src.AddBlock(&models.Block{UUID: id, Content: content})
	}
	return src
}

func TestResolve_NoReference(t *testing.T) {
	tests := []struct {
		name, content, want string
	}{
		{"plain", "just text", "just text"},
		{"property lines cut", "title line\nid:: 123\ncollapsed:: true", "title line"},
		{"first line property kept", "tags:: a\nbody", "tags:: a\nbody"},
		{"multi line body", "line one\nline two\nkey:: v", "line one\nline two"},
		{"unclosed marker", "see ((abc", "see ((abc"},
		{"close before open", "a )) b ((", "a )) b (("},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(source(map[string]string{"b": tt.content}))
			got, err := r.Resolve(context.Background(), "b")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_Splice(t *testing.T) {
	r := New(source(map[string]string{
		"parent":  "((childId)) rest",
		"childId": "childText",
	}))
	got, err := r.Resolve(context.Background(), "parent")
	if err != nil {
		t.Fatal(err)
	}
	if got != "childText rest" {
		t.Errorf("Resolve = %q, want %q", got, "childText rest")
	}
}

func TestResolve_Nested(t *testing.T) {
	r := New(source(map[string]string{
		"a": "((b)) from a\nid:: a",
		"b": "((c)) from b",
		"c": "leaf\nid:: c",
	}))
	got, err := r.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if want := "leaf from b from a"; got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolve_OnlyFirstReference(t *testing.T) {
	r := New(source(map[string]string{
		"p": "((x)) and ((y))",
		"x": "X",
		"y": "Y",
	}))
	got, _ := r.Resolve(context.Background(), "p")
	if got != "X and ((y))" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_MissingChildIsEmpty(t *testing.T) {
	r := New(source(map[string]string{"p": "((gone)) tail"}))
	got, err := r.Resolve(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if got != " tail" {
		t.Errorf("Resolve = %q, want %q", got, " tail")
	}
}

func TestResolve_MissingRoot(t *testing.T) {
	r := New(source(nil))
	_, err := r.Resolve(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	r := New(source(map[string]string{
		"self": "((self)) again",
		"a":    "((b)) A",
		"b":    "((a)) B",
	}))
	if got, _ := r.Resolve(context.Background(), "self"); got != " again" {
		t.Errorf("self cycle = %q", got)
	}
	if got, _ := r.Resolve(context.Background(), "a"); got != " B A" {
		t.Errorf("two-block cycle = %q", got)
	}
}

func TestResolve_DepthBounded(t *testing.T) {
	blocks := make(map[string]string)
	for i := 0; i < 50; i++ {
		blocks[fmt.Sprintf("b%d", i)] = fmt.Sprintf("((b%d))%d", i+1, i)
	}
	blocks["b50"] = "end"
	src := source(blocks)

	r := New(src, WithMaxDepth(3))
	got, err := r.Resolve(context.Background(), "b0")
	if err != nil {
		t.Fatal(err)
	}
	if got != "3210" {
		t.Errorf("Resolve = %q, want %q", got, "3210")
	}
	if n := len(src.CallLog()); n != 4 {
		t.Errorf("GetBlock calls = %d, want 4", n)
	}
}

func TestResolve_FetchesProportionalToDepth(t *testing.T) {
	src := source(map[string]string{
		"a": "((b))1",
		"b": "((c))2",
		"c": "3",
	})
	got, _ := New(src).Resolve(context.Background(), "a")
	if got != "321" {
		t.Errorf("Resolve = %q", got)
	}
	if n := len(src.CallLog()); n != 3 {
		t.Errorf("GetBlock calls = %d, want 3", n)
	}
}
