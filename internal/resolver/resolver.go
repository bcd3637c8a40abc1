// Package resolver turns a block into readable text by splicing in the
// content of the block it embeds with a ((uuid)) reference.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/serendip/internal/graph"
)

// DefaultMaxDepth bounds nested embeds.
const DefaultMaxDepth = 16

const (
	refOpen  = "(("
	refClose = "))"
)

// propertyLineRe matches the first property line after the block's first line.
var propertyLineRe = regexp.MustCompile(`\n.*::`)

// Resolver resolves block references against a graph.BlockGetter.
type Resolver struct {
	blocks   graph.BlockGetter
	maxDepth int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets how many nested embeds are followed. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// New returns a Resolver reading blocks from blocks.
func New(blocks graph.BlockGetter, opts ...Option) *Resolver {
	r := &Resolver{blocks: blocks, maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the display text of block id. The error wraps
// apperr.ErrNotFound when id itself does not resolve; references inside the
// content that are missing, cyclic, or nested too deep resolve to "".
func (r *Resolver) Resolve(ctx context.Context, id string) (string, error) {
	return r.resolve(ctx, id, 0, make(map[string]struct{}))
}

func (r *Resolver) resolve(ctx context.Context, id string, depth int, visited map[string]struct{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := r.blocks.GetBlock(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", id, err)
	}
	visited[strings.ToLower(id)] = struct{}{}
	visited[strings.ToLower(b.UUID)] = struct{}{}

	text := StripProperties(b.Content)
	childID, rest, ok := firstRef(text)
	if !ok {
		return text, nil
	}

	var child string
	key := strings.ToLower(childID)
	if _, seen := visited[key]; !seen && depth < r.maxDepth {
		child, err = r.resolve(ctx, childID, depth+1, visited)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			child = ""
		}
	}
	return child + rest, nil
}

// StripProperties cuts content at its first property line.
func StripProperties(content string) string {
	if loc := propertyLineRe.FindStringIndex(content); loc != nil {
		return content[:loc[0]]
	}
	return content
}

// firstRef finds the first "((" and the first "))" after it. It returns the
// trimmed id between them and the text following the close marker.
func firstRef(text string) (id, rest string, ok bool) {
	open := strings.Index(text, refOpen)
	if open < 0 {
		return "", "", false
	}
	start := open + len(refOpen)
	end := strings.Index(text[start:], refClose)
	if end < 0 {
		return "", "", false
	}
	return strings.TrimSpace(text[start : start+end]), text[start+end+len(refClose):], true
}
