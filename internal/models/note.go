// Package models defines the graph entities serendip selects from.
package models

// Page is a top-level named note.
type Page struct {
	ID           int64  `json:"id"`
	UUID         string `json:"uuid,omitempty"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name,omitempty"`
	Journal      bool   `json:"journal"`
}

// Block is a content unit belonging to a page.
type Block struct {
	ID       int64  `json:"id,omitempty"`
	UUID     string `json:"uuid"`
	Content  string `json:"content"`
	PageID   int64  `json:"page_id"`
	PreBlock bool   `json:"pre_block,omitempty"`
}

// Candidate is a normalized query result: exactly one of Page or Block is set.
type Candidate struct {
	Page  *Page  `json:"page,omitempty"`
	Block *Block `json:"block,omitempty"`
}

// PageCandidate wraps p.
func PageCandidate(p *Page) Candidate { return Candidate{Page: p} }

// BlockCandidate wraps b.
func BlockCandidate(b *Block) Candidate { return Candidate{Block: b} }

// IsPage reports whether c is a page.
func (c Candidate) IsPage() bool { return c.Page != nil }

// IsBlock reports whether c is a block.
func (c Candidate) IsBlock() bool { return c.Block != nil && c.Page == nil }

// UUID returns the stable identifier of whichever entity c holds.
func (c Candidate) UUID() string {
	switch {
	case c.Page != nil:
		return c.Page.UUID
	case c.Block != nil:
		return c.Block.UUID
	}
	return ""
}

// Kind returns "page" or "block".
func (c Candidate) Kind() string {
	if c.IsPage() {
		return "page"
	}
	return "block"
}
