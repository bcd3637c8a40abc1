package graph

import (
	"encoding/json"
	"strconv"

	"github.com/starford/serendip/internal/models"
)

// Flatten turns arbitrarily nested result rows into one sequence.
func Flatten(rows []any) []any {
	out := make([]any, 0, len(rows))
	var walk func([]any)
	walk = func(items []any) {
		for _, it := range items {
			switch v := it.(type) {
			case []any:
				walk(v)
			case []map[string]any:
				for _, m := range v {
					out = append(out, m)
				}
			default:
				out = append(out, it)
			}
		}
	}
	walk(rows)
	return out
}

// Normalize converts flattened rows into candidates. Pages and blocks are
// recognised by shape: a row with a name is a page, a row with a page
// reference is a block. Bare strings are taken as page names. Anything else
// is dropped.
func Normalize(rows []any) []models.Candidate {
	out := make([]models.Candidate, 0, len(rows))
	for _, r := range rows {
		if c, ok := candidate(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func candidate(r any) (models.Candidate, bool) {
	switch v := r.(type) {
	case models.Candidate:
		return v, v.Page != nil || v.Block != nil
	case *models.Page:
		return models.PageCandidate(v), v != nil
	case models.Page:
		return models.PageCandidate(&v), true
	case *models.Block:
		return models.BlockCandidate(v), v != nil
	case models.Block:
		return models.BlockCandidate(&v), true
	case string:
		return models.PageCandidate(&models.Page{Name: v}), v != ""
	case map[string]any:
		if p, ok := PageFromMap(v); ok {
			return models.PageCandidate(p), true
		}
		if b, ok := BlockFromMap(v); ok {
			return models.BlockCandidate(b), true
		}
	}
	return models.Candidate{}, false
}

// PageFromMap decodes a host page entity.
func PageFromMap(m map[string]any) (*models.Page, bool) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return nil, false
	}
	return &models.Page{
		ID:           toInt64(m["id"]),
		UUID:         str(m, "uuid"),
		Name:         name,
		OriginalName: str(m, "original-name", "originalName"),
		Journal:      flag(m, "journal?", "journal"),
	}, true
}

// BlockFromMap decodes a host block entity.
func BlockFromMap(m map[string]any) (*models.Block, bool) {
	page, ok := m["page"]
	if !ok || page == nil {
		return nil, false
	}
	var pageID int64
	if pm, ok := page.(map[string]any); ok {
		pageID = toInt64(pm["id"])
	} else {
		pageID = toInt64(page)
	}
	return &models.Block{
		ID:       toInt64(m["id"]),
		UUID:     str(m, "uuid"),
		Content:  str(m, "content"),
		PageID:   pageID,
		PreBlock: flag(m, "pre-block?", "preBlock?", "preBlock"),
	}, true
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func flag(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
