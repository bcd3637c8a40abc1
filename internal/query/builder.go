package query

import (
	"fmt"
	"strings"

	"github.com/starford/serendip/internal/apperr"
)

// Lang is the dialect of a query's Text.
type Lang string

const (
	// Datascript is the host's datalog dialect.
	Datascript Lang = "datascript"
	// Simple is the host's simple query syntax.
	Simple Lang = "simple"
)

// PlanKind names the structured selection a query performs.
type PlanKind int

const (
	// PlanRaw is user-written text; only a host that parses it can run it.
	PlanRaw PlanKind = iota
	// PlanPages selects every page that owns at least one block.
	PlanPages
	// PlanTaggedBlocks selects blocks that reference one of Tags.
	PlanTaggedBlocks
)

// Plan is the structured form of a builder-made query, for hosts that do not
// evaluate datalog text.
type Plan struct {
	Kind            PlanKind
	IncludeJournals bool
	Tags            []string
}

// Query is an expression in the host query language.
type Query struct {
	Text string
	Lang Lang
	Plan Plan
}

const (
	allPagesQuery = `[:find (pull ?p [*])
 :where
 [_ :block/page ?p]]`

	nonJournalPagesQuery = `[:find (pull ?p [*])
 :where
 [_ :block/page ?p]
 [?p :block/journal? false]]`

	taggedBlocksQuery = `[:find (pull ?b [*])
 :where
 [?b :block/refs ?bp]
 [?bp :block/name ?name]
 [(contains? #{%s} ?name)]]`

	cardTag = "card"
)

// Build returns the query for m, or nil for NamespaceMode, which is served by
// a namespace lookup instead. For a TagsMode without tags it returns a query
// that matches nothing together with an error wrapping apperr.ErrConfiguration;
// callers treat that error as a warning.
func Build(m Mode) (*Query, error) {
	switch m := m.(type) {
	case PageMode:
		return pagesQuery(m.IncludeJournals), nil
	case CardMode:
		return taggedQuery([]string{cardTag}), nil
	case TagsMode:
		q := taggedQuery(m.Tags)
		if len(q.Plan.Tags) == 0 {
			return q, fmt.Errorf("%w: random tags are required", apperr.ErrConfiguration)
		}
		return q, nil
	case SimpleQueryMode:
		return &Query{Text: m.Query, Lang: Simple, Plan: Plan{Kind: PlanRaw}}, nil
	case AdvancedQueryMode:
		return &Query{Text: m.Query, Lang: Datascript, Plan: Plan{Kind: PlanRaw}}, nil
	case NamespaceMode:
		return nil, nil
	case DefaultMode:
		return pagesQuery(true), nil
	default:
		return pagesQuery(true), nil
	}
}

func pagesQuery(includeJournals bool) *Query {
	text := nonJournalPagesQuery
	if includeJournals {
		text = allPagesQuery
	}
	return &Query{
		Text: text,
		Lang: Datascript,
		Plan: Plan{Kind: PlanPages, IncludeJournals: includeJournals},
	}
}

func taggedQuery(tags []string) *Query {
	names := make([]string, 0, len(tags))
	quoted := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		names = append(names, t)
		quoted = append(quoted, quote(t))
	}
	return &Query{
		Text: fmt.Sprintf(taggedBlocksQuery, strings.Join(quoted, ",")),
		Lang: Datascript,
		Plan: Plan{Kind: PlanTaggedBlocks, Tags: names},
	}
}

// quote renders s as an EDN string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
