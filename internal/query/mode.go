// Package query turns a random mode into a graph query expression.
package query

import (
	"strings"

	"github.com/starford/serendip/internal/settings"
)

// Mode is one of the selection modes, carrying only the parameters it needs.
// The set is closed: PageMode, CardMode, TagsMode, NamespaceMode,
// SimpleQueryMode, AdvancedQueryMode and DefaultMode.
type Mode interface {
	// Name returns the settings value that selects the mode.
	Name() string
	mode()
}

// PageMode selects whole pages.
type PageMode struct {
	IncludeJournals bool
}

// CardMode selects blocks tagged #card.
type CardMode struct{}

// TagsMode selects blocks referencing any of Tags.
type TagsMode struct {
	Tags []string
}

// NamespaceMode selects the pages under Namespace.
type NamespaceMode struct {
	Namespace string
}

// SimpleQueryMode runs a user-written simple query.
type SimpleQueryMode struct {
	Query string
}

// AdvancedQueryMode runs a user-written datalog query.
type AdvancedQueryMode struct {
	Query string
}

// DefaultMode is used when the configured mode is unset or unknown.
type DefaultMode struct {
	Requested string
}

func (PageMode) Name() string          { return settings.ModePage }
func (CardMode) Name() string          { return settings.ModeCard }
func (TagsMode) Name() string          { return settings.ModeTags }
func (NamespaceMode) Name() string     { return settings.ModeNamespace }
func (SimpleQueryMode) Name() string   { return settings.ModeSimpleQuery }
func (AdvancedQueryMode) Name() string { return settings.ModeQuery }
func (DefaultMode) Name() string       { return "default" }

func (PageMode) mode()          {}
func (CardMode) mode()          {}
func (TagsMode) mode()          {}
func (NamespaceMode) mode()     {}
func (SimpleQueryMode) mode()   {}
func (AdvancedQueryMode) mode() {}
func (DefaultMode) mode()       {}

// FromSettings picks the mode named by s.RandomMode and copies its parameters.
func FromSettings(s settings.Settings) Mode {
	switch s.RandomMode {
	case settings.ModePage:
		return PageMode{IncludeJournals: s.IncludeJournals}
	case settings.ModeCard:
		return CardMode{}
	case settings.ModeTags:
		return TagsMode{Tags: SplitTags(s.RandomTags)}
	case settings.ModeNamespace:
		return NamespaceMode{Namespace: s.Namespace}
	case settings.ModeSimpleQuery:
		return SimpleQueryMode{Query: s.SimpleQuery}
	case settings.ModeQuery:
		return AdvancedQueryMode{Query: s.AdvancedQuery}
	default:
		return DefaultMode{Requested: s.RandomMode}
	}
}

// SplitTags splits a comma separated tag list, trimming blanks and dropping
// empty entries. Order is preserved.
func SplitTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
