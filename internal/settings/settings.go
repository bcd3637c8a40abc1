// Package settings holds the user-facing selection settings and their file store.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Random modes.
const (
	ModePage        = "page"
	ModeCard        = "card"
	ModeTags        = "tags"
	ModeNamespace   = "namespace"
	ModeSimpleQuery = "simple-query"
	ModeQuery       = "query"
)

// Modes lists every selectable mode in display order.
var Modes = []string{ModePage, ModeCard, ModeTags, ModeNamespace, ModeSimpleQuery, ModeQuery}

// StepSizes lists the allowed random walk step sizes.
var StepSizes = []int{1, 3, 5, 7, 10}

// StepSize is the number of notes opened per trigger: one in the main view,
// the rest in the side panel. It decodes from YAML ints and numeric strings.
type StepSize int

// UnmarshalYAML accepts both 3 and "3".
func (s *StepSize) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 1
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("randomStepSize: %q is not a number", node.Value)
	}
	*s = StepSize(n)
	return nil
}

// Settings is read fresh on every trigger.
type Settings struct {
	Keyboard        string   `yaml:"keyboard" json:"keyboard"`
	RandomMode      string   `yaml:"randomMode" json:"randomMode"`
	IncludeJournals bool     `yaml:"includeJournals" json:"includeJournals"`
	RandomTags      string   `yaml:"randomTags" json:"randomTags"`
	AdvancedQuery   string   `yaml:"advancedQuery" json:"advancedQuery"`
	SimpleQuery     string   `yaml:"simpleQuery" json:"simpleQuery"`
	Namespace       string   `yaml:"namespace" json:"namespace"`
	RandomStepSize  StepSize `yaml:"randomStepSize" json:"randomStepSize"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		Keyboard:       "r n",
		RandomMode:     ModePage,
		RandomStepSize: 1,
	}
}

// Steps returns the step size, treating unset or non-positive values as 1.
// Any positive value is honoured, not only StepSizes.
func (s Settings) Steps() int {
	if s.RandomStepSize < 1 {
		return 1
	}
	return int(s.RandomStepSize)
}

// validateChanges checks the enumerated fields that differ from prev. An
// empty mode is allowed and selects the default query. Values already in the
// file are left alone, so a hand-edited file keeps loading.
func (s *Settings) validateChanges(prev Settings) error {
	var rules []*validation.FieldRules
	if s.RandomMode != prev.RandomMode {
		rules = append(rules, validation.Field(&s.RandomMode, validation.In(modeValues()...)))
	}
	if s.RandomStepSize != prev.RandomStepSize {
		rules = append(rules, validation.Field(&s.RandomStepSize, validation.In(stepValues()...)))
	}
	return validation.ValidateStruct(s, rules...)
}

func modeValues() []interface{} {
	out := make([]interface{}, len(Modes))
	for i, m := range Modes {
		out[i] = m
	}
	return out
}

func stepValues() []interface{} {
	out := make([]interface{}, len(StepSizes))
	for i, n := range StepSizes {
		out[i] = StepSize(n)
	}
	return out
}

// ValidMode reports whether mode is one of Modes.
func ValidMode(mode string) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}
