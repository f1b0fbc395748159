package conflict

import (
	"github.com/eysenfalk/factorio-harmonizer/internal/depgraph"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Issue ID prefixes, one per detection pass. Issue IDs are
// "<prefix><kind>.<name>", so a prototype flagged by several passes
// yields several distinct issues.
const (
	PrefixEssentialRecipe = "essential-recipe/"
	PrefixAvailability    = "availability/"
	PrefixMissingDep      = "missing-dep/"
	PrefixBrokenChain     = "broken-chain/"
	PrefixRecipeConflict  = "recipe-conflict/"
	PrefixRecipeVariant   = "recipe-variant/"
	PrefixGeneric         = "generic/"
)

// Issue is one detected problem.
type Issue struct {
	ID             string          `json:"issue_id"`
	Severity       Severity        `json:"severity"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	AffectedKeys   []prototype.Key `json:"affected_keys"`
	Packages       []string        `json:"contributing_packages"`
	RootCause      string          `json:"root_cause"`
	SuggestedFixes []string        `json:"suggested_fixes,omitempty"`
	FieldPath      string          `json:"field_path,omitempty"`
	Evidence       map[string]any  `json:"evidence,omitempty"`
}

// Analysis is the per-prototype view assembled before issue passes
// run: who touched it, what it depends on, and where it is reachable.
type Analysis struct {
	Key                 prototype.Key         `json:"key"`
	ModificationCount   int                   `json:"modification_count"`
	Packages            []string              `json:"packages"`
	Conflicted          bool                  `json:"conflicted"`
	Dependencies        []depgraph.Dependency `json:"dependencies,omitempty"`
	MissingDependencies []depgraph.Dependency `json:"missing_dependencies,omitempty"`
	AvailableContexts   []string              `json:"available_contexts,omitempty"`
	UnavailableContexts []string              `json:"unavailable_contexts,omitempty"`
	Issues              []Issue               `json:"issues,omitempty"`
}

// Summary counts analyses and issues by grade.
type Summary struct {
	Total      int `json:"total"`
	Conflicted int `json:"conflicted"`
	Critical   int `json:"critical"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}

// Result is the full detection output.
type Result struct {
	Analyses map[prototype.Key]*Analysis
	Issues   []Issue
	Summary  Summary
}
