// Package patch synthesizes compatibility patch suggestions from
// detected issues: recipe variants that keep every package's version
// craftable, fallback research paths for broken technology chains,
// and cosmetic variants for other contested prototypes.
package patch

import (
	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Kind classifies what a suggestion generates.
type Kind string

const (
	KindRecipeVariant      Kind = "recipe_variant"
	KindTechnologyFallback Kind = "technology_fallback"
	KindGenericVariant     Kind = "generic_variant"
)

// DefaultTargetPackage is the package name generated patches ship
// under.
const DefaultTargetPackage = "harmonizer-compat"

// DefaultTargetFile is the script phase patches are written into. The
// final-fixes phase runs after every other package, so patch content
// wins the load order.
const DefaultTargetFile = "data-final-fixes.lua"

// RecipeVariant is one package's version of a contested recipe,
// reconstructed from that package's ledger records.
type RecipeVariant struct {
	Name           string                 `json:"name"`
	Package        string                 `json:"package"`
	Ingredients    []prototype.Ingredient `json:"ingredients,omitempty"`
	Results        []prototype.Result     `json:"results,omitempty"`
	EnergyRequired float64                `json:"energy_required,omitempty"`
	Category       string                 `json:"category,omitempty"`
}

// ResearchPath is one package's version of a contested or broken
// technology.
type ResearchPath struct {
	Name          string             `json:"name"`
	Package       string             `json:"package,omitempty"`
	Prerequisites []string           `json:"prerequisites,omitempty"`
	Unit          *prototype.Unit    `json:"unit,omitempty"`
	Effects       []prototype.Effect `json:"effects,omitempty"`
}

// GenericVariant is a renamed copy of a contested prototype with
// adjusted cosmetic fields, offered when no structural merge applies.
type GenericVariant struct {
	Name      string `json:"name"`
	Base      string `json:"base"`
	Icon      string `json:"icon,omitempty"`
	StackSize int    `json:"stack_size,omitempty"`
	Category  string `json:"category,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Suggestion is one generated patch.
type Suggestion struct {
	PatchID         string            `json:"patch_id"`
	TargetPackage   string            `json:"target_package"`
	TargetFile      string            `json:"target_file"`
	Fixes           []string          `json:"fixes"`
	Kind            Kind              `json:"kind"`
	Description     string            `json:"description"`
	Artifact        string            `json:"generated_artifact"`
	Overrides       map[string]any    `json:"structured_overrides,omitempty"`
	EstimatedImpact conflict.Severity `json:"estimated_impact"`
}

// Renderer turns structured patch content into artifact text. The
// generator is renderer-agnostic; the Lua renderer lives in a
// subpackage so other output formats stay possible.
type Renderer interface {
	RecipeVariants(key prototype.Key, variants []RecipeVariant) string
	ResearchPaths(key prototype.Key, paths []ResearchPath, fallbacks []ResearchPath) string
	GenericVariants(key prototype.Key, variants []GenericVariant) string
}

// Config tunes generation. Zero values get defaults.
type Config struct {
	TargetPackage string
	TargetFile    string
}

func (c Config) withDefaults() Config {
	if c.TargetPackage == "" {
		c.TargetPackage = DefaultTargetPackage
	}
	if c.TargetFile == "" {
		c.TargetFile = DefaultTargetFile
	}
	return c
}
