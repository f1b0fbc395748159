// Package depgraph derives a dependency graph from ledger state.
// Edges point from a prototype to the prototypes or categories it
// needs: recipe ingredients and crafting categories, technology
// prerequisites, and item fuel categories.
package depgraph

import (
	"encoding/json"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Kind classifies a dependency edge.
type Kind string

const (
	KindIngredient       Kind = "ingredient"
	KindResult           Kind = "result"
	KindTechPrerequisite Kind = "tech_prerequisite"
	KindTechUnlock       Kind = "tech_unlock"
	KindCraftingCategory Kind = "crafting_category"
	KindFuelCategory     Kind = "fuel_category"
	KindResourceCategory Kind = "resource_category"
)

// BuiltinTargetKinds are edge target kinds that name engine-provided
// categories rather than prototypes. Their targets are never expected
// to appear in the ledger.
var BuiltinTargetKinds = []string{"recipe-category", "fuel-category"}

// Dependency is one edge. Source and Target are omitted from the
// serialized form; the graph nests edges under their source key.
type Dependency struct {
	Source   prototype.Key
	Target   prototype.Key
	Kind     Kind
	Required bool
	Amount   int
}

type dependencyJSON struct {
	TargetKind string `json:"target_kind"`
	TargetName string `json:"target_name"`
	Kind       Kind   `json:"dependency_kind"`
	Required   bool   `json:"required"`
	Amount     int    `json:"amount,omitempty"`
}

// MarshalJSON serializes the edge without its source, which is implied
// by its position in the graph map.
func (d Dependency) MarshalJSON() ([]byte, error) {
	return json.Marshal(dependencyJSON{
		TargetKind: d.Target.Kind,
		TargetName: d.Target.Name,
		Kind:       d.Kind,
		Required:   d.Required,
		Amount:     d.Amount,
	})
}

// UnmarshalJSON restores the edge. The source must be filled in by the
// caller from the surrounding map key.
func (d *Dependency) UnmarshalJSON(b []byte) error {
	var j dependencyJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	d.Target = prototype.NewKey(j.TargetKind, j.TargetName)
	d.Kind = j.Kind
	d.Required = j.Required
	d.Amount = j.Amount
	return nil
}

// Graph maps each source prototype to its outgoing edges.
type Graph map[prototype.Key][]Dependency

// Keys returns the graph's source keys sorted by canonical string.
func (g Graph) Keys() []prototype.Key {
	out := make([]prototype.Key, 0, len(g))
	for k := range g {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Dependencies returns the outgoing edges of a key.
func (g Graph) Dependencies(key prototype.Key) []Dependency {
	return g[key]
}

// Edges returns the total edge count.
func (g Graph) Edges() int {
	n := 0
	for _, deps := range g {
		n += len(deps)
	}
	return n
}

// Build extracts a graph from every ledger entry whose current value
// is a typed definition. Entries whose last write was a field modify
// carry a bare field value; those are skipped with a debug log since
// the definition shape is unknown.
func Build(store *history.Store, logger *log.Logger) Graph {
	if logger == nil {
		logger = log.Default()
	}
	g := make(Graph)
	for _, key := range store.Keys() {
		h, ok := store.Lookup(key)
		if !ok {
			continue
		}
		def, ok := h.CurrentDef()
		if !ok {
			logger.Debug("skipping prototype without a usable definition", "key", key.String())
			continue
		}
		var deps []Dependency
		switch key.Kind {
		case "recipe":
			deps = recipeEdges(key, def)
		case "technology":
			deps = technologyEdges(key, def)
		case "item":
			deps = itemEdges(key, def)
		}
		if len(deps) > 0 {
			g[key] = deps
		}
	}
	return g
}

func recipeEdges(key prototype.Key, def *prototype.Def) []Dependency {
	var deps []Dependency
	for _, ing := range def.Ingredients {
		kind := ing.Type
		if kind == "" {
			kind = "item"
		}
		deps = append(deps, Dependency{
			Source:   key,
			Target:   prototype.NewKey(kind, ing.Name),
			Kind:     KindIngredient,
			Required: true,
			Amount:   ing.Amount,
		})
	}
	if def.Category != "" && def.Category != prototype.DefaultCraftingCategory {
		deps = append(deps, Dependency{
			Source:   key,
			Target:   prototype.NewKey("recipe-category", def.Category),
			Kind:     KindCraftingCategory,
			Required: true,
		})
	}
	return deps
}

func technologyEdges(key prototype.Key, def *prototype.Def) []Dependency {
	var deps []Dependency
	for _, pre := range def.Prerequisites {
		deps = append(deps, Dependency{
			Source:   key,
			Target:   prototype.NewKey("technology", pre),
			Kind:     KindTechPrerequisite,
			Required: true,
		})
	}
	return deps
}

func itemEdges(key prototype.Key, def *prototype.Def) []Dependency {
	if def.FuelCategory == "" {
		return nil
	}
	return []Dependency{{
		Source:   key,
		Target:   prototype.NewKey("fuel-category", def.FuelCategory),
		Kind:     KindFuelCategory,
		Required: true,
	}}
}
