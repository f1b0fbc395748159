package harmonizer

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/eysenfalk/factorio-harmonizer/internal/availability"
)

// DefaultContexts returns the built-in planet resource table, used
// when no contexts file is configured. Planet prototypes found in the
// ledger are merged on top during analysis.
func DefaultContexts() []availability.Context {
	return []availability.Context{
		availability.NewContext("aquilo", "ammonia", "fluorine", "lithium-brine"),
		availability.NewContext("fulgora", "scrap", "heavy-oil", "light-oil"),
		availability.NewContext("gleba", "iron-bacteria", "copper-bacteria", "nutrients", "spoilage"),
		availability.NewContext("lignumis", "wood", "lignumis-wood", "tree-seed"),
		availability.NewContext("nauvis", "iron-ore", "copper-ore", "coal", "stone", "crude-oil", "uranium-ore", "wood"),
		availability.NewContext("vulcanus", "tungsten-ore", "sulfuric-acid", "lava", "calcite"),
	}
}

// LoadContexts reads a JSON file mapping context IDs to resource
// lists and returns the contexts sorted by ID.
func LoadContexts(path string) ([]availability.Context, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contexts file: %w", err)
	}
	var table map[string][]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse contexts file %s: %w", path, err)
	}
	out := make([]availability.Context, 0, len(table))
	for id, resources := range table {
		out = append(out, availability.NewContext(id, resources...))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// mergeContexts unions derived contexts into the configured set.
// Derived resources extend an existing context with the same ID; new
// IDs are appended. The result stays sorted by ID.
func mergeContexts(configured, derived []availability.Context) []availability.Context {
	byID := make(map[string]int, len(configured))
	out := make([]availability.Context, len(configured))
	copy(out, configured)
	for i, c := range out {
		byID[c.ID] = i
	}
	for _, d := range derived {
		i, ok := byID[d.ID]
		if !ok {
			byID[d.ID] = len(out)
			out = append(out, d)
			continue
		}
		merged := out[i].Resources
		for _, r := range d.Resources {
			if !out[i].HasResource(r) {
				merged = append(merged, r)
			}
		}
		out[i] = availability.NewContext(d.ID, merged...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
