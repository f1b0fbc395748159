package extract

import (
	"fmt"
	"strings"

	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// NormalizeDef converts a raw definition table into the typed shape.
// Both the modern ingredient form {type=,name=,amount=} and the legacy
// pair form {"name", amount} are accepted; downstream code only ever
// sees the typed shape.
func NormalizeDef(m map[string]any) (*prototype.Def, error) {
	kind, _ := m["type"].(string)
	name, _ := m["name"].(string)
	if strings.TrimSpace(kind) == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("definition missing type or name: type=%q name=%q", kind, name)
	}
	def := &prototype.Def{
		Kind:    kind,
		Name:    name,
		Enabled: true,
	}
	if icon, ok := m["icon"].(string); ok {
		def.Icon = icon
	}
	if v, ok := toInt(m["stack_size"]); ok {
		def.StackSize = v
	}
	if cat, ok := m["category"].(string); ok {
		def.Category = cat
	}
	if fc, ok := m["fuel_category"].(string); ok {
		def.FuelCategory = fc
	}
	if v, ok := toFloat(m["energy_required"]); ok {
		def.EnergyRequired = v
	}
	if enabled, ok := m["enabled"].(bool); ok {
		def.Enabled = enabled
	}
	def.Ingredients = NormalizeIngredients(m["ingredients"])
	def.Results = NormalizeResults(m["results"], m["result"])
	def.Prerequisites = toStringSlice(m["prerequisites"])
	def.Effects = NormalizeEffects(m["effects"])
	def.Unit = NormalizeUnit(m["unit"])
	def.Resources = toStringSlice(m["resources"])
	return def, nil
}

// NormalizeField converts a raw field assignment value into the typed
// shape the ledger stores for that field.
func NormalizeField(field string, v any) any {
	switch field {
	case "ingredients":
		return NormalizeIngredients(v)
	case "results":
		return NormalizeResults(v, nil)
	case "prerequisites", "resources":
		return toStringSlice(v)
	case "effects":
		return NormalizeEffects(v)
	case "unit":
		return NormalizeUnit(v)
	case "energy_required":
		if f, ok := toFloat(v); ok {
			return f
		}
		return v
	case "stack_size", "amount":
		if n, ok := toInt(v); ok {
			return n
		}
		return v
	default:
		return v
	}
}

// NormalizeIngredients accepts an array of maps or legacy pairs.
func NormalizeIngredients(v any) []prototype.Ingredient {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []prototype.Ingredient
	for _, raw := range arr {
		if ing, ok := normalizeStack(raw); ok {
			out = append(out, ing)
		}
	}
	return out
}

// NormalizeResults accepts the results array plus the legacy singular
// result field, which wins only when no array is present.
func NormalizeResults(v any, single any) []prototype.Result {
	if arr, ok := v.([]any); ok {
		var out []prototype.Result
		for _, raw := range arr {
			if ing, ok := normalizeStack(raw); ok {
				out = append(out, prototype.Result(ing))
			}
		}
		if out != nil {
			return out
		}
	}
	if name, ok := single.(string); ok && name != "" {
		return []prototype.Result{{Type: "item", Name: name, Amount: 1}}
	}
	return nil
}

func normalizeStack(raw any) (prototype.Ingredient, bool) {
	switch t := raw.(type) {
	case map[string]any:
		name, _ := t["name"].(string)
		if name == "" {
			return prototype.Ingredient{}, false
		}
		typ, _ := t["type"].(string)
		if typ == "" {
			typ = "item"
		}
		amount, ok := toInt(t["amount"])
		if !ok {
			amount = 1
		}
		return prototype.Ingredient{Type: typ, Name: name, Amount: amount}, true
	case []any:
		// Legacy pair form: {"iron-plate", 2}.
		if len(t) == 0 {
			return prototype.Ingredient{}, false
		}
		name, ok := t[0].(string)
		if !ok || name == "" {
			return prototype.Ingredient{}, false
		}
		amount := 1
		if len(t) > 1 {
			if n, ok := toInt(t[1]); ok {
				amount = n
			}
		}
		return prototype.Ingredient{Type: "item", Name: name, Amount: amount}, true
	default:
		return prototype.Ingredient{}, false
	}
}

// NormalizeEffects converts technology effect tables.
func NormalizeEffects(v any) []prototype.Effect {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []prototype.Effect
	for _, raw := range arr {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		if typ == "" {
			continue
		}
		recipe, _ := m["recipe"].(string)
		out = append(out, prototype.Effect{Type: typ, Recipe: recipe})
	}
	return out
}

// NormalizeUnit converts a technology cost table.
func NormalizeUnit(v any) *prototype.Unit {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	u := &prototype.Unit{}
	if n, ok := toInt(m["count"]); ok {
		u.Count = n
	}
	if f, ok := toFloat(m["time"]); ok {
		u.Time = f
	}
	u.Ingredients = NormalizeIngredients(m["ingredients"])
	return u
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// fieldValue reads a named field from a typed definition for a proxy
// field access.
func fieldValue(def *prototype.Def, field string) any {
	switch field {
	case "type":
		return def.Kind
	case "name":
		return def.Name
	case "icon":
		return def.Icon
	case "stack_size":
		return def.StackSize
	case "category":
		return def.Category
	case "fuel_category":
		return def.FuelCategory
	case "energy_required":
		return def.EnergyRequired
	case "enabled":
		return def.Enabled
	case "ingredients":
		return def.Ingredients
	case "results":
		return def.Results
	case "prerequisites":
		return def.Prerequisites
	case "effects":
		return def.Effects
	case "unit":
		return def.Unit
	case "resources":
		return def.Resources
	default:
		return nil
	}
}
