package prototype

// Ingredient is a normalized recipe input. Type is "item" unless the
// source data says otherwise (e.g. "fluid").
type Ingredient struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Result is a normalized recipe output.
type Result struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Effect is a technology effect. Only recipe unlocks carry a recipe
// name; other effect types are kept for reproduction in patches.
type Effect struct {
	Type   string `json:"type"`
	Recipe string `json:"recipe,omitempty"`
}

// Unit is a technology research cost.
type Unit struct {
	Count       int          `json:"count,omitempty"`
	Time        float64      `json:"time,omitempty"`
	Ingredients []Ingredient `json:"ingredients,omitempty"`
}

// Def is a normalized prototype definition. Fields not meaningful for
// a given kind are left zero; the analysis layers only read the fields
// relevant to the kind at hand.
type Def struct {
	Kind           string       `json:"type"`
	Name           string       `json:"name"`
	Icon           string       `json:"icon,omitempty"`
	StackSize      int          `json:"stack_size,omitempty"`
	Category       string       `json:"category,omitempty"`
	FuelCategory   string       `json:"fuel_category,omitempty"`
	EnergyRequired float64      `json:"energy_required,omitempty"`
	Enabled        bool         `json:"enabled"`
	Ingredients    []Ingredient `json:"ingredients,omitempty"`
	Results        []Result     `json:"results,omitempty"`
	Prerequisites  []string     `json:"prerequisites,omitempty"`
	Effects        []Effect     `json:"effects,omitempty"`
	Unit           *Unit        `json:"unit,omitempty"`
	Resources      []string     `json:"resources,omitempty"`
}

// Key returns the canonical key for the definition.
func (d *Def) Key() Key {
	return Key{Kind: d.Kind, Name: d.Name}
}

// Clone returns a deep copy. The ledger stores clones so later mutation
// of a caller-held definition cannot rewrite recorded history.
func (d *Def) Clone() *Def {
	if d == nil {
		return nil
	}
	out := *d
	out.Ingredients = CloneIngredients(d.Ingredients)
	out.Results = CloneResults(d.Results)
	out.Prerequisites = cloneStrings(d.Prerequisites)
	out.Resources = cloneStrings(d.Resources)
	if d.Effects != nil {
		out.Effects = make([]Effect, len(d.Effects))
		copy(out.Effects, d.Effects)
	}
	if d.Unit != nil {
		u := *d.Unit
		u.Ingredients = CloneIngredients(d.Unit.Ingredients)
		out.Unit = &u
	}
	return &out
}

// CloneIngredients copies an ingredient list, preserving nil.
func CloneIngredients(in []Ingredient) []Ingredient {
	if in == nil {
		return nil
	}
	out := make([]Ingredient, len(in))
	copy(out, in)
	return out
}

// CloneResults copies a result list, preserving nil.
func CloneResults(in []Result) []Result {
	if in == nil {
		return nil
	}
	out := make([]Result, len(in))
	copy(out, in)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
