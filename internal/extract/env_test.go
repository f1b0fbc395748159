package extract

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

func newEnv(t *testing.T) (*Environment, *history.Store) {
	t.Helper()
	store := history.NewStore(log.New(io.Discard))
	env, err := New(store, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env, store
}

func TestDataExtendRecordsAdditions(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("base", "base/data.lua")
	err := env.Execute(`
data:extend({
  {
    type = "recipe",
    name = "iron-gear-wheel",
    category = "crafting",
    energy_required = 0.5,
    ingredients = {
      { type = "item", name = "iron-plate", amount = 2 },
    },
    results = {
      { type = "item", name = "iron-gear-wheel", amount = 1 },
    },
  },
  {
    type = "item",
    name = "iron-gear-wheel",
    stack_size = 100,
    icon = "gear.png",
  },
})
`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("ledger has %d entries, want 2", store.Len())
	}

	h, ok := store.HistoryFor("recipe", "iron-gear-wheel")
	if !ok {
		t.Fatal("missing recipe history")
	}
	def, ok := h.CurrentDef()
	if !ok {
		t.Fatal("current value is not a definition")
	}
	if def.Category != "crafting" || def.EnergyRequired != 0.5 {
		t.Errorf("def = %+v", def)
	}
	if len(def.Ingredients) != 1 || def.Ingredients[0].Name != "iron-plate" || def.Ingredients[0].Amount != 2 {
		t.Errorf("ingredients = %v", def.Ingredients)
	}
	if len(def.Results) != 1 || def.Results[0].Name != "iron-gear-wheel" {
		t.Errorf("results = %v", def.Results)
	}

	item, _ := store.HistoryFor("item", "iron-gear-wheel")
	idef, _ := item.CurrentDef()
	if idef.StackSize != 100 || idef.Icon != "gear.png" {
		t.Errorf("item def = %+v", idef)
	}
}

func TestDataExtendDotCall(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("mod-a", "mod-a/data.lua")
	err := env.Execute(`data.extend({ { type = "item", name = "widget" } })`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := store.HistoryFor("item", "widget"); !ok {
		t.Error("dot-call extend should record the definition")
	}
}

func TestLegacyPairIngredients(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("mod-a", "mod-a/data.lua")
	err := env.Execute(`
data:extend({
  {
    type = "recipe",
    name = "wooden-chest",
    ingredients = { { "wood", 4 }, { "stone" } },
    result = "wooden-chest",
  },
})
`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h, _ := store.HistoryFor("recipe", "wooden-chest")
	def, _ := h.CurrentDef()
	want := []prototype.Ingredient{
		{Type: "item", Name: "wood", Amount: 4},
		{Type: "item", Name: "stone", Amount: 1},
	}
	if len(def.Ingredients) != 2 || def.Ingredients[0] != want[0] || def.Ingredients[1] != want[1] {
		t.Errorf("ingredients = %v, want %v", def.Ingredients, want)
	}
	if len(def.Results) != 1 || def.Results[0].Name != "wooden-chest" || def.Results[0].Amount != 1 {
		t.Errorf("legacy result = %v", def.Results)
	}
}

func TestProxyFieldAssignment(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("base", "base/data.lua")
	if err := env.Execute(`
data:extend({
  {
    type = "recipe",
    name = "burner-inserter",
    ingredients = { { type = "item", name = "iron-plate", amount = 1 } },
  },
})
`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.BeginContext("mod-a", "mod-a/data.lua")
	if err := env.Execute(`
data.raw.recipe["burner-inserter"].ingredients = {
  { type = "item", name = "wood", amount = 4 },
}
`); err != nil {
		t.Fatalf("modify: %v", err)
	}

	h, _ := store.HistoryFor("recipe", "burner-inserter")
	recs := h.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	mod := recs[1]
	if mod.Operation != history.OperationModify || mod.FieldPath != "ingredients" || mod.Package != "mod-a" {
		t.Errorf("record = %+v", mod)
	}
	oldIngs, ok := mod.OldValue.([]prototype.Ingredient)
	if !ok || len(oldIngs) != 1 || oldIngs[0].Name != "iron-plate" {
		t.Errorf("old value = %v", mod.OldValue)
	}
	newIngs, ok := mod.NewValue.([]prototype.Ingredient)
	if !ok || len(newIngs) != 1 || newIngs[0].Name != "wood" || newIngs[0].Amount != 4 {
		t.Errorf("new value = %v", mod.NewValue)
	}
}

func TestProxyFieldRead(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("base", "base/data.lua")
	if err := env.Execute(`
data:extend({
  {
    type = "recipe",
    name = "r",
    ingredients = { { type = "item", name = "iron-plate", amount = 3 } },
  },
})
`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.BeginContext("mod-a", "mod-a/data.lua")
	// Scripts read current state and build on it.
	if err := env.Execute(`
local ings = data.raw.recipe["r"].ingredients
ings[#ings + 1] = { type = "item", name = "wood", amount = ings[1].amount }
data.raw.recipe["r"].ingredients = ings
`); err != nil {
		t.Fatalf("read-modify-write: %v", err)
	}

	h, _ := store.HistoryFor("recipe", "r")
	got, ok := h.Current().([]prototype.Ingredient)
	if !ok || len(got) != 2 {
		t.Fatalf("current = %v", h.Current())
	}
	if got[1].Name != "wood" || got[1].Amount != 3 {
		t.Errorf("appended ingredient = %+v", got[1])
	}
}

func TestExistenceCheck(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("base", "base/data.lua")
	if err := env.Execute(`data:extend({ { type = "recipe", name = "exists" } })`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.BeginContext("mod-a", "mod-a/data.lua")
	if err := env.Execute(`
if data.raw.recipe["missing"] then
  data.raw.recipe["exists"].category = "wrong"
end
if data.raw.recipe["exists"] then
  data.raw.recipe["exists"].category = "smelting"
end
`); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	h, _ := store.HistoryFor("recipe", "exists")
	recs := h.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want seed plus one modify", len(recs))
	}
	if recs[1].NewValue != "smelting" {
		t.Errorf("category = %v", recs[1].NewValue)
	}
}

func TestWholeObjectAssignment(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("mod-a", "mod-a/data.lua")
	if err := env.Execute(`
data.raw.item["gadget"] = { stack_size = 50 }
`); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h, ok := store.HistoryFor("item", "gadget")
	if !ok {
		t.Fatal("assignment should record a definition")
	}
	def, _ := h.CurrentDef()
	if def.Kind != "item" || def.Name != "gadget" || def.StackSize != 50 {
		t.Errorf("def = %+v", def)
	}
}

func TestScriptErrorKeepsEarlierRecords(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("mod-a", "mod-a/data.lua")
	err := env.Execute(`
data:extend({ { type = "item", name = "kept" } })
error("boom")
`)
	if err == nil {
		t.Fatal("expected script error")
	}
	if _, ok := store.HistoryFor("item", "kept"); !ok {
		t.Error("records before the failure should survive")
	}
}

func TestMalformedDefinitionsDropped(t *testing.T) {
	env, store := newEnv(t)
	store.BeginContext("mod-a", "mod-a/data.lua")
	err := env.Execute(`
data:extend({
  { type = "item" },
  { name = "no-type" },
  "not a table",
  { type = "item", name = "good" },
})
`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("ledger has %d entries, want only the well-formed one", store.Len())
	}
}
