package harmonizer

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/availability"
	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

func writeMod(t *testing.T, root, name string, info map[string]any, scripts map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	for script, code := range scripts {
		if err := os.WriteFile(filepath.Join(dir, script), []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// contestedModSet builds a mods directory where base defines recipe r
// using iron only, and two mods rewrite its ingredients differently.
func contestedModSet(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeMod(t, root, "base", map[string]any{"name": "base", "version": "2.0.0"}, map[string]string{
		"data.lua": `
data:extend({
	{
		type = "recipe",
		name = "r",
		category = "smelting",
		ingredients = {{type = "item", name = "iron", amount = 1}},
		results = {{type = "item", name = "r", amount = 1}},
	},
	{
		type = "recipe",
		name = "cable",
		ingredients = {{type = "item", name = "iron", amount = 1}},
		results = {{type = "item", name = "cable", amount = 2}},
	},
	{type = "item", name = "iron", stack_size = 50},
	{type = "item", name = "wood", stack_size = 50},
	{type = "item", name = "steel", stack_size = 50},
})
`,
	})
	writeMod(t, root, "mod-a", map[string]any{
		"name": "mod-a", "version": "1.0.0", "dependencies": []string{"base"},
	}, map[string]string{
		"data-updates.lua": `
data.raw.recipe["r"].ingredients = {
	{type = "item", name = "iron", amount = 1},
	{type = "item", name = "wood", amount = 2},
}
`,
	})
	writeMod(t, root, "mod-b", map[string]any{
		"name": "mod-b", "version": "1.0.0", "dependencies": []string{"base"},
	}, map[string]string{
		"data-updates.lua": `
data.raw.recipe["r"].ingredients = {
	{type = "item", name = "iron", amount = 1},
	{type = "item", name = "steel", amount = 1},
}
`,
	})
	return root
}

func newTestHarmonizer(cfg Config) *Harmonizer {
	h := New(cfg, log.New(io.Discard))
	h.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return h
}

func TestEndToEndContestedRecipe(t *testing.T) {
	cfg := Config{ModsPath: contestedModSet(t), WideThreshold: 0.75}
	h := newTestHarmonizer(cfg)
	ctx := context.Background()

	if err := h.Ingest(ctx); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got := len(h.Manifests()); got != 3 {
		t.Fatalf("manifests = %d, want 3", got)
	}
	if h.Manifests()[0].Name != "base" {
		t.Fatalf("load order starts with %q, want base", h.Manifests()[0].Name)
	}

	key := prototype.NewKey("recipe", "r")
	var conflicted bool
	for _, c := range h.Store().Conflicts() {
		if c.Key == key {
			conflicted = true
		}
	}
	if !conflicted {
		t.Fatalf("recipe.r missing from Conflicts()")
	}

	report, err := h.Analyze(ctx)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	wantPackages := []string{"base", "mod-a", "mod-b"}
	if !reflect.DeepEqual(report.AnalyzedPackages, wantPackages) {
		t.Errorf("AnalyzedPackages = %v, want %v", report.AnalyzedPackages, wantPackages)
	}

	var recipeConflicts []conflict.Issue
	for _, issue := range report.Issues {
		if strings.HasPrefix(issue.ID, conflict.PrefixRecipeConflict) {
			recipeConflicts = append(recipeConflicts, issue)
		}
	}
	if len(recipeConflicts) == 0 {
		t.Fatalf("no recipe-conflict issues emitted")
	}
	if got, want := recipeConflicts[0].Packages, []string{"mod-a", "mod-b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("contributing packages = %v, want %v", got, want)
	}

	var forR []patch.Suggestion
	for _, p := range report.Patches {
		if p.PatchID == "patch/recipe.r" {
			forR = append(forR, p)
		}
	}
	if len(forR) != 1 {
		t.Fatalf("patches for recipe.r = %d, want exactly 1", len(forR))
	}
	if forR[0].Kind != patch.KindRecipeVariant {
		t.Errorf("patch kind = %q, want %q", forR[0].Kind, patch.KindRecipeVariant)
	}
	variants, ok := forR[0].Overrides["variants"].([]patch.RecipeVariant)
	if !ok {
		t.Fatalf("overrides variants missing: %#v", forR[0].Overrides)
	}
	if len(variants) != 2 {
		t.Fatalf("variants = %d, want 2 (one per package)", len(variants))
	}
	byPkg := make(map[string][]prototype.Ingredient)
	for _, v := range variants {
		byPkg[v.Package] = v.Ingredients
	}
	wantA := []prototype.Ingredient{
		{Type: "item", Name: "iron", Amount: 1},
		{Type: "item", Name: "wood", Amount: 2},
	}
	wantB := []prototype.Ingredient{
		{Type: "item", Name: "iron", Amount: 1},
		{Type: "item", Name: "steel", Amount: 1},
	}
	if !reflect.DeepEqual(byPkg["mod-a"], wantA) {
		t.Errorf("mod-a variant ingredients = %v, want %v", byPkg["mod-a"], wantA)
	}
	if !reflect.DeepEqual(byPkg["mod-b"], wantB) {
		t.Errorf("mod-b variant ingredients = %v, want %v", byPkg["mod-b"], wantB)
	}
	if !strings.Contains(forR[0].Artifact, `"r-mod-a"`) || !strings.Contains(forR[0].Artifact, `"r-mod-b"`) {
		t.Errorf("artifact missing variant names:\n%s", forR[0].Artifact)
	}
}

func TestAnalyzeBeforeIngest(t *testing.T) {
	h := newTestHarmonizer(Config{ModsPath: t.TempDir()})
	if _, err := h.Analyze(context.Background()); err == nil {
		t.Fatal("Analyze() before Ingest() should error")
	}
}

func TestIngestEmptyDirectory(t *testing.T) {
	h := newTestHarmonizer(Config{ModsPath: t.TempDir()})
	if err := h.Ingest(context.Background()); err == nil {
		t.Fatal("Ingest() on empty directory should error")
	}
}

func TestIngestCanceledContext(t *testing.T) {
	h := newTestHarmonizer(Config{ModsPath: contestedModSet(t)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Ingest(ctx); err == nil {
		t.Fatal("Ingest() with canceled context should error")
	}
}

func TestReportJSONShape(t *testing.T) {
	cfg := Config{ModsPath: contestedModSet(t), WideThreshold: 0.75}
	h := newTestHarmonizer(cfg)
	ctx := context.Background()
	if err := h.Ingest(ctx); err != nil {
		t.Fatal(err)
	}
	report, err := h.Analyze(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	for _, field := range []string{
		"analyzed_packages", "analysis_timestamp", "summary",
		"issues", "dependency_graph", "patches",
	} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("report JSON missing %q", field)
		}
	}
	if ts := decoded["analysis_timestamp"]; ts != "2026-03-14T09:26:53Z" {
		t.Errorf("analysis_timestamp = %v", ts)
	}
	graph, ok := decoded["dependency_graph"].(map[string]any)
	if !ok {
		t.Fatalf("dependency_graph is %T", decoded["dependency_graph"])
	}
	// recipe.r's last write is a field modify, so only the untouched
	// recipe keeps a graph entry.
	if _, ok := graph["recipe.cable"]; !ok {
		t.Errorf("dependency_graph missing recipe.cable key, has %d entries", len(graph))
	}
	if _, ok := graph["recipe.r"]; ok {
		t.Error("recipe.r should drop out of the graph after field rewrites")
	}

	parsed, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}
	if !reflect.DeepEqual(parsed.AnalyzedPackages, report.AnalyzedPackages) {
		t.Errorf("round trip packages = %v", parsed.AnalyzedPackages)
	}
	if parsed.Summary != report.Summary {
		t.Errorf("round trip summary = %+v, want %+v", parsed.Summary, report.Summary)
	}
	if len(parsed.Issues) != len(report.Issues) {
		t.Errorf("round trip issues = %d, want %d", len(parsed.Issues), len(report.Issues))
	}
}

func TestContextsFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contexts.json")
	table := map[string][]string{"moon": {"regolith"}}
	raw, _ := json.Marshal(table)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	contexts, err := LoadContexts(path)
	if err != nil {
		t.Fatalf("LoadContexts() error = %v", err)
	}
	if len(contexts) != 1 || contexts[0].ID != "moon" {
		t.Fatalf("contexts = %+v", contexts)
	}
	if !contexts[0].HasResource("regolith") {
		t.Error("moon should have regolith")
	}
}

func TestLoadContextsMissingFile(t *testing.T) {
	if _, err := LoadContexts(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("LoadContexts() on missing file should error")
	}
}

func TestMergeContexts(t *testing.T) {
	configured := DefaultContexts()
	derived := []availability.Context{
		availability.NewContext("nauvis", "wood", "holmium-ore"),
		availability.NewContext("maraxsis", "water", "salt"),
	}

	merged := mergeContexts(configured, derived)

	byID := make(map[string]int)
	for i, c := range merged {
		byID[c.ID] = i
	}
	nauvis := merged[byID["nauvis"]]
	if !nauvis.HasResource("iron-ore") || !nauvis.HasResource("holmium-ore") {
		t.Errorf("nauvis resources not merged: %v", nauvis.Resources)
	}
	if _, ok := byID["maraxsis"]; !ok {
		t.Error("derived context maraxsis missing after merge")
	}
	for i := 1; i < len(merged); i++ {
		if merged[i-1].ID >= merged[i].ID {
			t.Fatalf("merged contexts not sorted: %q before %q", merged[i-1].ID, merged[i].ID)
		}
	}
}
