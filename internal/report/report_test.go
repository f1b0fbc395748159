package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/harmonizer"
	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

func sampleReport() *harmonizer.Report {
	return &harmonizer.Report{
		AnalyzedPackages:  []string{"base", "mod-a", "mod-b"},
		AnalysisTimestamp: "2026-03-14T09:26:53Z",
		Summary: conflict.Summary{
			Total: 4, Conflicted: 2, Critical: 1, High: 1,
		},
		Issues: []conflict.Issue{
			{
				ID:             conflict.PrefixRecipeConflict + "recipe.gear",
				Severity:       conflict.SeverityHigh,
				Title:          "Recipe gear rewritten by 2 packages",
				Description:    "Two packages disagree on ingredients.",
				AffectedKeys:   []prototype.Key{prototype.NewKey("recipe", "gear")},
				Packages:       []string{"mod-a", "mod-b"},
				RootCause:      "Both packages overwrite the ingredients field.",
				SuggestedFixes: []string{"Apply generated variants."},
			},
			{
				ID:           conflict.PrefixBrokenChain + "technology.smelting",
				Severity:     conflict.SeverityCritical,
				Title:        "Technology smelting has undefined prerequisites",
				Description:  "Prerequisite steel-age is not defined by any package.",
				AffectedKeys: []prototype.Key{prototype.NewKey("technology", "smelting")},
				Packages:     []string{"mod-a"},
				RootCause:    "Prerequisite missing from the combined set.",
			},
			{
				ID:           conflict.PrefixGeneric + "item.plate",
				Severity:     conflict.SeverityMedium,
				Title:        "Item plate modified by 2 packages",
				AffectedKeys: []prototype.Key{prototype.NewKey("item", "plate")},
				Packages:     []string{"mod-a", "mod-b"},
				RootCause:    "Multiple packages touch the same item.",
			},
		},
		Patches: []patch.Suggestion{
			{
				PatchID:       "patch/recipe.gear",
				TargetPackage: patch.DefaultTargetPackage,
				TargetFile:    patch.DefaultTargetFile,
				Fixes:         []string{conflict.PrefixRecipeConflict + "recipe.gear"},
				Kind:          patch.KindRecipeVariant,
				Description:   "Keeps both versions craftable.",
				Artifact:      "data:extend({})",
				Overrides: map[string]any{"variants": []patch.RecipeVariant{
					{Name: "gear-mod-a", Package: "mod-a"},
					{Name: "gear-mod-b", Package: "mod-b"},
				}},
				EstimatedImpact: conflict.SeverityHigh,
			},
		},
	}
}

func TestRenderSections(t *testing.T) {
	out := Render(sampleReport())

	for _, want := range []string{
		"CONFLICT ANALYSIS REPORT",
		"Analyzed Packages: base, mod-a, mod-b",
		"Conflicted Prototypes: 2",
		"RECIPE CONFLICTS",
		"RESEARCH CONFLICTS",
		"OTHER CONFLICTS",
		"Recipe gear rewritten by 2 packages",
		"mod-a -> mod-b",
		"GENERATED PATCHES",
		"patch/recipe.gear",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderAvailabilityDetail(t *testing.T) {
	r := sampleReport()
	gear := prototype.NewKey("recipe", "gear")
	r.Result = &conflict.Result{
		Analyses: map[prototype.Key]*conflict.Analysis{
			gear: {
				Key:                 gear,
				AvailableContexts:   []string{"nauvis"},
				UnavailableContexts: []string{"lignumis", "vulcanus"},
			},
		},
	}
	out := Render(r)
	if !strings.Contains(out, "recipe.gear unavailable on: lignumis, vulcanus") {
		t.Errorf("report missing unavailability detail:\n%s", out)
	}
	if !strings.Contains(out, "nauvis") {
		t.Error("report missing availability detail")
	}
}

func TestRenderNoIssues(t *testing.T) {
	r := &harmonizer.Report{
		AnalyzedPackages:  []string{"base"},
		AnalysisTimestamp: "2026-03-14T09:26:53Z",
	}
	out := Render(r)
	if !strings.Contains(out, "No conflicts detected.") {
		t.Errorf("clean report should say so:\n%s", out)
	}
	if strings.Contains(out, "RECIPE CONFLICTS") {
		t.Error("clean report should omit issue sections")
	}
}

func TestRenderSeverityOrder(t *testing.T) {
	r := sampleReport()
	out := Render(r)
	critical := strings.Index(out, "Technology smelting has undefined prerequisites")
	if critical < 0 {
		t.Fatal("critical issue missing")
	}
	// Research section with the critical issue is still rendered after
	// the recipe section; within a section the worst grade leads.
	recipe := strings.Index(out, "RECIPE CONFLICTS")
	research := strings.Index(out, "RESEARCH CONFLICTS")
	if recipe < 0 || research < 0 || recipe > research {
		t.Fatalf("section order wrong: recipe at %d, research at %d", recipe, research)
	}
}

func TestWritePatchFiles(t *testing.T) {
	dir := t.TempDir()
	created, err := WritePatchFiles(dir, sampleReport().Patches)
	if err != nil {
		t.Fatalf("WritePatchFiles() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %v, want info.json and one script", created)
	}

	infoRaw, err := os.ReadFile(filepath.Join(dir, patch.DefaultTargetPackage, "info.json"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest map[string]any
	if err := json.Unmarshal(infoRaw, &manifest); err != nil {
		t.Fatalf("info.json invalid: %v", err)
	}
	if manifest["name"] != patch.DefaultTargetPackage {
		t.Errorf("manifest name = %v", manifest["name"])
	}
	deps, ok := manifest["dependencies"].([]any)
	if !ok || len(deps) != 3 {
		t.Fatalf("dependencies = %v, want base plus two optional", manifest["dependencies"])
	}
	if deps[0] != "base >= 2.0" || deps[1] != "? mod-a" || deps[2] != "? mod-b" {
		t.Errorf("dependencies = %v", deps)
	}

	script, err := os.ReadFile(filepath.Join(dir, patch.DefaultTargetPackage, patch.DefaultTargetFile))
	if err != nil {
		t.Fatal(err)
	}
	text := string(script)
	if !strings.Contains(text, "-- Patch: patch/recipe.gear") {
		t.Errorf("script missing patch header:\n%s", text)
	}
	if !strings.Contains(text, "data:extend({})") {
		t.Errorf("script missing artifact:\n%s", text)
	}
}

func TestWritePatchFilesEmpty(t *testing.T) {
	created, err := WritePatchFiles(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("WritePatchFiles() error = %v", err)
	}
	if created != nil {
		t.Errorf("created = %v, want nil", created)
	}
}
