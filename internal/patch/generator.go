package patch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Generator synthesizes suggestions from issues by replaying ledger
// records per package.
type Generator struct {
	store    *history.Store
	cfg      Config
	renderer Renderer
	logger   *log.Logger
}

// NewGenerator wires a generator. The renderer must not be nil.
func NewGenerator(store *history.Store, cfg Config, renderer Renderer, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		store:    store,
		cfg:      cfg.withDefaults(),
		renderer: renderer,
		logger:   logger,
	}
}

// Generate produces at most one suggestion per prototype. Issues are
// bucketed by the affected prototype kind, processed recipes first,
// then technologies, then everything else, highest severity first
// within each bucket. Output order is stable for identical input.
func (g *Generator) Generate(issues []conflict.Issue) []Suggestion {
	var recipes, techs, others []conflict.Issue
	for _, issue := range issues {
		if len(issue.AffectedKeys) == 0 {
			continue
		}
		switch issue.AffectedKeys[0].Kind {
		case "recipe":
			recipes = append(recipes, issue)
		case "technology":
			techs = append(techs, issue)
		default:
			others = append(others, issue)
		}
	}
	for _, bucket := range [][]conflict.Issue{recipes, techs, others} {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Severity.Rank() > bucket[j].Severity.Rank()
		})
	}

	var out []Suggestion
	seen := make(map[prototype.Key]struct{})
	emit := func(issue conflict.Issue, build func(conflict.Issue, prototype.Key) *Suggestion) {
		key := issue.AffectedKeys[0]
		if _, done := seen[key]; done {
			return
		}
		s := build(issue, key)
		if s == nil {
			return
		}
		seen[key] = struct{}{}
		out = append(out, *s)
	}
	for _, issue := range recipes {
		emit(issue, g.recipeSuggestion)
	}
	for _, issue := range techs {
		emit(issue, g.technologySuggestion)
	}
	for _, issue := range others {
		emit(issue, g.genericSuggestion)
	}
	g.logger.Info("patch generation complete", "issues", len(issues), "patches", len(out))
	return out
}

func (g *Generator) recipeSuggestion(issue conflict.Issue, key prototype.Key) *Suggestion {
	h, ok := g.store.Lookup(key)
	if !ok {
		return nil
	}
	pkgs := issue.Packages
	if len(pkgs) == 0 {
		pkgs = h.Packages()
	}
	var variants []RecipeVariant
	for _, pkg := range pkgs {
		snap := replayRecipe(h, pkg)
		if !snap.usable() {
			continue
		}
		variants = append(variants, RecipeVariant{
			Name:           key.Name + "-" + sanitize(pkg),
			Package:        pkg,
			Ingredients:    dedupeIngredients(snap.ingredients),
			Results:        dedupeResults(snap.results),
			EnergyRequired: snap.energy,
			Category:       snap.category,
		})
	}
	if len(variants) == 0 {
		g.logger.Debug("no usable recipe data for patch", "key", key.String())
		return nil
	}
	return &Suggestion{
		PatchID:       "patch/" + key.String(),
		TargetPackage: g.cfg.TargetPackage,
		TargetFile:    g.cfg.TargetFile,
		Fixes:         []string{issue.ID},
		Kind:          KindRecipeVariant,
		Description: fmt.Sprintf("Keeps every package's version of recipe %q craftable by adding %d renamed variants.",
			key.Name, len(variants)),
		Artifact:        g.renderer.RecipeVariants(key, variants),
		Overrides:       map[string]any{"variants": variants},
		EstimatedImpact: issue.Severity,
	}
}

// fallbackTiers is the ladder of replacement technologies generated
// for a broken research chain. Each tier gates on progressively more
// of the original prerequisites being present at runtime.
var fallbackTiers = []string{"basic", "advanced", "elite"}

func (g *Generator) technologySuggestion(issue conflict.Issue, key prototype.Key) *Suggestion {
	h, ok := g.store.Lookup(key)
	if !ok {
		return nil
	}
	pkgs := issue.Packages
	if len(pkgs) == 0 {
		pkgs = h.Packages()
	}
	var paths []ResearchPath
	prereqUnion := make(map[string]struct{})
	for _, pkg := range pkgs {
		snap := replayTechnology(h, pkg)
		if len(snap.prerequisites) == 0 && len(snap.effects) == 0 {
			continue
		}
		for _, p := range snap.prerequisites {
			prereqUnion[p] = struct{}{}
		}
		paths = append(paths, ResearchPath{
			Name:          key.Name + "-" + sanitize(pkg),
			Package:       pkg,
			Prerequisites: snap.prerequisites,
			Unit:          snap.unit,
			Effects:       snap.effects,
		})
	}
	if len(paths) == 0 {
		g.logger.Debug("no usable technology data for patch", "key", key.String())
		return nil
	}
	union := make([]string, 0, len(prereqUnion))
	for p := range prereqUnion {
		union = append(union, p)
	}
	sort.Strings(union)

	effects := paths[0].Effects
	unit := paths[0].Unit
	var fallbacks []ResearchPath
	for i, tier := range fallbackTiers {
		var pre []string
		switch {
		case i == 0:
			// Always researchable.
		case i >= len(union):
			pre = union
		default:
			pre = union[:i]
		}
		fallbacks = append(fallbacks, ResearchPath{
			Name:          key.Name + "-fallback-" + tier,
			Prerequisites: pre,
			Unit:          unit,
			Effects:       effects,
		})
	}
	return &Suggestion{
		PatchID:       "patch/" + key.String(),
		TargetPackage: g.cfg.TargetPackage,
		TargetFile:    g.cfg.TargetFile,
		Fixes:         []string{issue.ID},
		Kind:          KindTechnologyFallback,
		Description: fmt.Sprintf("Restores a research path to %q with %d per-package variants and a %d-tier fallback ladder.",
			key.Name, len(paths), len(fallbacks)),
		Artifact:        g.renderer.ResearchPaths(key, paths, fallbacks),
		Overrides:       map[string]any{"paths": paths, "fallbacks": fallbacks},
		EstimatedImpact: issue.Severity,
	}
}

func (g *Generator) genericSuggestion(issue conflict.Issue, key prototype.Key) *Suggestion {
	h, ok := g.store.Lookup(key)
	if !ok {
		return nil
	}
	def := lastDef(h)
	if def == nil || def.Icon == "" {
		// Without an icon the variant cannot be presented in-game.
		g.logger.Debug("skipping generic patch without icon", "key", key.String())
		return nil
	}
	stack := def.StackSize
	if stack <= 0 {
		stack = 1
	}
	variants := []GenericVariant{
		{
			Name:      key.Name + "-economy",
			Base:      key.Name,
			Icon:      def.Icon,
			StackSize: stack * 2,
			Category:  def.Category,
			Note:      "bulk variant, stacks higher",
		},
		{
			Name:      key.Name + "-durable",
			Base:      key.Name,
			Icon:      def.Icon,
			StackSize: stack,
			Category:  def.Category,
			Note:      "reinforced variant",
		},
	}
	return &Suggestion{
		PatchID:       "patch/" + key.String(),
		TargetPackage: g.cfg.TargetPackage,
		TargetFile:    g.cfg.TargetFile,
		Fixes:         []string{issue.ID},
		Kind:          KindGenericVariant,
		Description: fmt.Sprintf("Adds renamed variants of %s so competing packages stop contesting one prototype.",
			key),
		Artifact:        g.renderer.GenericVariants(key, variants),
		Overrides:       map[string]any{"variants": variants},
		EstimatedImpact: issue.Severity,
	}
}

type recipeSnapshot struct {
	ingredients []prototype.Ingredient
	results     []prototype.Result
	energy      float64
	category    string
}

func (s recipeSnapshot) usable() bool {
	return len(s.ingredients) > 0 || len(s.results) > 0 || s.category != ""
}

// replayRecipe folds one package's records into the recipe state that
// package intended, whole-object writes first, field writes on top.
func replayRecipe(h *history.History, pkg string) recipeSnapshot {
	var snap recipeSnapshot
	for _, r := range h.Records() {
		if r.Package != pkg {
			continue
		}
		if r.FieldPath == "" {
			if def, ok := r.NewValue.(*prototype.Def); ok {
				snap.ingredients = prototype.CloneIngredients(def.Ingredients)
				snap.results = prototype.CloneResults(def.Results)
				snap.energy = def.EnergyRequired
				snap.category = def.Category
			}
			continue
		}
		switch r.FieldPath {
		case "ingredients":
			if v, ok := r.NewValue.([]prototype.Ingredient); ok {
				snap.ingredients = prototype.CloneIngredients(v)
			}
		case "results":
			if v, ok := r.NewValue.([]prototype.Result); ok {
				snap.results = prototype.CloneResults(v)
			}
		case "energy_required":
			switch v := r.NewValue.(type) {
			case float64:
				snap.energy = v
			case int:
				snap.energy = float64(v)
			}
		case "category":
			if v, ok := r.NewValue.(string); ok {
				snap.category = v
			}
		}
	}
	return snap
}

type technologySnapshot struct {
	prerequisites []string
	unit          *prototype.Unit
	effects       []prototype.Effect
}

func replayTechnology(h *history.History, pkg string) technologySnapshot {
	var snap technologySnapshot
	for _, r := range h.Records() {
		if r.Package != pkg {
			continue
		}
		if r.FieldPath == "" {
			if def, ok := r.NewValue.(*prototype.Def); ok {
				snap.prerequisites = append([]string(nil), def.Prerequisites...)
				snap.unit = def.Unit
				snap.effects = append([]prototype.Effect(nil), def.Effects...)
			}
			continue
		}
		switch r.FieldPath {
		case "prerequisites":
			if v, ok := r.NewValue.([]string); ok {
				snap.prerequisites = append([]string(nil), v...)
			}
		case "unit":
			if v, ok := r.NewValue.(*prototype.Unit); ok {
				snap.unit = v
			}
		case "effects":
			if v, ok := r.NewValue.([]prototype.Effect); ok {
				snap.effects = append([]prototype.Effect(nil), v...)
			}
		}
	}
	return snap
}

// lastDef returns the most recent whole-object definition, if any.
func lastDef(h *history.History) *prototype.Def {
	recs := h.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].FieldPath != "" {
			continue
		}
		if def, ok := recs[i].NewValue.(*prototype.Def); ok {
			return def
		}
	}
	return nil
}

func dedupeIngredients(in []prototype.Ingredient) []prototype.Ingredient {
	if len(in) < 2 {
		return in
	}
	type ik struct{ typ, name string }
	seen := make(map[ik]struct{}, len(in))
	out := in[:0:0]
	for _, ing := range in {
		k := ik{ing.Type, ing.Name}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ing)
	}
	return out
}

func dedupeResults(in []prototype.Result) []prototype.Result {
	if len(in) < 2 {
		return in
	}
	type rk struct{ typ, name string }
	seen := make(map[rk]struct{}, len(in))
	out := in[:0:0]
	for _, r := range in {
		k := rk{r.Type, r.Name}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// sanitize turns a package name into a prototype-name-safe suffix.
func sanitize(pkg string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(pkg) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == '_' || r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
