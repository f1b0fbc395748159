package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/availability"
	"github.com/eysenfalk/factorio-harmonizer/internal/depgraph"
	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Config tunes detection. Zero values get sensible defaults.
type Config struct {
	// EssentialRecipes are recipe names whose breakage is graded
	// harshly because early progression depends on them.
	EssentialRecipes []string
	// ReferenceContext is the context ID whose unreachability makes an
	// availability issue critical rather than high.
	ReferenceContext string
	// BasePackages are packages whose changes are treated as the
	// baseline rather than as modifications.
	BasePackages []string
	// BuiltinCategoryKinds are dependency target kinds resolved by the
	// engine, exempt from missing-dependency checks.
	BuiltinCategoryKinds []string
}

func (c Config) withDefaults() Config {
	if len(c.BasePackages) == 0 {
		c.BasePackages = []string{"base"}
	}
	if len(c.BuiltinCategoryKinds) == 0 {
		c.BuiltinCategoryKinds = depgraph.BuiltinTargetKinds
	}
	return c
}

// Detector runs the issue passes over a ledger, its graph, and an
// availability analyzer.
//
// Passes run in a fixed order and do not deduplicate across each
// other: a recipe contested by two packages and unreachable on a
// planet produces one issue from each pass, under distinct ID
// prefixes. Only the final catch-all pass skips prototypes an earlier
// pass already covered.
type Detector struct {
	store  *history.Store
	graph  depgraph.Graph
	avail  *availability.Analyzer
	cfg    Config
	logger *log.Logger

	essential map[string]struct{}
	basePkgs  map[string]struct{}
	builtin   map[string]struct{}
}

// NewDetector wires a detector. A nil logger falls back to the package
// default.
func NewDetector(store *history.Store, graph depgraph.Graph, avail *availability.Analyzer, cfg Config, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.withDefaults()
	d := &Detector{
		store:     store,
		graph:     graph,
		avail:     avail,
		cfg:       cfg,
		logger:    logger,
		essential: make(map[string]struct{}, len(cfg.EssentialRecipes)),
		basePkgs:  make(map[string]struct{}, len(cfg.BasePackages)),
		builtin:   make(map[string]struct{}, len(cfg.BuiltinCategoryKinds)),
	}
	for _, r := range cfg.EssentialRecipes {
		d.essential[r] = struct{}{}
	}
	for _, p := range cfg.BasePackages {
		d.basePkgs[p] = struct{}{}
	}
	for _, k := range cfg.BuiltinCategoryKinds {
		d.builtin[k] = struct{}{}
	}
	return d
}

// Detect builds per-prototype analyses and runs every issue pass.
func (d *Detector) Detect() *Result {
	res := &Result{Analyses: d.buildAnalyses()}

	d.detectEssentialRecipes(res)
	d.detectUnavailable(res)
	d.detectMissingDependencies(res)
	d.detectBrokenTechChains(res)
	covered := d.detectRecipeConflicts(res)
	d.detectRecipeVariants(res, covered)
	d.detectGenericConflicts(res)

	res.Summary = d.summarize(res)
	d.logger.Info("conflict detection complete",
		"prototypes", res.Summary.Total,
		"conflicted", res.Summary.Conflicted,
		"issues", len(res.Issues))
	return res
}

func (d *Detector) buildAnalyses() map[prototype.Key]*Analysis {
	analyses := make(map[prototype.Key]*Analysis, d.store.Len())
	for _, key := range d.store.Keys() {
		h, ok := d.store.Lookup(key)
		if !ok {
			continue
		}
		deps := d.graph.Dependencies(key)
		a := &Analysis{
			Key:                 key,
			ModificationCount:   h.Len(),
			Packages:            h.Packages(),
			Conflicted:          h.Conflicted(),
			Dependencies:        deps,
			MissingDependencies: d.missingDeps(deps),
		}
		if len(deps) > 0 {
			avail, unavail := d.avail.Analyze(key, deps)
			a.AvailableContexts = contextIDs(avail)
			a.UnavailableContexts = contextIDs(unavail)
		}
		analyses[key] = a
	}
	return analyses
}

func (d *Detector) missingDeps(deps []depgraph.Dependency) []depgraph.Dependency {
	var missing []depgraph.Dependency
	for _, dep := range deps {
		if _, builtin := d.builtin[dep.Target.Kind]; builtin {
			continue
		}
		if _, ok := d.store.Lookup(dep.Target); !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// emit appends an issue to the result and attaches it to every
// affected prototype's analysis.
func (d *Detector) emit(res *Result, issue Issue) {
	res.Issues = append(res.Issues, issue)
	for _, key := range issue.AffectedKeys {
		if a, ok := res.Analyses[key]; ok {
			a.Issues = append(a.Issues, issue)
		}
	}
}

// detectEssentialRecipes flags configured essential recipes whose
// ingredients were changed by multiple packages, grading by whether
// the final ingredient list leans on scarce items.
func (d *Detector) detectEssentialRecipes(res *Result) {
	names := make([]string, len(d.cfg.EssentialRecipes))
	copy(names, d.cfg.EssentialRecipes)
	sort.Strings(names)

	for _, name := range names {
		key := prototype.NewKey("recipe", name)
		h, ok := d.store.Lookup(key)
		if !ok {
			continue
		}
		pkgs := h.Packages()
		if len(pkgs) < 2 {
			continue
		}
		ings, ok := lastIngredients(h)
		if !ok {
			continue
		}
		var problematic []string
		for _, ing := range ings {
			if !d.avail.IsWidelyAvailable(ing.Name) {
				problematic = append(problematic, ing.Name)
			}
		}
		severity := SeverityHigh
		desc := fmt.Sprintf("%d packages modify the ingredients of essential recipe %q.", len(pkgs), name)
		if len(problematic) > 0 {
			severity = SeverityCritical
			desc = fmt.Sprintf("Essential recipe %q ends up requiring %s, which cannot be obtained on most worlds.",
				name, strings.Join(problematic, ", "))
		}
		issue := Issue{
			ID:           PrefixEssentialRecipe + key.String(),
			Severity:     severity,
			Title:        fmt.Sprintf("Essential recipe %q modified by multiple packages", name),
			Description:  desc,
			AffectedKeys: []prototype.Key{key},
			Packages:     pkgs,
			RootCause:    "Multiple packages rewrite the same early-game recipe; only the last loaded version survives.",
			SuggestedFixes: []string{
				"Generate a compatibility patch that merges the competing ingredient lists.",
				"Restrict one of the packages to worlds where its ingredients exist.",
			},
			FieldPath: "ingredients",
		}
		if len(problematic) > 0 {
			issue.Evidence = map[string]any{"problematic_ingredients": problematic}
		}
		d.emit(res, issue)
	}
}

// detectUnavailable flags prototypes with at least one context where
// their ingredient chain cannot be satisfied.
func (d *Detector) detectUnavailable(res *Result) {
	for _, key := range sortedAnalysisKeys(res.Analyses) {
		a := res.Analyses[key]
		if len(a.UnavailableContexts) == 0 {
			continue
		}
		severity := SeverityHigh
		for _, id := range a.UnavailableContexts {
			if id == d.cfg.ReferenceContext && d.cfg.ReferenceContext != "" {
				severity = SeverityCritical
				break
			}
		}
		d.emit(res, Issue{
			ID:       PrefixAvailability + key.String(),
			Severity: severity,
			Title:    fmt.Sprintf("%s unreachable on %d world(s)", key, len(a.UnavailableContexts)),
			Description: fmt.Sprintf("%s cannot be obtained on: %s.",
				key, strings.Join(a.UnavailableContexts, ", ")),
			AffectedKeys: []prototype.Key{key},
			Packages:     a.Packages,
			RootCause:    "The prototype's ingredient chain bottoms out in resources those worlds do not expose.",
			SuggestedFixes: []string{
				"Add a world-specific recipe variant using locally available resources.",
			},
			Evidence: map[string]any{"unavailable_contexts": a.UnavailableContexts},
		})
	}
}

// detectMissingDependencies flags prototypes that reference targets no
// package ever defined. Builtin category kinds are exempt.
func (d *Detector) detectMissingDependencies(res *Result) {
	for _, key := range sortedAnalysisKeys(res.Analyses) {
		a := res.Analyses[key]
		if len(a.MissingDependencies) == 0 {
			continue
		}
		targets := make([]string, len(a.MissingDependencies))
		for i, dep := range a.MissingDependencies {
			targets[i] = dep.Target.String()
		}
		d.emit(res, Issue{
			ID:       PrefixMissingDep + key.String(),
			Severity: SeverityHigh,
			Title:    fmt.Sprintf("%s references undefined prototypes", key),
			Description: fmt.Sprintf("%s depends on %s, which no loaded package defines.",
				key, strings.Join(targets, ", ")),
			AffectedKeys: []prototype.Key{key},
			Packages:     a.Packages,
			RootCause:    "A package references prototypes from a mod that is not loaded, or misspells a name.",
			SuggestedFixes: []string{
				"Install the package that provides the missing prototypes, or remove the reference.",
			},
			Evidence: map[string]any{"missing_dependencies": targets},
		})
	}
}

// detectBrokenTechChains finds technologies that can never be
// researched because a prerequisite is undefined. Technologies that
// are merely unreachable through defined-but-unresearchable
// prerequisites are not flagged; the root technology is the problem.
func (d *Detector) detectBrokenTechChains(res *Result) {
	prereqs := make(map[string][]string)
	var names []string
	for _, key := range d.store.Keys() {
		if key.Kind != "technology" {
			continue
		}
		h, ok := d.store.Lookup(key)
		if !ok {
			continue
		}
		def, ok := h.CurrentDef()
		if !ok {
			continue
		}
		prereqs[key.Name] = def.Prerequisites
		names = append(names, key.Name)
	}

	defined := func(name string) bool {
		_, ok := d.store.Lookup(prototype.NewKey("technology", name))
		return ok
	}

	// Fixpoint over researchability: a technology is researchable when
	// every prerequisite is itself researchable.
	reachable := make(map[string]bool, len(names))
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			if reachable[name] {
				continue
			}
			ok := true
			for _, p := range prereqs[name] {
				if !reachable[p] {
					ok = false
					break
				}
			}
			if ok {
				reachable[name] = true
				changed = true
			}
		}
	}

	for _, name := range names {
		if reachable[name] {
			continue
		}
		var missing []string
		for _, p := range prereqs[name] {
			if !defined(p) {
				missing = append(missing, p)
			}
		}
		if len(missing) == 0 {
			continue
		}
		key := prototype.NewKey("technology", name)
		var pkgs []string
		if a, ok := res.Analyses[key]; ok {
			pkgs = a.Packages
		}
		d.emit(res, Issue{
			ID:       PrefixBrokenChain + key.String(),
			Severity: SeverityHigh,
			Title:    fmt.Sprintf("Technology %q can never be researched", name),
			Description: fmt.Sprintf("Technology %q requires %s, which no loaded package defines.",
				name, strings.Join(missing, ", ")),
			AffectedKeys: []prototype.Key{key},
			Packages:     pkgs,
			RootCause:    "A prerequisite technology is missing from the combined load set.",
			SuggestedFixes: []string{
				"Provide fallback technologies that restore a research path.",
				"Drop the undefined prerequisite from the technology.",
			},
			Evidence: map[string]any{"missing_prerequisites": missing},
		})
	}
}

// detectRecipeConflicts flags recipes whose ingredients were rewritten
// by two or more packages. Returns the set of keys it covered so the
// variant pass does not double-report.
func (d *Detector) detectRecipeConflicts(res *Result) map[prototype.Key]struct{} {
	covered := make(map[prototype.Key]struct{})
	for _, key := range d.store.Keys() {
		if key.Kind != "recipe" {
			continue
		}
		h, ok := d.store.Lookup(key)
		if !ok {
			continue
		}
		perPkg, order := ingredientRewrites(h)
		if len(order) < 2 {
			continue
		}
		covered[key] = struct{}{}

		severity := SeverityHigh
		if _, essential := d.essential[key.Name]; essential {
			severity = SeverityCritical
		}
		evidence := make(map[string]any, len(order))
		for pkg, ings := range perPkg {
			evidence[pkg] = ings
		}
		d.emit(res, Issue{
			ID:       PrefixRecipeConflict + key.String(),
			Severity: severity,
			Title:    fmt.Sprintf("Recipe %q rewritten by %d packages", key.Name, len(order)),
			Description: fmt.Sprintf("Packages %s each replace the ingredients of %s; only the last loaded list survives.",
				strings.Join(order, ", "), key),
			AffectedKeys: []prototype.Key{key},
			Packages:     order,
			RootCause:    "Independent packages rewrite the same recipe without knowledge of each other.",
			SuggestedFixes: []string{
				"Generate per-package recipe variants so both versions remain craftable.",
			},
			FieldPath: "ingredients",
			Evidence:  map[string]any{"package_ingredients": evidence},
		})
	}
	return covered
}

// detectRecipeVariants flags recipes where a single non-base package
// rewrote the ingredients. Not a conflict yet, but the rewrite
// silently replaces the baseline version.
func (d *Detector) detectRecipeVariants(res *Result, covered map[prototype.Key]struct{}) {
	for _, key := range d.store.Keys() {
		if key.Kind != "recipe" {
			continue
		}
		if _, ok := covered[key]; ok {
			continue
		}
		h, ok := d.store.Lookup(key)
		if !ok {
			continue
		}
		perPkg, order := ingredientRewrites(h)
		if len(order) != 1 {
			continue
		}
		pkg := order[0]
		if _, isBase := d.basePkgs[pkg]; isBase {
			continue
		}
		severity := SeverityMedium
		if _, essential := d.essential[key.Name]; essential {
			severity = SeverityHigh
		}
		d.emit(res, Issue{
			ID:       PrefixRecipeVariant + key.String(),
			Severity: severity,
			Title:    fmt.Sprintf("Recipe %q replaced by %s", key.Name, pkg),
			Description: fmt.Sprintf("Package %s replaces the ingredients of %s; the original version is no longer craftable.",
				pkg, key),
			AffectedKeys: []prototype.Key{key},
			Packages:     []string{pkg},
			RootCause:    "A package rewrites a recipe instead of adding an alternative.",
			SuggestedFixes: []string{
				"Keep the original recipe and add the rewrite as a separate variant.",
			},
			FieldPath: "ingredients",
			Evidence:  map[string]any{"variant_ingredients": perPkg[pkg]},
		})
	}
}

// detectGenericConflicts is the catch-all pass: any prototype touched
// by multiple packages that no earlier pass covered.
func (d *Detector) detectGenericConflicts(res *Result) {
	flagged := make(map[prototype.Key]struct{})
	for _, issue := range res.Issues {
		for _, key := range issue.AffectedKeys {
			flagged[key] = struct{}{}
		}
	}
	for _, c := range d.store.Conflicts() {
		if _, ok := flagged[c.Key]; ok {
			continue
		}
		severity := SeverityLow
		switch c.Key.Kind {
		case "recipe":
			severity = SeverityHigh
		case "item", "technology":
			severity = SeverityMedium
		}
		d.emit(res, Issue{
			ID:       PrefixGeneric + c.Key.String(),
			Severity: severity,
			Title:    fmt.Sprintf("%s modified by %d packages", c.Key, len(c.Packages)),
			Description: fmt.Sprintf("Packages %s all modify %s; later changes silently override earlier ones.",
				strings.Join(c.Packages, ", "), c.Key),
			AffectedKeys: []prototype.Key{c.Key},
			Packages:     c.Packages,
			RootCause:    "Overlapping modifications with load-order dependent results.",
			SuggestedFixes: []string{
				"Review the overlapping changes and merge them in a compatibility patch.",
			},
		})
	}
}

func (d *Detector) summarize(res *Result) Summary {
	sum := Summary{Total: len(res.Analyses)}
	for _, a := range res.Analyses {
		if a.Conflicted {
			sum.Conflicted++
		}
	}
	for _, issue := range res.Issues {
		switch issue.Severity {
		case SeverityCritical:
			sum.Critical++
		case SeverityHigh:
			sum.High++
		case SeverityMedium:
			sum.Medium++
		case SeverityLow:
			sum.Low++
		}
	}
	return sum
}

// ingredientRewrites returns each package's latest field-level
// ingredient rewrite for a recipe, plus the rewriting packages in
// first-rewrite order. Whole-object definitions do not count: defining
// a recipe is not the same as contesting someone else's.
func ingredientRewrites(h *history.History) (map[string][]prototype.Ingredient, []string) {
	perPkg := make(map[string][]prototype.Ingredient)
	var order []string
	for _, r := range h.Records() {
		if r.FieldPath != "ingredients" {
			continue
		}
		ings, ok := r.NewValue.([]prototype.Ingredient)
		if !ok {
			continue
		}
		if _, seen := perPkg[r.Package]; !seen {
			order = append(order, r.Package)
		}
		perPkg[r.Package] = ings
	}
	return perPkg, order
}

// lastIngredients returns the most recent ingredient value written to
// a history, whether by field modify or whole-object definition.
func lastIngredients(h *history.History) ([]prototype.Ingredient, bool) {
	recs := h.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if r.FieldPath == "ingredients" {
			if v, ok := r.NewValue.([]prototype.Ingredient); ok {
				return v, true
			}
			continue
		}
		if r.FieldPath == "" {
			if def, ok := r.NewValue.(*prototype.Def); ok && def.Ingredients != nil {
				return def.Ingredients, true
			}
		}
	}
	return nil, false
}

func contextIDs(contexts []availability.Context) []string {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]string, len(contexts))
	for i, c := range contexts {
		out[i] = c.ID
	}
	return out
}

func sortedAnalysisKeys(analyses map[prototype.Key]*Analysis) []prototype.Key {
	out := make([]prototype.Key, 0, len(analyses))
	for k := range analyses {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
