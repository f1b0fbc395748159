// Package availability answers reachability questions: can an item be
// obtained, and can a recipe be crafted, in a given world context.
// Resolution walks producing recipes recursively with cycle detection,
// so mutually dependent recipe loops terminate instead of recursing
// forever.
package availability

import (
	"sort"

	"github.com/eysenfalk/factorio-harmonizer/internal/depgraph"
	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// DefaultWideThreshold is the fraction of contexts an item must be
// available in to count as widely available.
const DefaultWideThreshold = 0.75

// Context is a world an analysis run evaluates against: typically a
// planet, with the raw resources it exposes.
type Context struct {
	ID        string   `json:"id"`
	Resources []string `json:"resources"`

	resourceSet map[string]struct{}
}

// NewContext builds a context from an ID and its raw resources.
func NewContext(id string, resources ...string) Context {
	c := Context{ID: id, Resources: resources}
	c.index()
	return c
}

func (c *Context) index() {
	c.resourceSet = make(map[string]struct{}, len(c.Resources))
	for _, r := range c.Resources {
		c.resourceSet[r] = struct{}{}
	}
}

// HasResource reports whether the context exposes a raw resource.
func (c *Context) HasResource(name string) bool {
	if c.resourceSet == nil {
		c.index()
	}
	_, ok := c.resourceSet[name]
	return ok
}

// Analyzer resolves availability against a ledger and its graph.
type Analyzer struct {
	store     *history.Store
	graph     depgraph.Graph
	contexts  []Context
	threshold float64
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithThreshold overrides the wide-availability fraction. Values
// outside (0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(a *Analyzer) {
		if t > 0 && t <= 1 {
			a.threshold = t
		}
	}
}

// New builds an analyzer over a ledger, its dependency graph, and the
// contexts to evaluate.
func New(store *history.Store, graph depgraph.Graph, contexts []Context, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:     store,
		graph:     graph,
		contexts:  contexts,
		threshold: DefaultWideThreshold,
	}
	for i := range a.contexts {
		a.contexts[i].index()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Contexts returns the contexts the analyzer evaluates against.
func (a *Analyzer) Contexts() []Context {
	return a.contexts
}

type visit struct {
	kind    string
	name    string
	context string
}

// IsItemAvailable reports whether an item is obtainable in a context,
// either as a raw resource or through a producing recipe chain.
func (a *Analyzer) IsItemAvailable(item string, ctx Context) bool {
	return a.itemAvailable(item, ctx, make(map[visit]struct{}))
}

// IsRecipeAvailable reports whether every ingredient of a recipe is
// obtainable in a context.
func (a *Analyzer) IsRecipeAvailable(key prototype.Key, ctx Context) bool {
	return a.recipeAvailable(key, ctx, make(map[visit]struct{}))
}

// path holds the nodes on the current resolution path. A node is added
// before descending and removed after, so revisiting one means a true
// cycle rather than a shared subtree.
func (a *Analyzer) itemAvailable(item string, ctx Context, path map[visit]struct{}) bool {
	if ctx.HasResource(item) {
		return true
	}
	v := visit{kind: "item", name: item, context: ctx.ID}
	if _, onPath := path[v]; onPath {
		return false
	}
	path[v] = struct{}{}
	defer delete(path, v)

	for _, key := range a.store.Keys() {
		if key.Kind != "recipe" {
			continue
		}
		h, ok := a.store.Lookup(key)
		if !ok {
			continue
		}
		def, ok := h.CurrentDef()
		if !ok {
			continue
		}
		if !produces(def, item) {
			continue
		}
		// The first producing recipe in key order decides.
		return a.recipeAvailable(key, ctx, path)
	}
	return false
}

func (a *Analyzer) recipeAvailable(key prototype.Key, ctx Context, path map[visit]struct{}) bool {
	v := visit{kind: key.Kind, name: key.Name, context: ctx.ID}
	if _, onPath := path[v]; onPath {
		return false
	}
	path[v] = struct{}{}
	defer delete(path, v)

	for _, dep := range a.graph.Dependencies(key) {
		if dep.Kind != depgraph.KindIngredient {
			continue
		}
		if !a.itemAvailable(dep.Target.Name, ctx, path) {
			return false
		}
	}
	return true
}

func produces(def *prototype.Def, item string) bool {
	for _, r := range def.Results {
		if r.Name == item {
			return true
		}
	}
	return false
}

// Analyze partitions the analyzer's contexts by whether a prototype's
// ingredient dependencies are all obtainable in each.
func (a *Analyzer) Analyze(key prototype.Key, deps []depgraph.Dependency) (available, unavailable []Context) {
	for _, ctx := range a.contexts {
		ok := true
		for _, dep := range deps {
			if dep.Kind != depgraph.KindIngredient {
				continue
			}
			if !a.IsItemAvailable(dep.Target.Name, ctx) {
				ok = false
				break
			}
		}
		if ok {
			available = append(available, ctx)
		} else {
			unavailable = append(unavailable, ctx)
		}
	}
	return available, unavailable
}

// IsWidelyAvailable reports whether an item is obtainable in at least
// the threshold fraction of contexts. With no contexts configured
// there is nothing to prove scarcity against, so it reports true.
func (a *Analyzer) IsWidelyAvailable(item string) bool {
	count := 0
	for _, ctx := range a.contexts {
		if a.IsItemAvailable(item, ctx) {
			count++
		}
	}
	return float64(count) >= float64(len(a.contexts))*a.threshold
}

// DeriveContexts builds contexts from planet prototypes recorded in
// the ledger, sorted by name.
func DeriveContexts(store *history.Store) []Context {
	var out []Context
	for _, key := range store.Keys() {
		if key.Kind != "planet" {
			continue
		}
		h, ok := store.Lookup(key)
		if !ok {
			continue
		}
		def, ok := h.CurrentDef()
		if !ok {
			continue
		}
		out = append(out, NewContext(key.Name, def.Resources...))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
