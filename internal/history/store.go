package history

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Store is the in-memory ledger for one ingestion run. It is not safe
// for concurrent use; ingestion is strictly sequential because load
// order is part of the semantics.
type Store struct {
	logger    *log.Logger
	histories map[prototype.Key]*History
	packages  []string
	seen      map[string]struct{}
	active    *Context
	now       func() time.Time
}

// NewStore creates an empty ledger. A nil logger falls back to the
// package default.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		logger:    logger,
		histories: make(map[prototype.Key]*History),
		seen:      make(map[string]struct{}),
		now:       time.Now,
	}
}

// Context attributes subsequent records to a package and source file.
// Only one context is active at a time; beginning a new one replaces
// the previous.
type Context struct {
	store   *Store
	pkg     string
	source  string
	records int
}

// Package returns the package name the context attributes records to.
func (c *Context) Package() string {
	return c.pkg
}

// Records returns how many records were written under this context.
func (c *Context) Records() int {
	return c.records
}

// End deactivates the context. Records made afterwards without a new
// context are rejected.
func (c *Context) End() {
	if c.store != nil && c.store.active == c {
		c.store.active = nil
	}
}

// BeginContext starts attributing records to the named package. The
// source is free-form, typically "package/script-phase".
func (s *Store) BeginContext(pkg, source string) *Context {
	pkg = strings.TrimSpace(pkg)
	ctx := &Context{store: s, pkg: pkg, source: source}
	s.active = ctx
	if _, ok := s.seen[pkg]; !ok && pkg != "" {
		s.seen[pkg] = struct{}{}
		s.packages = append(s.packages, pkg)
	}
	s.logger.Debug("ledger context", "package", pkg, "source", source)
	return ctx
}

// RecordAddition records a whole-object definition. The first write to
// a key is a create; subsequent whole-object writes are overwrites.
// The definition is cloned before storage. Calls without an active
// context or with a nil definition are dropped with a warning.
func (s *Store) RecordAddition(kind, name string, def *prototype.Def) {
	if s.active == nil {
		s.logger.Warn("definition recorded outside a package context, dropped", "kind", kind, "name", name)
		return
	}
	if def == nil || strings.TrimSpace(kind) == "" || strings.TrimSpace(name) == "" {
		s.logger.Warn("malformed definition dropped", "kind", kind, "name", name, "package", s.active.pkg)
		return
	}
	key := prototype.NewKey(kind, name)
	h := s.histories[key]
	op := OperationCreate
	var old any
	if h != nil && h.Len() > 0 {
		op = OperationOverwrite
		old = h.current
	} else if h == nil {
		h = &History{key: key}
		s.histories[key] = h
	}
	h.append(Record{
		Key:       key,
		Package:   s.active.pkg,
		Source:    s.active.source,
		Timestamp: s.now().UTC(),
		Operation: op,
		OldValue:  old,
		NewValue:  def.Clone(),
	})
	s.active.records++
}

// RecordModification records a single-field change. The prototype does
// not need a prior definition; mods routinely patch prototypes their
// dependencies define. The new value becomes the key's current value.
func (s *Store) RecordModification(kind, name, fieldPath string, oldValue, newValue any) {
	if s.active == nil {
		s.logger.Warn("modification recorded outside a package context, dropped", "kind", kind, "name", name, "field", fieldPath)
		return
	}
	if strings.TrimSpace(kind) == "" || strings.TrimSpace(name) == "" || strings.TrimSpace(fieldPath) == "" {
		s.logger.Warn("malformed modification dropped", "kind", kind, "name", name, "field", fieldPath, "package", s.active.pkg)
		return
	}
	key := prototype.NewKey(kind, name)
	h := s.histories[key]
	if h == nil {
		h = &History{key: key}
		s.histories[key] = h
	}
	if d, ok := newValue.(*prototype.Def); ok {
		newValue = d.Clone()
	}
	h.append(Record{
		Key:       key,
		Package:   s.active.pkg,
		Source:    s.active.source,
		Timestamp: s.now().UTC(),
		Operation: OperationModify,
		FieldPath: fieldPath,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
	s.active.records++
}

// Lookup returns the history for a key.
func (s *Store) Lookup(key prototype.Key) (*History, bool) {
	h, ok := s.histories[key]
	return h, ok
}

// HistoryFor returns the history for a kind and name.
func (s *Store) HistoryFor(kind, name string) (*History, bool) {
	return s.Lookup(prototype.NewKey(kind, name))
}

// Keys returns every recorded key sorted by canonical string.
func (s *Store) Keys() []prototype.Key {
	out := make([]prototype.Key, 0, len(s.histories))
	for k := range s.histories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Len returns the number of tracked prototypes.
func (s *Store) Len() int {
	return len(s.histories)
}

// Packages returns the packages seen so far in ingestion order.
func (s *Store) Packages() []string {
	out := make([]string, len(s.packages))
	copy(out, s.packages)
	return out
}

// Conflict names a prototype touched by more than one package.
type Conflict struct {
	Key      prototype.Key `json:"key"`
	Packages []string      `json:"packages"`
}

// Conflicts returns every prototype with records from two or more
// distinct packages, sorted by key.
func (s *Store) Conflicts() []Conflict {
	var out []Conflict
	for _, key := range s.Keys() {
		h := s.histories[key]
		pkgs := h.Packages()
		if len(pkgs) < 2 {
			continue
		}
		out = append(out, Conflict{Key: key, Packages: pkgs})
	}
	return out
}

// ModificationsBy returns every record attributed to a package, in
// key order and record order within each key.
func (s *Store) ModificationsBy(pkg string) []Record {
	var out []Record
	for _, key := range s.Keys() {
		for _, r := range s.histories[key].records {
			if r.Package == pkg {
				out = append(out, r)
			}
		}
	}
	return out
}

// Summary aggregates ledger counts for reporting.
type Summary struct {
	Prototypes int            `json:"prototypes"`
	Records    int            `json:"records"`
	Conflicted int            `json:"conflicted"`
	ByPackage  map[string]int `json:"by_package"`
	ByKind     map[string]int `json:"by_kind"`
}

// Summarize computes aggregate counts over the whole ledger.
func (s *Store) Summarize() Summary {
	sum := Summary{
		Prototypes: len(s.histories),
		ByPackage:  make(map[string]int),
		ByKind:     make(map[string]int),
	}
	for key, h := range s.histories {
		sum.Records += h.Len()
		sum.ByKind[key.Kind]++
		if h.Conflicted() {
			sum.Conflicted++
		}
		for _, r := range h.records {
			sum.ByPackage[r.Package]++
		}
	}
	return sum
}

// Reset drops all state, including the active context.
func (s *Store) Reset() {
	s.histories = make(map[prototype.Key]*History)
	s.packages = nil
	s.seen = make(map[string]struct{})
	s.active = nil
}
