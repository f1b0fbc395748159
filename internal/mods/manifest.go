// Package mods discovers installed packages, parses their manifests
// and dependency specs, and resolves a load order.
package mods

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Script phases, executed across the whole load order one phase at a
// time.
var ScriptPhases = []string{"data.lua", "data-updates.lua", "data-final-fixes.lua"}

// Manifest is a package's parsed info.json plus where it was found.
type Manifest struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	FactorioVersion string   `json:"factorio_version"`
	RawDependencies []string `json:"dependencies"`

	Dependencies []Dependency `json:"-"`
	Path         string       `json:"-"`
	Zipped       bool         `json:"-"`
}

// Dependency is one parsed dependency spec, e.g. "? flib >= 0.12.0".
type Dependency struct {
	Name string
	// Constraint is nil for unversioned dependencies.
	Constraint *semver.Constraints
	Raw        string
	// Optional covers both "?" and hidden-optional "(?)" specs.
	Optional bool
	// Incompatible marks "!" specs: the named package must not load.
	Incompatible bool
	// AffectsOrder is false for "~" specs, which require the package
	// without constraining load order.
	AffectsOrder bool
}

var constraintOps = map[string]struct{}{
	"<": {}, "<=": {}, "=": {}, ">=": {}, ">": {},
}

// ParseDependency parses a single dependency spec. Package names may
// contain spaces, so the version constraint is recognized from the
// trailing operator and version fields.
func ParseDependency(raw string) (Dependency, error) {
	dep := Dependency{Raw: raw, AffectsOrder: true}
	rest := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(rest, "!"):
		dep.Incompatible = true
		rest = strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, "(?)"):
		dep.Optional = true
		rest = strings.TrimSpace(rest[3:])
	case strings.HasPrefix(rest, "?"):
		dep.Optional = true
		rest = strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, "~"):
		dep.AffectsOrder = false
		rest = strings.TrimSpace(rest[1:])
	}
	if rest == "" {
		return Dependency{}, fmt.Errorf("parse dependency %q: empty package name", raw)
	}

	fields := strings.Fields(rest)
	if len(fields) >= 3 {
		op := fields[len(fields)-2]
		if _, ok := constraintOps[op]; ok {
			version := fields[len(fields)-1]
			c, err := semver.NewConstraint(op + " " + version)
			if err != nil {
				return Dependency{}, fmt.Errorf("parse dependency %q: %w", raw, err)
			}
			dep.Constraint = c
			fields = fields[:len(fields)-2]
		}
	}
	dep.Name = strings.Join(fields, " ")
	return dep, nil
}

// SatisfiedBy reports whether a manifest satisfies the dependency's
// version constraint. Unversioned dependencies match any version, and
// unparseable versions fail closed.
func (d Dependency) SatisfiedBy(m Manifest) bool {
	if m.Name != d.Name {
		return false
	}
	if d.Constraint == nil {
		return true
	}
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return false
	}
	return d.Constraint.Check(v)
}
