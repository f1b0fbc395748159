package mods

import (
	"fmt"
	"sort"
	"strings"
)

// LoadOrder topologically sorts manifests so every package loads after
// the dependencies it names. Only required, order-affecting
// dependencies that are present in the set constrain the order; ties
// break alphabetically with the base package first, so the order is
// deterministic. Incompatibility conflicts and dependency cycles are
// errors.
func LoadOrder(manifests []Manifest) ([]Manifest, error) {
	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}

	for _, m := range manifests {
		for _, dep := range m.Dependencies {
			other, present := byName[dep.Name]
			if dep.Incompatible {
				if present {
					return nil, fmt.Errorf("package %s is incompatible with %s", m.Name, dep.Name)
				}
				continue
			}
			if !present || dep.Constraint == nil {
				continue
			}
			if !dep.SatisfiedBy(other) {
				return nil, fmt.Errorf("package %s requires %q but %s %s is installed",
					m.Name, dep.Raw, other.Name, other.Version)
			}
		}
	}

	blockers := make(map[string][]string, len(manifests))
	for _, m := range manifests {
		for _, dep := range m.Dependencies {
			if dep.Incompatible || !dep.AffectsOrder {
				continue
			}
			if dep.Optional {
				if _, present := byName[dep.Name]; !present {
					continue
				}
			}
			if _, present := byName[dep.Name]; present {
				blockers[m.Name] = append(blockers[m.Name], dep.Name)
			}
		}
	}

	ordered := make([]Manifest, 0, len(manifests))
	placed := make(map[string]struct{}, len(manifests))
	remaining := make([]Manifest, len(manifests))
	copy(remaining, manifests)
	sort.Slice(remaining, func(i, j int) bool { return loadLess(remaining[i].Name, remaining[j].Name) })

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0:0]
		for _, m := range remaining {
			ready := true
			for _, dep := range blockers[m.Name] {
				if _, ok := placed[dep]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				next = append(next, m)
				continue
			}
			ordered = append(ordered, m)
			placed[m.Name] = struct{}{}
			progressed = true
		}
		if !progressed {
			names := make([]string, len(next))
			for i, m := range next {
				names[i] = m.Name
			}
			return nil, fmt.Errorf("dependency cycle among packages: %s", strings.Join(names, ", "))
		}
		remaining = next
	}
	return ordered, nil
}

// loadLess orders the base package ahead of everything else, then
// alphabetically.
func loadLess(a, b string) bool {
	if a == "base" || b == "base" {
		return a == "base" && b != "base"
	}
	return a < b
}
