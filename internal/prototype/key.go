// Package prototype defines the normalized data model shared by the
// ingestion, graph, and analysis layers: canonical prototype keys and
// the typed definition shape mods create and modify.
package prototype

import (
	"fmt"
	"strings"
)

// Separator joins a prototype kind and name into a canonical key string.
const Separator = "."

// DefaultCraftingCategory is the crafting category every machine is
// assumed to support. Recipes in this category never produce a
// crafting-category dependency edge.
const DefaultCraftingCategory = "crafting"

// Key identifies a prototype by kind and name. The kind never contains
// the separator; the name may.
type Key struct {
	Kind string
	Name string
}

// NewKey builds a key from a kind and name.
func NewKey(kind, name string) Key {
	return Key{Kind: kind, Name: name}
}

// ParseKey parses a canonical "kind.name" string. The split happens at
// the first separator so names containing dots round-trip.
func ParseKey(s string) (Key, error) {
	kind, name, ok := strings.Cut(s, Separator)
	if !ok {
		return Key{}, fmt.Errorf("parse prototype key %q: missing %q separator", s, Separator)
	}
	if kind == "" {
		return Key{}, fmt.Errorf("parse prototype key %q: empty kind", s)
	}
	return Key{Kind: kind, Name: name}, nil
}

// String returns the canonical "kind.name" form.
func (k Key) String() string {
	return k.Kind + Separator + k.Name
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.Name == ""
}

// MarshalText serializes the key in canonical form so it can be used
// as a JSON map key or array element.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the canonical form.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
