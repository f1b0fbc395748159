// Package luarender renders patch content as Lua scripts suitable for
// a data-final-fixes phase, where they run after every other package.
package luarender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Renderer implements patch.Renderer with Lua output.
type Renderer struct{}

// New returns a Lua renderer.
func New() *Renderer {
	return &Renderer{}
}

// RecipeVariants emits a data:extend block adding one renamed recipe
// per variant.
func (r *Renderer) RecipeVariants(key prototype.Key, variants []patch.RecipeVariant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Compatibility variants for %s\n", key)
	b.WriteString("data:extend({\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "  -- version from %s\n", v.Package)
		b.WriteString("  {\n")
		fmt.Fprintf(&b, "    type = %q,\n", key.Kind)
		fmt.Fprintf(&b, "    name = %q,\n", v.Name)
		if v.Category != "" {
			fmt.Fprintf(&b, "    category = %q,\n", v.Category)
		}
		if v.EnergyRequired > 0 {
			fmt.Fprintf(&b, "    energy_required = %s,\n", luaNumber(v.EnergyRequired))
		}
		if len(v.Ingredients) > 0 {
			b.WriteString("    ingredients = {\n")
			for _, ing := range v.Ingredients {
				fmt.Fprintf(&b, "      { type = %q, name = %q, amount = %d },\n", itemType(ing.Type), ing.Name, ing.Amount)
			}
			b.WriteString("    },\n")
		}
		if len(v.Results) > 0 {
			b.WriteString("    results = {\n")
			for _, res := range v.Results {
				fmt.Fprintf(&b, "      { type = %q, name = %q, amount = %d },\n", itemType(res.Type), res.Name, res.Amount)
			}
			b.WriteString("    },\n")
		}
		b.WriteString("  },\n")
	}
	b.WriteString("})\n")
	return b.String()
}

// ResearchPaths emits per-package technology variants plus the
// fallback ladder. Fallback tiers with prerequisites are guarded so
// they only appear when those technologies exist at load time.
func (r *Renderer) ResearchPaths(key prototype.Key, paths []patch.ResearchPath, fallbacks []patch.ResearchPath) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Research path restoration for %s\n", key)
	for _, p := range paths {
		fmt.Fprintf(&b, "-- version from %s\n", p.Package)
		writeTechnology(&b, p, "")
	}
	for _, f := range fallbacks {
		if len(f.Prerequisites) == 0 {
			writeTechnology(&b, f, "")
			continue
		}
		guards := make([]string, len(f.Prerequisites))
		for i, pre := range f.Prerequisites {
			guards[i] = fmt.Sprintf("data.raw.technology[%q]", pre)
		}
		fmt.Fprintf(&b, "if %s then\n", strings.Join(guards, " and "))
		writeTechnology(&b, f, "  ")
		b.WriteString("end\n")
	}
	return b.String()
}

func writeTechnology(b *strings.Builder, p patch.ResearchPath, indent string) {
	fmt.Fprintf(b, "%sdata:extend({\n%s  {\n", indent, indent)
	fmt.Fprintf(b, "%s    type = \"technology\",\n", indent)
	fmt.Fprintf(b, "%s    name = %q,\n", indent, p.Name)
	if len(p.Prerequisites) > 0 {
		quoted := make([]string, len(p.Prerequisites))
		for i, pre := range p.Prerequisites {
			quoted[i] = strconv.Quote(pre)
		}
		fmt.Fprintf(b, "%s    prerequisites = { %s },\n", indent, strings.Join(quoted, ", "))
	}
	if p.Unit != nil {
		fmt.Fprintf(b, "%s    unit = {\n", indent)
		if p.Unit.Count > 0 {
			fmt.Fprintf(b, "%s      count = %d,\n", indent, p.Unit.Count)
		}
		if p.Unit.Time > 0 {
			fmt.Fprintf(b, "%s      time = %s,\n", indent, luaNumber(p.Unit.Time))
		}
		if len(p.Unit.Ingredients) > 0 {
			fmt.Fprintf(b, "%s      ingredients = {\n", indent)
			for _, ing := range p.Unit.Ingredients {
				fmt.Fprintf(b, "%s        { %q, %d },\n", indent, ing.Name, ing.Amount)
			}
			fmt.Fprintf(b, "%s      },\n", indent)
		}
		fmt.Fprintf(b, "%s    },\n", indent)
	}
	if len(p.Effects) > 0 {
		fmt.Fprintf(b, "%s    effects = {\n", indent)
		for _, e := range p.Effects {
			if e.Recipe != "" {
				fmt.Fprintf(b, "%s      { type = %q, recipe = %q },\n", indent, e.Type, e.Recipe)
			} else {
				fmt.Fprintf(b, "%s      { type = %q },\n", indent, e.Type)
			}
		}
		fmt.Fprintf(b, "%s    },\n", indent)
	}
	fmt.Fprintf(b, "%s  },\n%s})\n", indent, indent)
}

// GenericVariants emits renamed copies of a contested prototype.
func (r *Renderer) GenericVariants(key prototype.Key, variants []patch.GenericVariant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Variants for contested prototype %s\n", key)
	b.WriteString("data:extend({\n")
	for _, v := range variants {
		b.WriteString("  {\n")
		fmt.Fprintf(&b, "    type = %q,\n", key.Kind)
		fmt.Fprintf(&b, "    name = %q,\n", v.Name)
		if v.Icon != "" {
			fmt.Fprintf(&b, "    icon = %q,\n", v.Icon)
		}
		if v.StackSize > 0 {
			fmt.Fprintf(&b, "    stack_size = %d,\n", v.StackSize)
		}
		if v.Category != "" {
			fmt.Fprintf(&b, "    category = %q,\n", v.Category)
		}
		b.WriteString("  },\n")
	}
	b.WriteString("})\n")
	return b.String()
}

func itemType(t string) string {
	if t == "" {
		return "item"
	}
	return t
}

func luaNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
