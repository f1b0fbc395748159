package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
)

// patchManifest is the info.json written into each generated patch
// package.
type patchManifest struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Author          string   `json:"author"`
	FactorioVersion string   `json:"factorio_version"`
	Dependencies    []string `json:"dependencies"`
}

// WritePatchFiles materializes patch suggestions as installable mod
// packages under dir: one directory per target package holding an
// info.json and the script files the patches target. It returns the
// created file paths sorted lexically.
func WritePatchFiles(dir string, patches []patch.Suggestion) ([]string, error) {
	if len(patches) == 0 {
		return nil, nil
	}
	byPackage := make(map[string][]patch.Suggestion)
	for _, p := range patches {
		byPackage[p.TargetPackage] = append(byPackage[p.TargetPackage], p)
	}

	var created []string
	for _, pkg := range sortedKeys(byPackage) {
		pkgPatches := byPackage[pkg]
		pkgDir := filepath.Join(dir, pkg)
		if err := os.MkdirAll(pkgDir, 0o755); err != nil {
			return created, fmt.Errorf("create patch package dir: %w", err)
		}

		deps := dependencyUnion(pkgPatches)
		manifest := patchManifest{
			Name:            pkg,
			Version:         "1.0.0",
			Title:           "Factorio Harmonizer Compatibility Patch",
			Description:     fmt.Sprintf("Auto-generated compatibility patch resolving %d conflict(s)", len(pkgPatches)),
			Author:          "factorio-harmonizer",
			FactorioVersion: "2.0",
			Dependencies:    deps,
		}
		raw, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return created, fmt.Errorf("encode patch manifest: %w", err)
		}
		infoPath := filepath.Join(pkgDir, "info.json")
		if err := os.WriteFile(infoPath, raw, 0o644); err != nil {
			return created, fmt.Errorf("write patch manifest: %w", err)
		}
		created = append(created, infoPath)

		byFile := make(map[string][]patch.Suggestion)
		for _, p := range pkgPatches {
			byFile[p.TargetFile] = append(byFile[p.TargetFile], p)
		}
		for _, file := range sortedKeys(byFile) {
			path := filepath.Join(pkgDir, file)
			if err := os.WriteFile(path, []byte(renderScript(byFile[file])), 0o644); err != nil {
				return created, fmt.Errorf("write patch script: %w", err)
			}
			created = append(created, path)
		}
	}
	sort.Strings(created)
	return created, nil
}

// dependencyUnion collects the packages a patch set's fixes touch as
// optional dependencies, so the patch loads after all of them.
func dependencyUnion(patches []patch.Suggestion) []string {
	seen := map[string]struct{}{}
	deps := []string{"base >= 2.0"}
	for _, p := range patches {
		for _, v := range variantPackages(p) {
			if v == "" || v == "base" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			deps = append(deps, "? "+v)
		}
	}
	sort.Strings(deps[1:])
	return deps
}

// variantPackages pulls package names out of a suggestion's
// structured overrides. Overrides hold typed values on a fresh run
// and decoded JSON on an archived one; both shapes are read.
func variantPackages(p patch.Suggestion) []string {
	var out []string
	for _, field := range []string{"variants", "paths"} {
		switch v := p.Overrides[field].(type) {
		case []patch.RecipeVariant:
			for _, rv := range v {
				out = append(out, rv.Package)
			}
		case []patch.ResearchPath:
			for _, rp := range v {
				out = append(out, rp.Package)
			}
		case []any:
			for _, entry := range v {
				m, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				if pkg, ok := m["package"].(string); ok {
					out = append(out, pkg)
				}
			}
		}
	}
	return out
}

func renderScript(patches []patch.Suggestion) string {
	var b strings.Builder
	b.WriteString("-- Auto-generated compatibility patch\n")
	fmt.Fprintf(&b, "-- Resolves %d conflict(s)\n\n", len(patches))
	for _, p := range patches {
		fmt.Fprintf(&b, "-- Patch: %s\n", p.PatchID)
		fmt.Fprintf(&b, "-- Fixes: %s\n", strings.Join(p.Fixes, ", "))
		b.WriteString(p.Artifact)
		if !strings.HasSuffix(p.Artifact, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
