package mods

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseDependency(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		want           Dependency
		wantConstraint bool
		wantErr        bool
	}{
		{
			name:  "plain",
			input: "flib",
			want:  Dependency{Name: "flib", AffectsOrder: true},
		},
		{
			name:           "versioned",
			input:          "base >= 2.0.47",
			want:           Dependency{Name: "base", AffectsOrder: true},
			wantConstraint: true,
		},
		{
			name:  "optional",
			input: "? space-age",
			want:  Dependency{Name: "space-age", Optional: true, AffectsOrder: true},
		},
		{
			name:           "hidden optional",
			input:          "(?) quality >= 1.0.0",
			want:           Dependency{Name: "quality", Optional: true, AffectsOrder: true},
			wantConstraint: true,
		},
		{
			name:  "incompatible",
			input: "! bobs-logistics",
			want:  Dependency{Name: "bobs-logistics", Incompatible: true, AffectsOrder: true},
		},
		{
			name:           "order independent",
			input:          "~ base >= 2.0.0",
			want:           Dependency{Name: "base", AffectsOrder: false},
			wantConstraint: true,
		},
		{
			name:           "name with spaces",
			input:          "? Squeak Through >= 1.8.0",
			want:           Dependency{Name: "Squeak Through", Optional: true, AffectsOrder: true},
			wantConstraint: true,
		},
		{
			name:    "empty",
			input:   "?",
			wantErr: true,
		},
		{
			name:    "bad version",
			input:   "base >= not.a.version",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDependency(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.want.Name ||
				got.Optional != tt.want.Optional ||
				got.Incompatible != tt.want.Incompatible ||
				got.AffectsOrder != tt.want.AffectsOrder {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if (got.Constraint != nil) != tt.wantConstraint {
				t.Errorf("constraint presence = %v, want %v", got.Constraint != nil, tt.wantConstraint)
			}
		})
	}
}

func TestDependencySatisfiedBy(t *testing.T) {
	dep, err := ParseDependency("base >= 2.0.47")
	if err != nil {
		t.Fatal(err)
	}
	if !dep.SatisfiedBy(Manifest{Name: "base", Version: "2.0.50"}) {
		t.Error("2.0.50 should satisfy >= 2.0.47")
	}
	if dep.SatisfiedBy(Manifest{Name: "base", Version: "2.0.40"}) {
		t.Error("2.0.40 should not satisfy >= 2.0.47")
	}
	if dep.SatisfiedBy(Manifest{Name: "other", Version: "2.0.50"}) {
		t.Error("name mismatch should never satisfy")
	}
	if dep.SatisfiedBy(Manifest{Name: "base", Version: "garbage"}) {
		t.Error("unparseable versions fail closed")
	}
}

func writeModDir(t *testing.T, root, name, info string, scripts map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.json"), []byte(info), 0o644); err != nil {
		t.Fatal(err)
	}
	for script, body := range scripts {
		if err := os.WriteFile(filepath.Join(dir, script), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func writeModZip(t *testing.T, root, name, info string, scripts map[string]string) {
	t.Helper()
	f, err := os.Create(filepath.Join(root, name+".zip"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	files := map[string]string{name + "/info.json": info}
	for script, body := range scripts {
		files[name+"/"+script] = body
	}
	for path, body := range files {
		zf, err := w.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(zf, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeModDir(t, root, "alpha-mod",
		`{"name":"alpha-mod","version":"1.2.0","dependencies":["base >= 2.0.0"]}`,
		map[string]string{"data.lua": `data:extend({})`})
	writeModZip(t, root, "zipped-mod",
		`{"name":"zipped-mod","version":"0.1.0"}`,
		map[string]string{"data.lua": `-- zipped`})
	writeModDir(t, root, "broken-mod", `{not json`, nil)
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDiscovery(root, log.New(io.Discard))
	got, err := d.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d manifests, want 2: %+v", len(got), got)
	}
	if got[0].Name != "alpha-mod" || got[1].Name != "zipped-mod" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	if !got[1].Zipped {
		t.Error("zip package should be marked zipped")
	}
	if len(got[0].Dependencies) != 1 || got[0].Dependencies[0].Name != "base" {
		t.Errorf("dependencies = %+v", got[0].Dependencies)
	}

	t.Run("read scripts", func(t *testing.T) {
		body, ok, err := got[0].ReadScript("data.lua")
		if err != nil || !ok || body != `data:extend({})` {
			t.Errorf("dir script = %q, %v, %v", body, ok, err)
		}
		body, ok, err = got[1].ReadScript("data.lua")
		if err != nil || !ok || body != "-- zipped" {
			t.Errorf("zip script = %q, %v, %v", body, ok, err)
		}
		_, ok, err = got[0].ReadScript("data-updates.lua")
		if err != nil || ok {
			t.Errorf("missing script: ok=%v err=%v", ok, err)
		}
	})
}

func TestDiscoverMissingRoot(t *testing.T) {
	d := NewDiscovery(filepath.Join(t.TempDir(), "nope"), log.New(io.Discard))
	if _, err := d.Discover(); err == nil {
		t.Error("missing root should be an error")
	}
}

func mf(name string, deps ...string) Manifest {
	m := Manifest{Name: name, Version: "1.0.0", RawDependencies: deps}
	for _, raw := range deps {
		dep, err := ParseDependency(raw)
		if err != nil {
			panic(err)
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	return m
}

func TestLoadOrder(t *testing.T) {
	got, err := LoadOrder([]Manifest{
		mf("zeta"),
		mf("middle", "base"),
		mf("top", "middle", "? zeta"),
		mf("base"),
	})
	if err != nil {
		t.Fatalf("LoadOrder: %v", err)
	}
	names := make([]string, len(got))
	for i, m := range got {
		names[i] = m.Name
	}
	want := []string{"base", "zeta", "middle", "top"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestLoadOrderOptionalAbsent(t *testing.T) {
	got, err := LoadOrder([]Manifest{
		mf("solo", "? not-installed"),
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestLoadOrderCycle(t *testing.T) {
	_, err := LoadOrder([]Manifest{
		mf("a", "b"),
		mf("b", "a"),
	})
	if err == nil {
		t.Error("cycle should be an error")
	}
}

func TestLoadOrderIncompatible(t *testing.T) {
	_, err := LoadOrder([]Manifest{
		mf("a", "! b"),
		mf("b"),
	})
	if err == nil {
		t.Error("incompatible pair should be an error")
	}
}

func TestLoadOrderVersionMismatch(t *testing.T) {
	low := Manifest{Name: "base", Version: "1.1.0"}
	_, err := LoadOrder([]Manifest{
		mf("needs-new-base", "base >= 2.0.0"),
		low,
	})
	if err == nil {
		t.Error("unsatisfied version constraint should be an error")
	}
}
