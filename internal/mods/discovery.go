package mods

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Discovery scans a mods directory for packages, either unpacked
// directories or zip archives, each carrying an info.json manifest.
type Discovery struct {
	root   string
	logger *log.Logger
}

// NewDiscovery creates a scanner over a mods directory.
func NewDiscovery(root string, logger *log.Logger) *Discovery {
	if logger == nil {
		logger = log.Default()
	}
	return &Discovery{root: root, logger: logger}
}

// Discover returns every readable package manifest, sorted by name.
// Individual broken packages are logged and skipped; only an unusable
// root directory is an error.
func (d *Discovery) Discover() ([]Manifest, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read mods directory %s: %w", d.root, err)
	}
	var out []Manifest
	for _, entry := range entries {
		path := filepath.Join(d.root, entry.Name())
		var (
			m       Manifest
			loadErr error
		)
		switch {
		case entry.IsDir():
			m, loadErr = d.loadDir(path)
		case strings.HasSuffix(entry.Name(), ".zip"):
			m, loadErr = d.loadZip(path)
		default:
			continue
		}
		if loadErr != nil {
			d.logger.Warn("skipping unreadable package", "path", path, "err", loadErr)
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Discovery) loadDir(path string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(path, "info.json"))
	if err != nil {
		return Manifest{}, err
	}
	m, err := d.parseManifest(raw)
	if err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (d *Discovery) loadZip(path string) (Manifest, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Manifest{}, err
	}
	defer r.Close()

	f := findZipEntry(&r.Reader, "info.json")
	if f == nil {
		return Manifest{}, fmt.Errorf("no info.json in %s", path)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return Manifest{}, err
	}
	m, err := d.parseManifest(raw)
	if err != nil {
		return Manifest{}, err
	}
	m.Path = path
	m.Zipped = true
	return m, nil
}

func (d *Discovery) parseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse info.json: %w", err)
	}
	if strings.TrimSpace(m.Name) == "" {
		return Manifest{}, fmt.Errorf("info.json has no name")
	}
	for _, raw := range m.RawDependencies {
		dep, err := ParseDependency(raw)
		if err != nil {
			d.logger.Warn("skipping bad dependency spec", "package", m.Name, "spec", raw, "err", err)
			continue
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	return m, nil
}

// ReadScript returns a named script's source from the package. The
// second return is false when the package does not ship that script.
func (m *Manifest) ReadScript(name string) (string, bool, error) {
	if m.Zipped {
		r, err := zip.OpenReader(m.Path)
		if err != nil {
			return "", false, fmt.Errorf("open %s: %w", m.Path, err)
		}
		defer r.Close()
		f := findZipEntry(&r.Reader, name)
		if f == nil {
			return "", false, nil
		}
		raw, err := readZipFile(f)
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	}

	raw, err := os.ReadFile(filepath.Join(m.Path, name))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// findZipEntry picks the shallowest entry whose base name matches.
// Zips conventionally nest content under a single top-level directory.
func findZipEntry(r *zip.Reader, name string) *zip.File {
	var best *zip.File
	bestDepth := -1
	for _, f := range r.File {
		if filepath.Base(f.Name) != name {
			continue
		}
		depth := strings.Count(f.Name, "/")
		if best == nil || depth < bestDepth {
			best = f
			bestDepth = depth
		}
	}
	return best
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
