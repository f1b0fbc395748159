package harmonizer

// Config drives an analysis run. Values load from the environment via
// platform/config.ParseEnv; the CLI layers flags on top.
type Config struct {
	// ModsPath is the directory scanned for mod packages, unzipped
	// directories and zip archives alike.
	ModsPath string `env:"HARMONIZER_MODS_PATH"    envDefault:"mods"`
	// OutputDir receives generated patch packages and report files.
	OutputDir string `env:"HARMONIZER_OUTPUT_DIR"   envDefault:"harmonizer-out"`
	// DBPath locates the SQLite run archive.
	DBPath string `env:"HARMONIZER_DB_PATH"      envDefault:"harmonizer.db"`
	// EssentialRecipes are recipe names graded harshly when contested
	// or unreachable because early progression depends on them.
	EssentialRecipes []string `env:"HARMONIZER_ESSENTIAL_RECIPES" envSeparator:","`
	// ReferenceContext is the context whose unreachability escalates
	// an availability issue from high to critical.
	ReferenceContext string `env:"HARMONIZER_REFERENCE_CONTEXT" envDefault:"lignumis"`
	// BasePackages are treated as the baseline rather than as
	// modifications.
	BasePackages []string `env:"HARMONIZER_BASE_PACKAGES" envSeparator:"," envDefault:"base"`
	// WideThreshold is the fraction of contexts an item must reach to
	// count as widely available.
	WideThreshold float64 `env:"HARMONIZER_WIDE_THRESHOLD" envDefault:"0.75"`
	// ContextsFile optionally replaces the built-in planet resource
	// table with a JSON object of {"context": ["resource", ...]}.
	ContextsFile string `env:"HARMONIZER_CONTEXTS_FILE"`
}
