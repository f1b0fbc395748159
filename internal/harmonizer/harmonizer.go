// Package harmonizer orchestrates the analysis pipeline: discover mod
// packages, replay their scripts through the Lua sandbox into the
// modification ledger, then run the graph, availability, conflict,
// and patch stages to produce a compatibility report.
//
// Ingestion is strictly sequential because load order is part of the
// semantics. Once Ingest returns, the ledger is read-only and every
// later stage operates on the same snapshot.
package harmonizer

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/eysenfalk/factorio-harmonizer/internal/availability"
	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
	"github.com/eysenfalk/factorio-harmonizer/internal/depgraph"
	"github.com/eysenfalk/factorio-harmonizer/internal/extract"
	"github.com/eysenfalk/factorio-harmonizer/internal/history"
	"github.com/eysenfalk/factorio-harmonizer/internal/mods"
	"github.com/eysenfalk/factorio-harmonizer/internal/patch"
	"github.com/eysenfalk/factorio-harmonizer/internal/patch/luarender"
)

// Harmonizer runs the full pipeline over a mods directory.
type Harmonizer struct {
	cfg      Config
	logger   *log.Logger
	store    *history.Store
	ordered  []mods.Manifest
	ingested bool
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a Harmonizer with an empty ledger. A nil logger falls
// back to the package default.
func New(cfg Config, logger *log.Logger) *Harmonizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Harmonizer{
		cfg:    cfg,
		logger: logger,
		store:  history.NewStore(logger),
		tracer: otel.Tracer("harmonizer"),
		now:    time.Now,
	}
}

// Store exposes the ledger. It must be treated as read-only once
// Ingest has returned.
func (h *Harmonizer) Store() *history.Store {
	return h.store
}

// Manifests returns the discovered mod packages in load order. Empty
// before Ingest.
func (h *Harmonizer) Manifests() []mods.Manifest {
	return h.ordered
}

// Ingest discovers mods under the configured path, orders them by
// their declared dependencies, and replays each script phase across
// every mod in order. A script that fails mid-run keeps the records
// it made before failing; the run continues with the next script.
func (h *Harmonizer) Ingest(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "harmonizer.ingest")
	defer span.End()

	manifests, err := mods.NewDiscovery(h.cfg.ModsPath, h.logger).Discover()
	if err != nil {
		return fmt.Errorf("discover mods: %w", err)
	}
	if len(manifests) == 0 {
		return fmt.Errorf("no mods found under %s", h.cfg.ModsPath)
	}
	ordered, err := mods.LoadOrder(manifests)
	if err != nil {
		return fmt.Errorf("order mods: %w", err)
	}
	env, err := extract.New(h.store, h.logger)
	if err != nil {
		return fmt.Errorf("lua environment: %w", err)
	}

	for _, phase := range mods.ScriptPhases {
		for i := range ordered {
			if err := ctx.Err(); err != nil {
				return err
			}
			m := &ordered[i]
			code, ok, err := m.ReadScript(phase)
			if err != nil {
				h.logger.Warn("script unreadable, skipped", "package", m.Name, "phase", phase, "error", err)
				continue
			}
			if !ok {
				continue
			}
			c := h.store.BeginContext(m.Name, m.Name+"/"+phase)
			if err := env.Execute(code); err != nil {
				h.logger.Warn("script failed, partial records kept", "package", m.Name, "phase", phase, "error", err)
			}
			h.logger.Debug("script replayed", "package", m.Name, "phase", phase, "records", c.Records())
			c.End()
		}
	}

	h.ordered = ordered
	h.ingested = true
	summary := h.store.Summarize()
	h.logger.Info("ingestion complete",
		"packages", len(ordered), "prototypes", summary.Prototypes, "records", summary.Records)
	return nil
}

// Analyze runs the read-only stages over the ingested ledger and
// assembles the compatibility report. It must be called after Ingest.
func (h *Harmonizer) Analyze(ctx context.Context) (*Report, error) {
	if !h.ingested {
		return nil, fmt.Errorf("analyze called before ingestion")
	}
	ctx, span := h.tracer.Start(ctx, "harmonizer.analyze")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph := depgraph.Build(h.store, h.logger)

	contexts, err := h.contexts()
	if err != nil {
		return nil, err
	}
	avail := availability.New(h.store, graph, contexts,
		availability.WithThreshold(h.cfg.WideThreshold))

	detector := conflict.NewDetector(h.store, graph, avail, conflict.Config{
		EssentialRecipes: h.cfg.EssentialRecipes,
		ReferenceContext: h.cfg.ReferenceContext,
		BasePackages:     h.cfg.BasePackages,
	}, h.logger)
	result := detector.Detect()

	gen := patch.NewGenerator(h.store, patch.Config{}, luarender.New(), h.logger)
	patches := gen.Generate(result.Issues)

	report := &Report{
		AnalyzedPackages:  h.store.Packages(),
		AnalysisTimestamp: h.now().UTC().Format(time.RFC3339),
		Summary:           result.Summary,
		Issues:            result.Issues,
		DependencyGraph:   graph,
		Patches:           patches,
		Result:            result,
	}
	if report.AnalyzedPackages == nil {
		report.AnalyzedPackages = []string{}
	}
	if report.Issues == nil {
		report.Issues = []conflict.Issue{}
	}
	if report.Patches == nil {
		report.Patches = []patch.Suggestion{}
	}
	h.logger.Info("analysis complete",
		"prototypes", result.Summary.Total,
		"conflicted", result.Summary.Conflicted,
		"issues", len(report.Issues),
		"patches", len(report.Patches))
	return report, nil
}

// contexts resolves the configured context table and merges in planet
// prototypes the mod set itself defines.
func (h *Harmonizer) contexts() ([]availability.Context, error) {
	configured := DefaultContexts()
	if h.cfg.ContextsFile != "" {
		loaded, err := LoadContexts(h.cfg.ContextsFile)
		if err != nil {
			return nil, err
		}
		configured = loaded
	}
	return mergeContexts(configured, availability.DeriveContexts(h.store)), nil
}
