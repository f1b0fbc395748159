package harmonizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	pipeline "github.com/eysenfalk/factorio-harmonizer/internal/harmonizer"
	"github.com/eysenfalk/factorio-harmonizer/internal/id"
	platformcmd "github.com/eysenfalk/factorio-harmonizer/internal/platform/cmd"
	"github.com/eysenfalk/factorio-harmonizer/internal/report"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage/sqlite"
)

var (
	analyzeModsPath  string
	analyzeOutput    string
	analyzeContexts  string
	analyzeJSON      bool
	analyzeNoArchive bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a mods directory and archive the results",
		Long: `Analyze discovers mods under the mods directory, replays their
data-stage scripts in dependency order, detects conflicts, and
generates compatibility patches. The full report is archived in
the run database and written to the output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context())
		},
	}
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeModsPath, "mods", "m", "", "mods directory (default from HARMONIZER_MODS_PATH)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "out", "o", "", "output directory (default from HARMONIZER_OUTPUT_DIR)")
	analyzeCmd.Flags().StringVar(&analyzeContexts, "contexts", "", "JSON file mapping context IDs to resource lists")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON instead of text")
	analyzeCmd.Flags().BoolVar(&analyzeNoArchive, "no-archive", false, "skip writing the run to the archive database")
}

// loadConfig reads the environment configuration and applies flag
// overrides on top.
func loadConfig() (pipeline.Config, error) {
	var cfg pipeline.Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if analyzeModsPath != "" {
		cfg.ModsPath = analyzeModsPath
	}
	if analyzeOutput != "" {
		cfg.OutputDir = analyzeOutput
	}
	if analyzeContexts != "" {
		cfg.ContextsFile = analyzeContexts
	}
	return cfg, nil
}

func runAnalyze(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h := pipeline.New(cfg, logger)
	if err := h.Ingest(ctx); err != nil {
		return err
	}
	rep, err := h.Analyze(ctx)
	if err != nil {
		return err
	}
	raw, err := rep.JSON()
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}

	if !analyzeNoArchive {
		if err := archiveRun(ctx, cfg.DBPath, rep, raw); err != nil {
			return err
		}
	}

	if err := writeOutputs(cfg.OutputDir, rep, raw); err != nil {
		return err
	}

	if analyzeJSON {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Print(report.Render(rep))
	fmt.Println(SubtitleStyle.Render(fmt.Sprintf("Output written to %s", cfg.OutputDir)))
	return nil
}

func archiveRun(ctx context.Context, dbPath string, rep *pipeline.Report, raw []byte) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run archive: %w", err)
	}
	defer store.Close()

	runID, err := id.New()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	run := storage.Run{
		ID:       runID,
		Packages: rep.AnalyzedPackages,
		Issues:   len(rep.Issues),
		Critical: rep.Summary.Critical,
		Report:   raw,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	logger.Info("run archived", "id", runID, "issues", run.Issues, "critical", run.Critical)
	return nil
}

func writeOutputs(dir string, rep *pipeline.Report, raw []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), raw, 0o644); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(report.Render(rep)), 0o644); err != nil {
		return fmt.Errorf("write report.txt: %w", err)
	}
	created, err := report.WritePatchFiles(filepath.Join(dir, "patches"), rep.Patches)
	if err != nil {
		return fmt.Errorf("write patch packages: %w", err)
	}
	logger.Debug("outputs written", "dir", dir, "patch_files", len(created))
	return nil
}
