package harmonizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	pipeline "github.com/eysenfalk/factorio-harmonizer/internal/harmonizer"
	"github.com/eysenfalk/factorio-harmonizer/internal/report"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage/sqlite"
)

var (
	runsLimit int

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List archived analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context())
		},
	}

	reportRunID string
	reportJSON  bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Render an archived run's report",
		Long: `Report renders the latest archived run, or the run selected with
--run, without re-analyzing the mod set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context())
		},
	}
)

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to list")

	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run ID (default latest)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the archived report JSON verbatim")
}

// openArchive opens the run archive at the configured database path.
func openArchive() (*sqlite.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}
	return store, nil
}

func runRuns(ctx context.Context) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println(SubtitleStyle.Render("No archived runs."))
		return nil
	}
	for _, run := range runs {
		line := fmt.Sprintf("%s  %s  packages=%d issues=%d critical=%d",
			run.ID,
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			len(run.Packages), run.Issues, run.Critical)
		if run.Critical > 0 {
			fmt.Println(ErrorStyle.Render("! ") + line)
			continue
		}
		fmt.Println("  " + line)
	}
	return nil
}

// loadRun fetches the requested run, or the latest when id is empty.
func loadRun(ctx context.Context, store *sqlite.Store, id string) (storage.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		run, err := store.LatestRun(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return run, fmt.Errorf("no archived runs; run analyze first")
		}
		return run, err
	}
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return run, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

func runReport(ctx context.Context) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := loadRun(ctx, store, reportRunID)
	if err != nil {
		return err
	}
	if reportJSON {
		fmt.Println(string(run.Report))
		return nil
	}
	rep, err := pipeline.ParseReport(run.Report)
	if err != nil {
		return fmt.Errorf("parse archived report: %w", err)
	}
	fmt.Print(report.Render(rep))
	return nil
}
