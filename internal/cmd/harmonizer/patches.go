package harmonizer

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	pipeline "github.com/eysenfalk/factorio-harmonizer/internal/harmonizer"
	"github.com/eysenfalk/factorio-harmonizer/internal/report"
)

var (
	patchesRunID string
	patchesOut   string

	patchesCmd = &cobra.Command{
		Use:   "patches",
		Short: "Write patch packages from an archived run",
		Long: `Patches re-materializes the compatibility patch packages of an
archived run as installable mod directories, without re-analyzing
the mod set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatches(cmd.Context())
		},
	}
)

func init() {
	patchesCmd.Flags().StringVar(&patchesRunID, "run", "", "run ID (default latest)")
	patchesCmd.Flags().StringVarP(&patchesOut, "out", "o", "patches", "directory to write patch packages into")
}

func runPatches(ctx context.Context) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := loadRun(ctx, store, patchesRunID)
	if err != nil {
		return err
	}
	rep, err := pipeline.ParseReport(run.Report)
	if err != nil {
		return fmt.Errorf("parse archived report: %w", err)
	}
	if len(rep.Patches) == 0 {
		fmt.Println(SubtitleStyle.Render("Run has no patches."))
		return nil
	}
	created, err := report.WritePatchFiles(patchesOut, rep.Patches)
	if err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render(fmt.Sprintf("Wrote %d patch files to %s", len(created), patchesOut)))
	for _, path := range created {
		fmt.Println("  " + path)
	}
	return nil
}
