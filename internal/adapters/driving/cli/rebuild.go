package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sous/internal/core/ports/driving"
)

// progressInterval is how often rebuild progress is polled.
var progressInterval = 500 * time.Millisecond

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-scan the bucket and synchronise the index",
	Long: `Scans every markdown object in the configured bucket, records new content
versions and brings the vector index in line with the active versions.
Unchanged objects are skipped, so rebuild is safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	if err := requireService(ingestService != nil, "ingest"); err != nil {
		return err
	}

	cmd.Println("Rebuilding index...")
	report, err := rebuildWithProgress(cmd.Context(), cmd, ingestService)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	cmd.Printf("Scanned %d objects: %d created, %d updated, %d unchanged, %d skipped, %d failed\n",
		report.Scanned, report.Created, report.Updated, report.Unchanged, report.Skipped, report.Failed)
	cmd.Printf("Fragments: %d added, %d deleted\n", report.FragmentsAdded, report.FragmentsDeleted)
	if report.Restored > 0 {
		cmd.Printf("Restored %d fragments missing from the index\n", report.Restored)
	}
	if report.AddErr != nil {
		cmd.Printf("Warning: index add failed: %v\n", report.AddErr)
	}
	if report.DeleteErr != nil {
		cmd.Printf("Warning: index delete failed: %v\n", report.DeleteErr)
	}
	return nil
}

// rebuildWithProgress runs a rebuild while displaying progress updates.
func rebuildWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	ingest driving.IngestService,
) (*driving.RebuildReport, error) {
	type outcome struct {
		report *driving.RebuildReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := ingest.Rebuild(ctx)
		done <- outcome{r, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case out := <-done:
			if status := ingest.Status(ctx); status != nil && status.DocumentsProcessed > 0 {
				cmd.Printf("\rProcessed %d documents (%d errors)\n",
					status.DocumentsProcessed, status.ErrorCount)
			}
			return out.report, out.err
		case <-ticker.C:
			if status := ingest.Status(ctx); status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\rProcessing... %d documents", status.DocumentsProcessed)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}
