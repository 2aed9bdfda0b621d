package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/repovec/internal/core/domain"
)

var (
	flagIngestForce    bool
	flagIngestSkipSync bool
	flagIngestLimit    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [repo-url]",
	Short: "Sync, scan, embed, and store a repository",
	Long: `Runs the full ingestion pipeline: materialize the work tree, scan and
normalize documents, attach embeddings, and write rows to the vector
store. Unchanged files are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&flagIngestForce, "force", false, "reprocess all files, ignoring fingerprints")
	ingestCmd.Flags().BoolVar(&flagIngestSkipSync, "skip-sync", false, "use the existing work tree without fetching")
	ingestCmd.Flags().IntVar(&flagIngestLimit, "limit", 0, "process at most N files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	url, err := defaultSourceURL(args)
	if err != nil {
		return err
	}

	progress := func(p domain.Progress) {
		switch p.State {
		case domain.StateDone, domain.StateFailed:
			cmd.Printf("\r%s: %s\n", p.State, p.Message)
		default:
			cmd.Printf("\r%s: %s", p.State, p.Message)
		}
	}

	report, err := ingestService.Ingest(cmd.Context(), domain.IngestSpec{
		URL:      url,
		Force:    flagIngestForce,
		SkipSync: flagIngestSkipSync,
		Limit:    flagIngestLimit,
	}, progress)
	if err != nil {
		return err
	}

	cmd.Printf("Inserted %d, skipped %d, %d errors (commit %s)\n",
		report.FilesInserted, report.FilesSkipped, len(report.Errors), short(report.Commit))
	for _, fe := range report.Errors {
		cmd.Printf("  %s: %s\n", fe.RelativePath, fe.Code)
	}
	return nil
}

func short(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
