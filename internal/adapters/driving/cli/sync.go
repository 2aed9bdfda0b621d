package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/repovec/internal/adapters/driven/gitsync"
	"github.com/custodia-labs/repovec/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [repo-url]",
	Short: "Clone or fast-forward a repository work tree",
	Long: `Materializes the repository at the configured (or given) URL in the
local work tree without ingesting anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	url, err := defaultSourceURL(args)
	if err != nil {
		return err
	}
	cfg := configStore.Get()

	syncer, err := gitsync.New(cfg.DataRoot)
	if err != nil {
		return err
	}

	localPath := filepath.Join(reposDir(cfg), domain.RepoName(url))
	cmd.Printf("Syncing %s...\n", domain.RedactURL(url))
	commit, err := syncer.Materialize(cmd.Context(), url, cfg.Repository.Branch, localPath)
	if err != nil {
		return err
	}
	cmd.Printf("Work tree at %s (%s)\n", localPath, commit[:8])
	return nil
}
