package cli

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and registry statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	stats, err := repositoryService.Stats(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Documents:     %d\n", stats.Documents)
	cmd.Printf("Repositories:  %d\n", stats.Repositories)
	cmd.Printf("Table:         %s\n", stats.TableName)
	cmd.Printf("Embedding dim: %d\n", stats.EmbeddingDim)

	entries, err := repositoryService.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		cmd.Printf("  %s %s @ %s (%d files)\n",
			entry.Name, entry.URL, entry.Reference, entry.FileCount)
	}
	return nil
}
