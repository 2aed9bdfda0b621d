package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify vector store presence and schema",
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	report, err := repositoryService.Verify(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Table present: %v\n", report.TablePresent)
	cmd.Printf("Schema OK:     %v\n", report.SchemaOK)
	cmd.Printf("Embedding dim: %d\n", report.EmbeddingDim)
	if !report.OK {
		return fmt.Errorf("database verification failed")
	}
	cmd.Println("Database is ready.")
	return nil
}
