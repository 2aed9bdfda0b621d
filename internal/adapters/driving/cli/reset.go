package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagResetConfirm bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored document",
	Long: `Removes all rows from the vector table. The registry keeps its entries;
remove them individually if they should go too. Requires --confirm.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&flagResetConfirm, "confirm", false, "actually perform the reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !flagResetConfirm {
		return fmt.Errorf("refusing to reset without --confirm")
	}
	if err := vectorStore.Reset(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Vector store reset.")
	return nil
}
