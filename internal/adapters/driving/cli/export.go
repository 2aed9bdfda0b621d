package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagExportOutput string
	flagExportPretty bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export documents and registry as JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportOutput, "output", "export", "output directory")
	exportCmd.Flags().BoolVar(&flagExportPretty, "pretty", false, "indent the JSON output")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := exporter.Export(cmd.Context(), flagExportOutput, flagExportPretty); err != nil {
		return err
	}
	cmd.Printf("Exported to %s\n", flagExportOutput)
	return nil
}
