package cmd

import (
	"github.com/spf13/cobra"
)

var updateMetadata string

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace an entry's metadata",
	Long: `Replace the metadata of a live entry. The caller is the configured owner;
anything else is rejected.

Examples:
  registrar update 0 --metadata ipfs://QmNew`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := svc.UpdateMetadata(cmd.Context(), cfg.OwnerAddress(), id, updateMetadata); err != nil {
			return err
		}

		entry, err := svc.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(entryToJSON(entry))
	},
}

func init() {
	updateCmd.Flags().StringVarP(&updateMetadata, "metadata", "m", "", "New metadata URI")
	_ = updateCmd.MarkFlagRequired("metadata")
	rootCmd.AddCommand(updateCmd)
}
