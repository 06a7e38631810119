package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <id>",
	Short: "Tombstone a registry entry",
	Long: `Destroy a live entry. Its address and metadata are cleared, the address
becomes available for deterministic reuse, and the identifier stays reserved
forever. The caller is the configured owner.

Examples:
  registrar destroy 0`,
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

		if err := svc.Destroy(cmd.Context(), cfg.OwnerAddress(), id); err != nil {
			return err
		}

		fmt.Printf("entry %d destroyed\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(destroyCmd)
}
