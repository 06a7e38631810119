package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Show the registry owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		return printJSON(map[string]string{"owner": svc.Owner().Hex()})
	},
}

var ownerTransferCmd = &cobra.Command{
	Use:   "transfer <address>",
	Short: "Transfer registry ownership",
	Long: `Hand the registry to a new owner. The caller is the configured owner.

Examples:
  registrar owner transfer 0xAbC...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid address %q", args[0])
		}

		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		newOwner := common.HexToAddress(args[0])
		if err := svc.TransferOwnership(cfg.OwnerAddress(), newOwner); err != nil {
			return err
		}

		fmt.Printf("ownership transferred to %s\n", newOwner.Hex())
		fmt.Println("update the owner setting in your config to keep mutating entries")
		return nil
	},
}

var ownerRenounceCmd = &cobra.Command{
	Use:   "renounce",
	Short: "Renounce registry ownership",
	Long: `Set the owner to the zero address. After this no caller can update or
destroy existing entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := svc.RenounceOwnership(cfg.OwnerAddress()); err != nil {
			return err
		}

		fmt.Println("ownership renounced")
		return nil
	},
}

func init() {
	ownerCmd.AddCommand(ownerTransferCmd)
	ownerCmd.AddCommand(ownerRenounceCmd)
	rootCmd.AddCommand(ownerCmd)
}
