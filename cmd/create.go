package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/registrar/internal/deployer"
)

var (
	createMetadata  string
	createSalt      string
	createSaltLabel string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a registry entry",
	Long: `Create a new entry by deploying an instance and registering it under the
next sequential identifier.

Without a salt the instance is deployed at a nonce-derived address and the
metadata may be empty. With --salt or --salt-label the address is derived
deterministically from the salt, and metadata is required.

Examples:
  # Direct creation
  registrar create --metadata ipfs://Qm...

  # Deterministic creation with an explicit 32-byte hex salt
  registrar create --salt 0xcafebabe --metadata ipfs://Qm...

  # Deterministic creation with a human-memorable label
  registrar create --salt-label UNIQUE_SALT --metadata ipfs://Qm...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()

		if createSalt == "" && createSaltLabel == "" {
			entry, err := svc.CreateDirect(ctx, createMetadata)
			if err != nil {
				return err
			}
			return printJSON(entryToJSON(entry))
		}

		salt, err := resolveSalt(createSalt, createSaltLabel)
		if err != nil {
			return err
		}
		entry, err := svc.CreateDeterministic(ctx, salt, createMetadata)
		if err != nil {
			return err
		}
		return printJSON(entryToJSON(entry))
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the address of a deterministic creation",
	Long: `Print the address a deterministic creation with the given salt would
materialize at, without deploying anything.

Examples:
  registrar predict --salt 0xcafebabe
  registrar predict --salt-label UNIQUE_SALT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		salt, err := resolveSalt(createSalt, createSaltLabel)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{
			"salt":    salt.Hex(),
			"address": svc.PredictAddress(salt).Hex(),
		})
	},
}

func resolveSalt(saltHex, saltLabel string) (deployer.Salt, error) {
	switch {
	case saltHex != "":
		salt, err := deployer.SaltFromHex(saltHex)
		if err != nil {
			return deployer.Salt{}, fmt.Errorf("parsing salt: %w", err)
		}
		return salt, nil
	case saltLabel != "":
		return deployer.SaltFromString(saltLabel), nil
	default:
		return deployer.Salt{}, errors.New("either --salt or --salt-label is required")
	}
}

func init() {
	createCmd.Flags().StringVarP(&createMetadata, "metadata", "m", "", "Metadata URI to register")
	for _, c := range []*cobra.Command{createCmd, predictCmd} {
		c.Flags().StringVarP(&createSalt, "salt", "s", "", "Hex-encoded salt for deterministic creation")
		c.Flags().StringVar(&createSaltLabel, "salt-label", "", "Derive the salt from a label")
	}
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(predictCmd)
}
