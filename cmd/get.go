package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

var (
	listAll   bool
	listLimit int
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a registry entry",
	Long: `Show a single entry by identifier, including tombstoned ones.

Examples:
  registrar get 0
  registrar get 3 | jq .metadata_uri`,
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

		entry, err := svc.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(entryToJSON(entry))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry entries",
	Long: `List entries ordered by identifier. Tombstoned entries are hidden unless
--all is given.

Examples:
  registrar list
  registrar list --all --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()

		entries, err := svc.List(cmd.Context(), domain.ListFilter{
			IncludeDestroyed: listAll,
			Limit:            listLimit,
		})
		if err != nil {
			return err
		}

		out := make([]entryJSON, 0, len(entries))
		for _, entry := range entries {
			out = append(out, entryToJSON(entry))
		}
		return printJSON(out)
	},
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be a non-negative integer", raw)
	}
	return id, nil
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include tombstoned entries")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Limit the number of entries (0 = no limit)")
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
}
