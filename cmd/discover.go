package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <viewer-url>",
	Short: "Inspect the layers discoverable from a map-viewer URL",
	Long:  "Fetches the viewer's portal item and web map and prints the zoning and future-land-use layer candidates with their scores. Useful when adding a city to city_apps.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(countyFlag)
		if err != nil {
			return err
		}

		result, err := env.Discovery.Discover(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "discover layers")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
