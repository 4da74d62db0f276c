package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <parcel-id>",
	Short: "Look up zoning and future land use for one parcel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(countyFlag)
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Lookup(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "lookup %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}

		if !result.Zoning.Success {
			zap.L().Warn("lookup degraded",
				zap.String("parcel_id", result.ParcelID),
				zap.String("detail", result.Zoning.Detail),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
