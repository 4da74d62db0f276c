package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/parcel-cli/internal/codes"
)

var domainsKind string

var domainsCmd = &cobra.Command{
	Use:   "domains <layer-url>",
	Short: "Show the resolved code field and coded-value domain of a layer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kind := codes.Kind(domainsKind)
		if kind != codes.Zoning && kind != codes.FLU {
			return eris.Errorf("unknown kind %q (want zoning or flu)", domainsKind)
		}

		env, err := initLookup(countyFlag)
		if err != nil {
			return err
		}

		res, err := env.Codes.ResolveField(ctx, args[0], kind)
		if err != nil {
			return eris.Wrap(err, "resolve code field")
		}

		out := struct {
			Field string        `json:"field"`
			Codes codes.CodeMap `json:"codes"`
		}{Field: res.FieldName, Codes: res.Map}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	domainsCmd.Flags().StringVar(&domainsKind, "kind", "zoning", "classification kind: zoning or flu")
	rootCmd.AddCommand(domainsCmd)
}
