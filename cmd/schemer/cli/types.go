package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/schemer/internal/sqltype"
)

func newTypesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the column types and the parameters each takes",
		RunE: func(cmd *cobra.Command, args []string) error {
			type typeRow struct {
				Name string            `json:"name"`
				Kind sqltype.ParamKind `json:"kind"`
			}
			names := sqltype.Names()
			rows := make([]typeRow, len(names))
			for i, n := range names {
				rows[i] = typeRow{Name: n, Kind: sqltype.KindOf(n)}
			}

			if jsonOutput {
				return printJSON(os.Stdout, rows)
			}
			fmt.Printf("%-18s %s\n", "TYPE", "PARAMETERS")
			fmt.Printf("%-18s %s\n", "----", "----------")
			for _, r := range rows {
				fmt.Printf("%-18s %s\n", r.Name, r.Kind)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
