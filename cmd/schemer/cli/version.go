package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and the supported drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			drivers := newRegistry().Drivers()
			out := cmd.OutOrStdout()

			if jsonOutput {
				return printJSON(out, map[string]interface{}{
					"version":    version,
					"commit":     commit,
					"built":      date,
					"go_version": runtime.Version(),
					"platform":   runtime.GOOS + "/" + runtime.GOARCH,
					"drivers":    drivers,
				})
			}

			fmt.Fprintf(out, "schemer %s (%s, built %s)\n", versionString(), commit, date)
			fmt.Fprintf(out, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "  drivers: %s\n", strings.Join(drivers, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
