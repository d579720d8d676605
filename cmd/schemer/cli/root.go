package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	verbose    bool
	appVersion string
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemer",
		Short: "Edit SQL Server table schemas from the command line, HTTP or MCP",
		Long: `Schemer: add, edit and drop SQL Server columns without writing DDL.

Schemer reads a table's columns from the catalog, turns column definitions into
T-SQL (renames, keys, identity, computed columns, foreign keys), runs each edit
as one statement group and re-reads the table afterwards. The same operations
are served over a REST API and as MCP tools for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./schemer.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the profile store (default: ~/.schemer)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newProfileCmd())
	cmd.AddCommand(newDatabaseCmd())
	cmd.AddCommand(newTableCmd())
	cmd.AddCommand(newColumnCmd())
	cmd.AddCommand(newTypesCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("schemer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.schemer")
	}

	viper.SetEnvPrefix("SCHEMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
