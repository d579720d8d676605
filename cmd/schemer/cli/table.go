package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newTableCmd() *cobra.Command {
	var profile, database string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "List, create and drop tables",
	}
	cmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Connection profile")
	cmd.PersistentFlags().StringVarP(&database, "database", "d", "", "Database (default: the profile's)")

	var jsonOutput bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the tables of a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTableList(cmd.Context(), profile, database, jsonOutput)
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	var idType string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a table with an identity key column named ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTableCreate(cmd.Context(), profile, database, args[0], idType)
		},
	}
	createCmd.Flags().StringVar(&idType, "id-type", "", "Key column type (default from config, INT)")

	var yes bool
	dropCmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a table and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(fmt.Sprintf("Drop table %q and all its data?", args[0])) {
				return fmt.Errorf("aborted")
			}
			return runTableDrop(cmd.Context(), profile, database, args[0])
		},
	}
	dropCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(listCmd, createCmd, dropCmd)
	return cmd
}

func runTableList(ctx context.Context, profile, database string, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, profile, database)
	if err != nil {
		return err
	}
	names, err := s.ListTables(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(os.Stdout, names)
	}
	if len(names) == 0 {
		fmt.Printf("No tables in %q.\n", s.Target().Database)
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runTableCreate(ctx context.Context, profile, database, table, idType string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if idType == "" {
		idType = a.cfg.Edit.IDType
	}
	s, err := a.session(ctx, profile, database)
	if err != nil {
		return err
	}
	if err := s.CreateTable(ctx, table, idType); err != nil {
		return err
	}
	fmt.Printf("Created table %q with key column ID %s\n", table, strings.ToUpper(idType))
	return nil
}

func runTableDrop(ctx context.Context, profile, database, table string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, profile, database)
	if err != nil {
		return err
	}
	if err := s.DropTable(ctx, table); err != nil {
		return err
	}
	fmt.Printf("Dropped table %q\n", table)
	return nil
}

// confirm asks a yes/no question on stdin. Anything but y or yes is no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
