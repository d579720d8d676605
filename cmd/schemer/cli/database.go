package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDatabaseCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:     "database",
		Aliases: []string{"db"},
		Short:   "List and create databases",
	}
	cmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Connection profile")

	var jsonOutput bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List user databases on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatabaseList(cmd.Context(), profile, jsonOutput)
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatabaseCreate(cmd.Context(), profile, args[0])
		},
	}

	cmd.AddCommand(listCmd, createCmd)
	return cmd
}

func runDatabaseList(ctx context.Context, profile string, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, profile, "")
	if err != nil {
		return err
	}
	names, err := s.ListDatabases(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(os.Stdout, names)
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runDatabaseCreate(ctx context.Context, profile, name string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, profile, "")
	if err != nil {
		return err
	}
	if err := s.CreateDatabase(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Created database %q\n", name)
	return nil
}
