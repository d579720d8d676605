package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/model"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles", "conn"},
		Short:   "Manage SQL Server connection profiles",
		Long:    "Add, list, remove and test the connection profiles other commands refer to with --profile.",
	}

	cmd.AddCommand(newProfileAddCmd())
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileRemoveCmd())
	cmd.AddCommand(newProfileTestCmd())

	return cmd
}

// ---------- profile add ----------

func newProfileAddCmd() *cobra.Command {
	var p model.ConnectionProfile

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a connection profile",
		Long: `Add a SQL Server connection profile. Omitted name and server are prompted for.
When --user is given without --password the password is read from the terminal
without echo. Omit --user to use integrated authentication.`,
		Example: `  schemer profile add --name local --server localhost --user sa
  schemer profile add --name prod --server sql01 --port 1433 --database Shop --params "encrypt=true"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileAdd(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "Profile name (unique identifier)")
	cmd.Flags().StringVar(&p.Label, "label", "", "Human-readable label (defaults to name)")
	cmd.Flags().StringVar(&p.Driver, "driver", "mssql", "Driver name")
	cmd.Flags().StringVar(&p.Server, "server", "", "SQL Server host, optionally host\\instance")
	cmd.Flags().IntVar(&p.Port, "port", 0, "TCP port (default 1433)")
	cmd.Flags().StringVar(&p.User, "user", "", "SQL login")
	cmd.Flags().StringVar(&p.Password, "password", "", "SQL login password (prompted if omitted)")
	cmd.Flags().StringVar(&p.Database, "database", "", "Default database")
	cmd.Flags().StringVar(&p.Schema, "schema", "", "Schema holding the edited tables (default from config, dbo)")
	cmd.Flags().StringVar(&p.Params, "params", "", "Extra connection parameters as a query string")

	return cmd
}

func runProfileAdd(ctx context.Context, p model.ConnectionProfile) error {
	if p.Name == "" {
		fmt.Print("Profile name: ")
		fmt.Scanln(&p.Name)
	}
	if p.Server == "" {
		fmt.Print("Server: ")
		fmt.Scanln(&p.Server)
	}
	if p.Name == "" || p.Server == "" {
		return fmt.Errorf("name and server are required")
	}
	if p.Label == "" {
		p.Label = p.Name
	}

	if p.User != "" && p.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		p.Password = string(pwBytes)
	}

	if !slices.Contains(newRegistry().Drivers(), p.Driver) {
		return fmt.Errorf("unsupported driver %q; supported: %v", p.Driver, newRegistry().Drivers())
	}
	if _, err := config.ConnectorConfig(p); err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if p.Schema == "" {
		p.Schema = a.cfg.Edit.Schema
	}
	if err := a.store.CreateProfile(ctx, &p); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	fmt.Printf("Added profile %q (server=%s, id=%d)\n", p.Name, p.Server, p.ID)
	return nil
}

// ---------- profile list ----------

func newProfileListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List connection profiles",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runProfileList(ctx context.Context, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	profiles, err := a.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	for i := range profiles {
		profiles[i] = profiles[i].Redacted()
	}

	if jsonOutput {
		return printJSON(os.Stdout, profiles)
	}

	if len(profiles) == 0 {
		fmt.Println("No profiles configured. Use 'schemer profile add' to add one.")
		return nil
	}

	fmt.Printf("%-20s %-30s %-16s %-20s %-8s\n", "NAME", "SERVER", "USER", "DATABASE", "SCHEMA")
	fmt.Printf("%-20s %-30s %-16s %-20s %-8s\n", "----", "------", "----", "--------", "------")
	for _, p := range profiles {
		server := p.Server
		if p.Port > 0 {
			server = fmt.Sprintf("%s:%d", p.Server, p.Port)
		}
		user := p.User
		if user == "" {
			user = "(integrated)"
		}
		fmt.Printf("%-20s %-30s %-16s %-20s %-8s\n", p.Name, server, user, p.Database, p.Schema)
	}
	return nil
}

// ---------- profile remove ----------

func newProfileRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a connection profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileRemove(cmd.Context(), args[0])
		},
	}
}

func runProfileRemove(ctx context.Context, name string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteProfile(ctx, name); err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}

	fmt.Printf("Removed profile %q\n", name)
	return nil
}

// ---------- profile test ----------

func newProfileTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test a connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileTest(cmd.Context(), args[0])
		},
	}
}

func runProfileTest(ctx context.Context, name string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, name, "")
	if err != nil {
		return err
	}

	fmt.Printf("Testing profile %q...\n", name)
	dbs, err := s.ListDatabases(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Connection successful. %d user database(s) visible.\n", len(dbs))
	return nil
}
