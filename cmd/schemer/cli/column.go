package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/faucetdb/schemer/internal/diff"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// tableTarget holds the flags that address one table.
type tableTarget struct {
	profile  string
	database string
	table    string
}

func newColumnCmd() *cobra.Command {
	var (
		target     tableTarget
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "column",
		Aliases: []string{"col"},
		Short:   "List, add, edit and drop the columns of a table",
		Long: `Column commands open a table, apply one edit as a single statement group and
print the re-read column list with what changed.`,
		Example: `  schemer column add -p local -d Shop -t Orders --name Price --type "DECIMAL(10,2)"
  schemer column add -p local -d Shop -t Orders --name Total --formula "[Qty]*[Price]"
  schemer column add -p local -d Shop -t Orders --name CustomerID --type INT --fk-table Customers --fk-column ID
  schemer column edit Status -p local -d Shop -t Orders --type "NVARCHAR(50)" --nullable=false
  schemer column drop Status -p local -d Shop -t Orders --yes`,
	}
	cmd.PersistentFlags().StringVarP(&target.profile, "profile", "p", "", "Connection profile")
	cmd.PersistentFlags().StringVarP(&target.database, "database", "d", "", "Database (default: the profile's)")
	cmd.PersistentFlags().StringVarP(&target.table, "table", "t", "", "Table")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newColumnListCmd(&target, &jsonOutput))
	cmd.AddCommand(newColumnKeysCmd(&target, &jsonOutput))
	cmd.AddCommand(newColumnAddCmd(&target, &jsonOutput))
	cmd.AddCommand(newColumnEditCmd(&target, &jsonOutput))
	cmd.AddCommand(newColumnDropCmd(&target, &jsonOutput))
	return cmd
}

// columnFlags are the column definition flags shared by add and edit.
type columnFlags struct {
	name     string
	typ      string
	pk       bool
	nullable bool
	computed bool
	formula  string
	fkTable  string
	fkColumn string
}

func (f *columnFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Column name")
	fs.StringVar(&f.typ, "type", "", `Data type, e.g. INT, VARCHAR(50), VARCHAR(MAX), DECIMAL(10,2)`)
	fs.BoolVar(&f.pk, "primary-key", false, "Make this the primary key (numeric keys get IDENTITY(1,1))")
	fs.BoolVar(&f.nullable, "nullable", true, "Allow NULL (ignored for primary keys)")
	fs.BoolVar(&f.computed, "computed", false, "Computed column; requires --formula")
	fs.StringVar(&f.formula, "formula", "", "T-SQL expression of a computed column")
	fs.StringVar(&f.fkTable, "fk-table", "", "Referenced table of a foreign key")
	fs.StringVar(&f.fkColumn, "fk-column", "", "Referenced key column of a foreign key")
}

// apply overlays the flags the user set on base. A formula implies a
// computed column and a referenced table implies a foreign key.
func (f *columnFlags) apply(fs *pflag.FlagSet, base model.ColumnSpec) model.ColumnSpec {
	spec := base
	if fs.Changed("name") {
		spec.Name = f.name
	}
	if fs.Changed("type") {
		spec.Type = sqltype.Parse(f.typ)
	}
	if fs.Changed("primary-key") {
		spec.IsPrimaryKey = f.pk
	}
	if fs.Changed("nullable") {
		spec.IsNullable = f.nullable
	}
	if fs.Changed("computed") {
		spec.IsComputed = f.computed
	}
	if fs.Changed("formula") {
		spec.ComputedFormula = f.formula
		spec.IsComputed = spec.IsComputed || strings.TrimSpace(f.formula) != ""
	}
	if fs.Changed("fk-table") {
		spec.RefTable = f.fkTable
		spec.IsForeignKey = strings.TrimSpace(f.fkTable) != ""
	}
	if fs.Changed("fk-column") {
		spec.RefColumn = f.fkColumn
	}
	return spec
}

// ---------- column list ----------

func newColumnListCmd(target *tableTarget, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the columns of a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd.Context(), *target, func(ctx context.Context, s *session.Session, cols []model.ColumnSpec) error {
				if *jsonOutput {
					return printJSON(os.Stdout, cols)
				}
				printColumns(os.Stdout, cols)
				return nil
			})
		},
	}
}

// ---------- column keys ----------

func newColumnKeysCmd(target *tableTarget, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the key columns a foreign key can reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if target.table == "" {
				return fmt.Errorf("--table is required")
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.session(ctx, target.profile, target.database)
			if err != nil {
				return err
			}
			keys, err := s.ReferenceColumns(ctx, target.table)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return printJSON(os.Stdout, keys)
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

// ---------- column add ----------

func newColumnAddCmd(target *tableTarget, jsonOutput *bool) *cobra.Command {
	var flags columnFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a column",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := flags.apply(cmd.Flags(), model.ColumnSpec{IsNullable: true})
			return withTable(cmd.Context(), *target, func(ctx context.Context, s *session.Session, before []model.ColumnSpec) error {
				after, err := s.AddColumn(ctx, spec)
				if err != nil {
					return err
				}
				return printEdit(*jsonOutput, s, before, after)
			})
		},
	}
	flags.bind(cmd.Flags())
	cmd.MarkFlagRequired("name")
	return cmd
}

// ---------- column edit ----------

func newColumnEditCmd(target *tableTarget, jsonOutput *bool) *cobra.Command {
	var flags columnFlags

	cmd := &cobra.Command{
		Use:   "edit <column>",
		Short: "Redefine a column; flags left out keep their current value",
		Long: `Redefine an existing column. --name renames it. Only the flags given change;
everything else keeps the column's current definition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd.Context(), *target, func(ctx context.Context, s *session.Session, before []model.ColumnSpec) error {
				current, ok := model.FindColumn(before, args[0])
				if !ok {
					return fmt.Errorf("column %q not found in table %q", args[0], target.table)
				}
				after, err := s.EditColumn(ctx, current.Name, flags.apply(cmd.Flags(), current))
				if err != nil {
					return err
				}
				return printEdit(*jsonOutput, s, before, after)
			})
		},
	}
	flags.bind(cmd.Flags())
	return cmd
}

// ---------- column drop ----------

func newColumnDropCmd(target *tableTarget, jsonOutput *bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "drop <column>",
		Aliases: []string{"rm"},
		Short:   "Drop a column and its data",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd.Context(), *target, func(ctx context.Context, s *session.Session, before []model.ColumnSpec) error {
				if _, ok := model.FindColumn(before, args[0]); !ok {
					return fmt.Errorf("column %q not found in table %q", args[0], target.table)
				}
				if !yes && !confirm(fmt.Sprintf("Drop column %q of %q?", args[0], target.table)) {
					return fmt.Errorf("aborted")
				}
				after, err := s.DeleteColumn(ctx, args[0])
				if err != nil {
					return err
				}
				return printEdit(*jsonOutput, s, before, after)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// withTable opens the targeted table and hands its columns to fn.
func withTable(ctx context.Context, target tableTarget, fn func(context.Context, *session.Session, []model.ColumnSpec) error) error {
	if target.table == "" {
		return fmt.Errorf("--table is required")
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx, target.profile, target.database)
	if err != nil {
		return err
	}
	cols, err := s.Open(ctx, target.table)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %q not found in database %q", target.table, s.Target().Database)
	}
	return fn(ctx, s, cols)
}

func printEdit(jsonOutput bool, s *session.Session, before, after []model.ColumnSpec) error {
	changes := diff.Columns(before, after)
	if jsonOutput {
		return printJSON(os.Stdout, map[string]interface{}{
			"database": s.Target().Database,
			"table":    s.Target().Table,
			"columns":  after,
			"changes":  changes,
			"breaking": diff.HasBreaking(changes),
		})
	}

	printColumns(os.Stdout, after)
	fmt.Println()
	printChanges(os.Stdout, changes)
	return nil
}

func printColumns(w io.Writer, cols []model.ColumnSpec) {
	fmt.Fprintf(w, "%-24s %-20s %-5s %-4s %s\n", "NAME", "TYPE", "NULL", "PK", "DETAIL")
	fmt.Fprintf(w, "%-24s %-20s %-5s %-4s %s\n", "----", "----", "----", "--", "------")
	for _, c := range cols {
		typ := sqltype.Render(c.Type)
		detail := ""
		switch {
		case c.IsComputed:
			typ = "(computed)"
			detail = "AS " + c.ComputedFormula
		case c.IsForeignKey:
			detail = fmt.Sprintf("-> %s(%s)", c.RefTable, c.RefColumn)
		}
		fmt.Fprintf(w, "%-24s %-20s %-5s %-4s %s\n", c.Name, typ, yesNo(c.EffectiveNullable()), yesNo(c.IsPrimaryKey), detail)
	}
}

func printChanges(w io.Writer, changes []diff.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}
	for _, c := range changes {
		marker := "~"
		if c.Kind == diff.Breaking {
			marker = "!"
		}
		fmt.Fprintf(w, "%s %s\n", marker, c.Description)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
