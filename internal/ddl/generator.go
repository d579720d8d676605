// Package ddl turns column descriptions into the ordered T-SQL statements
// that apply them. It performs no I/O; executing the statements is the
// caller's job.
package ddl

import (
	"fmt"
	"strings"

	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// DefaultSchema is used when a Generator has no schema configured.
const DefaultSchema = "dbo"

// Statement is one schema-modification statement of a logical edit.
type Statement struct {
	Table      string        `json:"table,omitempty"`
	SQL        string        `json:"sql"`
	Args       []interface{} `json:"args,omitempty"`
	Commit     bool          `json:"commit"`
	Standalone bool          `json:"standalone,omitempty"`
}

// Generator builds statements for tables in one schema.
type Generator struct {
	Schema string
}

// New returns a Generator for schema, falling back to dbo.
func New(schema string) Generator {
	return Generator{Schema: schema}
}

func (g Generator) schema() string {
	if g.Schema == "" {
		return DefaultSchema
	}
	return g.Schema
}

// qualify returns the schema-qualified, quoted table name.
func (g Generator) qualify(table string) string {
	return QuoteIdent(g.schema()) + "." + QuoteIdent(table)
}

// AddColumn returns the statements that add spec to table. A foreign key
// adds a second constraint statement.
func (g Generator) AddColumn(table string, spec model.ColumnSpec) ([]Statement, error) {
	spec = spec.Normalized()
	if err := g.check(table, spec); err != nil {
		return nil, err
	}

	stmts := []Statement{g.addStatement(table, spec)}
	if spec.IsForeignKey {
		stmts = append(stmts, g.addForeignKey(table, spec))
	}
	return markCommit(stmts), nil
}

// EditColumn returns the statements that turn prior into spec. A rename
// always comes first. SQL Server refuses ALTER COLUMN while a key
// constraint depends on the column, so constraints that no longer apply or
// that cover a retyped column are dropped before the column is redefined
// and added back after it. Constraints are dropped by the name stored on
// prior when the catalog supplied one.
func (g Generator) EditColumn(table string, prior, spec model.ColumnSpec) ([]Statement, error) {
	spec = spec.Normalized()
	prior = prior.Normalized()
	if err := g.check(table, spec); err != nil {
		return nil, err
	}
	if err := identifier("prior column", prior.Name); err != nil {
		return nil, err
	}

	var stmts []Statement
	qt := g.qualify(table)
	col := QuoteIdent(spec.Name)

	if prior.Name != spec.Name {
		stmts = append(stmts, Statement{
			Table: table,
			SQL:   "EXEC sp_rename @objname = @p1, @newname = @p2, @objtype = 'COLUMN'",
			Args:  []interface{}{g.qualify(table) + "." + QuoteIdent(prior.Name), spec.Name},
		})
	}

	recreate := spec.IsComputed && (!prior.IsComputed || prior.ComputedFormula != spec.ComputedFormula) ||
		!spec.IsComputed && prior.IsComputed
	retyped := !prior.IsComputed && !spec.IsComputed &&
		(!sqltype.Equivalent(prior.Type, spec.Type) || prior.EffectiveNullable() != spec.EffectiveNullable())

	fkChanged := prior.IsForeignKey != spec.IsForeignKey ||
		spec.IsForeignKey && (!strings.EqualFold(prior.RefTable, spec.RefTable) || !strings.EqualFold(prior.RefColumn, spec.RefColumn))
	keepsPK := prior.IsPrimaryKey && spec.IsPrimaryKey
	keepsFK := prior.IsForeignKey && !fkChanged

	if prior.IsForeignKey && (fkChanged || recreate || retyped) {
		stmts = append(stmts, g.dropConstraint(table, constraintName(prior.ForeignKeyConstraint, foreignKeyName(table, prior.Name))))
	}
	if prior.IsPrimaryKey && (!spec.IsPrimaryKey || recreate || retyped) {
		stmts = append(stmts, g.dropConstraint(table, constraintName(prior.PrimaryKeyConstraint, "PK_"+prior.Name)))
	}

	switch {
	case recreate:
		stmts = append(stmts,
			Statement{Table: table, SQL: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", qt, col)},
			g.addStatement(table, spec),
		)
	case spec.IsComputed:
	case retyped || !(keepsPK || keepsFK):
		// An unchanged column that still carries a key is left alone.
		stmts = append(stmts, Statement{
			Table: table,
			SQL:   fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", qt, col, sqltype.Render(spec.Type), nullClause(spec)),
		})
	}

	// A recreated plain column carries PRIMARY KEY inline.
	if spec.IsPrimaryKey && !recreate && (!prior.IsPrimaryKey || retyped) {
		stmts = append(stmts, Statement{
			Table: table,
			SQL:   fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", qt, QuoteIdent("PK_"+spec.Name), col),
		})
	}
	if spec.IsForeignKey && (fkChanged || recreate || retyped) {
		stmts = append(stmts, g.addForeignKey(table, spec))
	}

	return markCommit(stmts), nil
}

func (g Generator) dropConstraint(table, name string) Statement {
	return Statement{
		Table: table,
		SQL:   fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", g.qualify(table), QuoteIdent(name)),
	}
}

// constraintName prefers the stored name over the derived one.
func constraintName(stored, derived string) string {
	if stored != "" {
		return stored
	}
	return derived
}

// DropColumn returns the statement that removes a column.
func (g Generator) DropColumn(table, name string) ([]Statement, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "missing column name"}
	}
	if err := identifier("table", table); err != nil {
		return nil, err
	}
	if err := identifier("name", name); err != nil {
		return nil, err
	}
	return []Statement{{
		Table:  table,
		SQL:    fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", g.qualify(table), QuoteIdent(name)),
		Commit: true,
	}}, nil
}

// CreateDatabase returns the statement that creates a database. SQL Server
// refuses CREATE DATABASE inside a transaction, so it is Standalone.
func (g Generator) CreateDatabase(name string) ([]Statement, error) {
	name = strings.TrimSpace(name)
	if err := identifier("database", name); err != nil {
		return nil, err
	}
	return []Statement{{
		SQL:        "CREATE DATABASE " + QuoteIdent(name),
		Commit:     true,
		Standalone: true,
	}}, nil
}

// CreateTable returns the statement that creates a table with a single
// identity primary key column named ID. idType defaults to INT and must be
// one of the integer key types.
func (g Generator) CreateTable(table, idType string) ([]Statement, error) {
	table = strings.TrimSpace(table)
	if err := identifier("table", table); err != nil {
		return nil, err
	}
	if strings.TrimSpace(idType) == "" {
		idType = "INT"
	}
	idType = strings.ToUpper(strings.TrimSpace(idType))
	if !sqltype.IsNumericKey(idType) {
		return nil, &model.ValidationError{
			Field:  "id_type",
			Reason: fmt.Sprintf("id type %s is not an integer key type", idType),
		}
	}
	return []Statement{{
		Table:  table,
		SQL:    fmt.Sprintf("CREATE TABLE %s (%s %s IDENTITY(1,1) PRIMARY KEY)", g.qualify(table), QuoteIdent("ID"), idType),
		Commit: true,
	}}, nil
}

// DropTable returns the statement that drops a table.
func (g Generator) DropTable(table string) ([]Statement, error) {
	table = strings.TrimSpace(table)
	if err := identifier("table", table); err != nil {
		return nil, err
	}
	return []Statement{{
		Table:  table,
		SQL:    "DROP TABLE " + g.qualify(table),
		Commit: true,
	}}, nil
}

// check validates spec and every identifier it will emit.
func (g Generator) check(table string, spec model.ColumnSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := identifier("table", table); err != nil {
		return err
	}
	if err := identifier("name", spec.Name); err != nil {
		return err
	}
	if !spec.IsComputed {
		if err := validateTypeName(spec.Type.Base); err != nil {
			return &model.ValidationError{Field: "type", Reason: err.Error()}
		}
	}
	if spec.IsForeignKey {
		if err := identifier("ref_table", spec.RefTable); err != nil {
			return err
		}
		if err := identifier("ref_column", spec.RefColumn); err != nil {
			return err
		}
	}
	return nil
}

// addStatement renders ADD for a computed or plain column. Optional clauses
// are joined with single spaces so absent ones leave no gap.
func (g Generator) addStatement(table string, spec model.ColumnSpec) Statement {
	qt := g.qualify(table)
	col := QuoteIdent(spec.Name)
	if spec.IsComputed {
		return Statement{Table: table, SQL: fmt.Sprintf("ALTER TABLE %s ADD %s AS %s", qt, col, spec.ComputedFormula)}
	}

	parts := []string{"ALTER TABLE", qt, "ADD", col, sqltype.Render(spec.Type)}
	if spec.NeedsIdentity() {
		parts = append(parts, "IDENTITY(1,1)")
	}
	if spec.IsPrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	parts = append(parts, nullClause(spec))
	return Statement{Table: table, SQL: strings.Join(parts, " ")}
}

func (g Generator) addForeignKey(table string, spec model.ColumnSpec) Statement {
	return Statement{
		Table: table,
		SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			g.qualify(table),
			QuoteIdent(foreignKeyName(table, spec.Name)),
			QuoteIdent(spec.Name),
			g.qualify(spec.RefTable),
			QuoteIdent(spec.RefColumn),
		),
	}
}

func foreignKeyName(table, column string) string {
	return "FK_" + table + "_" + column
}

func nullClause(spec model.ColumnSpec) string {
	if spec.EffectiveNullable() {
		return "NULL"
	}
	return "NOT NULL"
}

func identifier(field, name string) error {
	if err := ValidateIdentifier(name); err != nil {
		return &model.ValidationError{Field: field, Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	return nil
}

// markCommit sets the commit boundary on the last statement of a group.
func markCommit(stmts []Statement) []Statement {
	if len(stmts) > 0 {
		stmts[len(stmts)-1].Commit = true
	}
	return stmts
}
