package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// Catalog reads schema metadata for one SQL Server schema and turns it into
// model.ColumnSpec values.
type Catalog struct {
	Schema string
}

// NewCatalog returns a Catalog for schema, falling back to dbo.
func NewCatalog(schema string) Catalog {
	if schema == "" {
		schema = "dbo"
	}
	return Catalog{Schema: schema}
}

func (c Catalog) schema() string {
	if c.Schema == "" {
		return "dbo"
	}
	return c.Schema
}

// columnRow holds one row of the column metadata query.
type columnRow struct {
	ColumnName string  `db:"COLUMN_NAME"`
	DataType   string  `db:"DATA_TYPE"`
	MaxLength  *int64  `db:"CHARACTER_MAXIMUM_LENGTH"`
	Precision  *int64  `db:"NUMERIC_PRECISION"`
	Scale      *int64  `db:"NUMERIC_SCALE"`
	IsNullable flag    `db:"IS_NULLABLE"`
	Position   int     `db:"ORDINAL_POSITION"`
	IsIdentity flag    `db:"is_identity"`
	IsComputed flag    `db:"is_computed"`
	Definition *string `db:"definition"`
}

// pkRow holds one column of the PRIMARY KEY constraint.
type pkRow struct {
	ColumnName     string `db:"COLUMN_NAME"`
	ConstraintName string `db:"CONSTRAINT_NAME"`
}

// fkRow holds one foreign key column of the table.
type fkRow struct {
	ColumnName       string `db:"COLUMN_NAME"`
	ConstraintName   string `db:"CONSTRAINT_NAME"`
	ReferencedTable  string `db:"REFERENCED_TABLE_NAME"`
	ReferencedColumn string `db:"REFERENCED_COLUMN_NAME"`
}

const columnsQuery = `SELECT
		c.COLUMN_NAME,
		c.DATA_TYPE,
		c.CHARACTER_MAXIMUM_LENGTH,
		c.NUMERIC_PRECISION,
		c.NUMERIC_SCALE,
		c.IS_NULLABLE,
		c.ORDINAL_POSITION,
		sc.is_identity,
		sc.is_computed,
		cc.definition
	FROM INFORMATION_SCHEMA.COLUMNS c
	LEFT JOIN sys.columns sc
		ON sc.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
		AND sc.name = c.COLUMN_NAME
	LEFT JOIN sys.computed_columns cc
		ON cc.object_id = sc.object_id AND cc.column_id = sc.column_id
	WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
	ORDER BY c.ORDINAL_POSITION`

const primaryKeyQuery = `SELECT kcu.COLUMN_NAME, tc.CONSTRAINT_NAME
	FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
	JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		AND tc.TABLE_NAME = kcu.TABLE_NAME
	WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		AND tc.TABLE_SCHEMA = @p1
		AND tc.TABLE_NAME = @p2`

const foreignKeyQuery = `SELECT
		fk_col.name AS COLUMN_NAME,
		fk.name AS CONSTRAINT_NAME,
		pk_tab.name AS REFERENCED_TABLE_NAME,
		pk_col.name AS REFERENCED_COLUMN_NAME
	FROM sys.foreign_keys fk
	JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	JOIN sys.tables fk_tab ON fkc.parent_object_id = fk_tab.object_id
	JOIN sys.columns fk_col ON fkc.parent_object_id = fk_col.object_id AND fkc.parent_column_id = fk_col.column_id
	JOIN sys.tables pk_tab ON fkc.referenced_object_id = pk_tab.object_id
	JOIN sys.columns pk_col ON fkc.referenced_object_id = pk_col.object_id AND fkc.referenced_column_id = pk_col.column_id
	JOIN sys.schemas s ON fk_tab.schema_id = s.schema_id
	WHERE s.name = @p1 AND fk_tab.name = @p2`

const databasesQuery = `SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name`

const tablesQuery = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
	ORDER BY TABLE_NAME`

// Columns returns the columns of table in ordinal order.
func (c Catalog) Columns(ctx context.Context, q connector.Querier, table string) ([]model.ColumnSpec, error) {
	var cols []columnRow
	if err := q.SelectContext(ctx, &cols, columnsQuery, c.schema(), table); err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", table, err)
	}

	var pks []pkRow
	if err := q.SelectContext(ctx, &pks, primaryKeyQuery, c.schema(), table); err != nil {
		return nil, fmt.Errorf("read primary key of %q: %w", table, err)
	}

	var fks []fkRow
	if err := q.SelectContext(ctx, &fks, foreignKeyQuery, c.schema(), table); err != nil {
		return nil, fmt.Errorf("read foreign keys of %q: %w", table, err)
	}

	return assemble(cols, pks, fks), nil
}

// Databases returns the user databases on the server.
func (c Catalog) Databases(ctx context.Context, q connector.Querier) ([]string, error) {
	var names []string
	if err := q.SelectContext(ctx, &names, databasesQuery); err != nil {
		return nil, fmt.Errorf("read databases: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Tables returns the base tables of the schema.
func (c Catalog) Tables(ctx context.Context, q connector.Querier) ([]string, error) {
	var names []string
	if err := q.SelectContext(ctx, &names, tablesQuery, c.schema()); err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// KeyColumns returns the key columns of table, the candidates a foreign
// key can reference.
func (c Catalog) KeyColumns(ctx context.Context, q connector.Querier, table string) ([]string, error) {
	cols, err := c.Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, col := range cols {
		if col.IsPrimaryKey {
			keys = append(keys, col.Name)
		}
	}
	return keys, nil
}

// assemble joins the metadata rows into column specs. A column is a
// primary key when it is an identity column or part of the PRIMARY KEY
// constraint. Constraint names are kept so edits can drop them after a
// rename.
func assemble(cols []columnRow, pks []pkRow, fks []fkRow) []model.ColumnSpec {
	pkMap := make(map[string]string, len(pks))
	for _, pk := range pks {
		pkMap[pk.ColumnName] = pk.ConstraintName
	}
	fkMap := make(map[string]fkRow, len(fks))
	for _, fk := range fks {
		fkMap[fk.ColumnName] = fk
	}

	specs := make([]model.ColumnSpec, 0, len(cols))
	for _, row := range cols {
		spec := model.ColumnSpec{
			Name:       row.ColumnName,
			Type:       sqltype.Parse(rawTypeText(row)),
			IsNullable: bool(row.IsNullable),
			IsComputed: bool(row.IsComputed),
		}
		if name, ok := pkMap[row.ColumnName]; ok {
			spec.IsPrimaryKey = true
			spec.PrimaryKeyConstraint = name
		} else if row.IsIdentity {
			spec.IsPrimaryKey = true
		}
		if spec.IsComputed && row.Definition != nil {
			spec.ComputedFormula = stripFormulaParens(*row.Definition)
		}
		if fk, ok := fkMap[row.ColumnName]; ok {
			spec.IsForeignKey = true
			spec.RefTable = fk.ReferencedTable
			spec.RefColumn = fk.ReferencedColumn
			spec.ForeignKeyConstraint = fk.ConstraintName
		}
		specs = append(specs, spec)
	}
	return specs
}

// rawTypeText rebuilds the declared type text from its catalog parts.
func rawTypeText(row columnRow) string {
	switch sqltype.KindOf(row.DataType) {
	case sqltype.KindLength:
		if row.MaxLength == nil {
			return row.DataType
		}
		if *row.MaxLength == sqltype.MaxLength {
			return row.DataType + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", row.DataType, *row.MaxLength)
	case sqltype.KindPrecisionScale:
		if row.Precision == nil {
			return row.DataType
		}
		if row.Scale == nil {
			return fmt.Sprintf("%s(%d)", row.DataType, *row.Precision)
		}
		return fmt.Sprintf("%s(%d,%d)", row.DataType, *row.Precision, *row.Scale)
	default:
		return row.DataType
	}
}

// stripFormulaParens removes one pair of parentheses that encloses the
// whole definition. SQL Server stores "a+b" as "(a+b)"; "(a)+(b)" is left
// alone because its outer parentheses are not a pair.
func stripFormulaParens(def string) string {
	def = strings.TrimSpace(def)
	if len(def) < 2 || def[0] != '(' || def[len(def)-1] != ')' {
		return def
	}

	depth := 0
	inString := false
	for i := 0; i < len(def); i++ {
		ch := def[i]
		if inString {
			if ch == '\'' {
				inString = false
			}
			continue
		}
		switch ch {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(def)-1 {
				return def
			}
		}
	}
	if depth != 0 {
		return def
	}
	return def[1 : len(def)-1]
}

// flag scans the boolean-ish values the catalog returns: BIT as bool,
// integers, and YES/NO text. NULL from a left join is false.
type flag bool

// Scan implements sql.Scanner.
func (f *flag) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = flag(v)
	case int64:
		*f = v != 0
	case int32:
		*f = v != 0
	case int:
		*f = v != 0
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	default:
		return fmt.Errorf("flag: unsupported type %T", src)
	}
	return nil
}

func (f *flag) parse(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "TRUE", "1", "Y", "T":
		*f = true
	case "NO", "FALSE", "0", "N", "F", "":
		*f = false
	default:
		return fmt.Errorf("flag: cannot interpret %q", s)
	}
	return nil
}
