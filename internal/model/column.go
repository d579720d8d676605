package model

import (
	"strings"

	"github.com/faucetdb/schemer/internal/sqltype"
)

// ColumnSpec is the full definition of one column. It is what the CLI,
// HTTP and MCP surfaces build from operator input and what the catalog
// reader produces from live metadata.
type ColumnSpec struct {
	Name            string             `json:"name"`
	Type            sqltype.ColumnType `json:"type"`
	IsPrimaryKey    bool               `json:"is_primary_key"`
	IsNullable      bool               `json:"is_nullable"`
	IsComputed      bool               `json:"is_computed"`
	ComputedFormula string             `json:"computed_formula,omitempty"`
	IsForeignKey    bool               `json:"is_foreign_key"`
	RefTable        string             `json:"ref_table,omitempty"`
	RefColumn       string             `json:"ref_column,omitempty"`

	// Constraint names as stored on the server. Only the catalog reader
	// fills them; a rename leaves them pointing at the original name.
	PrimaryKeyConstraint string `json:"primary_key_constraint,omitempty"`
	ForeignKeyConstraint string `json:"foreign_key_constraint,omitempty"`
}

// Validate checks the definition before any statement is generated. The first
// failing rule wins.
func (c ColumnSpec) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "missing column name"}
	}
	if c.IsComputed && strings.TrimSpace(c.ComputedFormula) == "" {
		return &ValidationError{Field: "computed_formula", Reason: "missing formula"}
	}
	if c.IsForeignKey && (strings.TrimSpace(c.RefTable) == "" || strings.TrimSpace(c.RefColumn) == "") {
		return &ValidationError{Field: "ref_table", Reason: "incomplete foreign key"}
	}
	if !c.IsComputed && c.Type.IsZero() {
		return &ValidationError{Field: "type", Reason: "missing data type"}
	}
	return nil
}

// Normalized returns a copy with surrounding whitespace trimmed. Computed
// columns derive their key facets from the expression, so those are cleared.
func (c ColumnSpec) Normalized() ColumnSpec {
	c.Name = strings.TrimSpace(c.Name)
	c.ComputedFormula = strings.TrimSpace(c.ComputedFormula)
	c.RefTable = strings.TrimSpace(c.RefTable)
	c.RefColumn = strings.TrimSpace(c.RefColumn)
	if c.IsComputed {
		c.IsPrimaryKey = false
		c.IsForeignKey = false
		c.RefTable = ""
		c.RefColumn = ""
	} else {
		c.ComputedFormula = ""
	}
	if !c.IsForeignKey {
		c.RefTable = ""
		c.RefColumn = ""
		c.ForeignKeyConstraint = ""
	}
	if !c.IsPrimaryKey {
		c.PrimaryKeyConstraint = ""
	}
	return c
}

// EffectiveNullable is the nullability actually emitted. Primary keys are
// always NOT NULL whatever IsNullable says.
func (c ColumnSpec) EffectiveNullable() bool {
	return c.IsNullable && !c.IsPrimaryKey
}

// NeedsIdentity reports whether the column gets IDENTITY(1,1) on creation.
func (c ColumnSpec) NeedsIdentity() bool {
	return c.IsPrimaryKey && sqltype.IsNumericKey(c.Type.Base)
}

// FindColumn returns the column with the given name, matched
// case-insensitively as SQL Server does by default.
func FindColumn(cols []ColumnSpec, name string) (ColumnSpec, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSpec{}, false
}
