// Package diff compares two column lists of the same table and reports what
// changed, classified as additive or breaking for code that reads the table.
package diff

import (
	"fmt"
	"strings"

	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// Kind classifies the severity of a change.
type Kind string

const (
	// Additive changes keep existing readers and writers working.
	Additive Kind = "additive"
	// Breaking changes remove, retype or constrain something that existed.
	Breaking Kind = "breaking"
)

// Change describes one difference between two column lists.
type Change struct {
	Kind        Kind   `json:"kind"`
	Category    string `json:"category"` // column_added, column_removed, type_changed, nullable_changed, primary_key_changed, computed_changed, foreign_key_changed
	Column      string `json:"column"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	Description string `json:"description"`
}

// Columns compares before and after. Columns are matched by name, case
// insensitively, so a rename shows up as a removal plus an addition.
func Columns(before, after []model.ColumnSpec) []Change {
	changes := []Change{}

	afterByName := make(map[string]model.ColumnSpec, len(after))
	for _, col := range after {
		afterByName[strings.ToLower(col.Name)] = col
	}
	beforeByName := make(map[string]model.ColumnSpec, len(before))
	for _, col := range before {
		beforeByName[strings.ToLower(col.Name)] = col
	}

	for _, old := range before {
		cur, exists := afterByName[strings.ToLower(old.Name)]
		if !exists {
			changes = append(changes, Change{
				Kind:        Breaking,
				Category:    "column_removed",
				Column:      old.Name,
				OldValue:    describeType(old),
				Description: fmt.Sprintf("Column %q was removed", old.Name),
			})
			continue
		}
		changes = append(changes, compare(old, cur)...)
	}

	for _, cur := range after {
		if _, exists := beforeByName[strings.ToLower(cur.Name)]; !exists {
			changes = append(changes, Change{
				Kind:        Additive,
				Category:    "column_added",
				Column:      cur.Name,
				NewValue:    describeType(cur),
				Description: fmt.Sprintf("Column %q was added", cur.Name),
			})
		}
	}

	return changes
}

// HasBreaking reports whether any change is breaking.
func HasBreaking(changes []Change) bool {
	for _, c := range changes {
		if c.Kind == Breaking {
			return true
		}
	}
	return false
}

func compare(old, cur model.ColumnSpec) []Change {
	var out []Change
	name := cur.Name

	if old.IsComputed != cur.IsComputed || (old.IsComputed && old.ComputedFormula != cur.ComputedFormula) {
		out = append(out, Change{
			Kind:        Breaking,
			Category:    "computed_changed",
			Column:      name,
			OldValue:    describeType(old),
			NewValue:    describeType(cur),
			Description: fmt.Sprintf("Column %q definition changed from %s to %s", name, describeType(old), describeType(cur)),
		})
	} else if !old.IsComputed && !sqltype.Equivalent(old.Type, cur.Type) {
		out = append(out, Change{
			Kind:        Breaking,
			Category:    "type_changed",
			Column:      name,
			OldValue:    sqltype.Render(old.Type),
			NewValue:    sqltype.Render(cur.Type),
			Description: fmt.Sprintf("Column %q type changed from %q to %q", name, sqltype.Render(old.Type), sqltype.Render(cur.Type)),
		})
	}

	// Tightening to NOT NULL breaks writers; loosening does not.
	if old.IsNullable && !cur.IsNullable {
		out = append(out, Change{
			Kind:        Breaking,
			Category:    "nullable_changed",
			Column:      name,
			OldValue:    "nullable",
			NewValue:    "not null",
			Description: fmt.Sprintf("Column %q changed from nullable to NOT NULL", name),
		})
	} else if !old.IsNullable && cur.IsNullable {
		out = append(out, Change{
			Kind:        Additive,
			Category:    "nullable_changed",
			Column:      name,
			OldValue:    "not null",
			NewValue:    "nullable",
			Description: fmt.Sprintf("Column %q changed from NOT NULL to nullable", name),
		})
	}

	if old.IsPrimaryKey != cur.IsPrimaryKey {
		out = append(out, Change{
			Kind:        Breaking,
			Category:    "primary_key_changed",
			Column:      name,
			OldValue:    keyState(old.IsPrimaryKey),
			NewValue:    keyState(cur.IsPrimaryKey),
			Description: fmt.Sprintf("Column %q primary key changed from %s to %s", name, keyState(old.IsPrimaryKey), keyState(cur.IsPrimaryKey)),
		})
	}

	oldRef, curRef := reference(old), reference(cur)
	if !strings.EqualFold(oldRef, curRef) {
		kind := Breaking
		if oldRef != "" && curRef == "" {
			kind = Additive
		}
		out = append(out, Change{
			Kind:        kind,
			Category:    "foreign_key_changed",
			Column:      name,
			OldValue:    oldRef,
			NewValue:    curRef,
			Description: fmt.Sprintf("Column %q foreign key changed from %s to %s", name, orNone(oldRef), orNone(curRef)),
		})
	}

	return out
}

func describeType(c model.ColumnSpec) string {
	if c.IsComputed {
		return "AS " + c.ComputedFormula
	}
	return sqltype.Render(c.Type)
}

func reference(c model.ColumnSpec) string {
	if !c.IsForeignKey {
		return ""
	}
	return c.RefTable + "." + c.RefColumn
}

func keyState(pk bool) string {
	if pk {
		return "key"
	}
	return "not key"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
