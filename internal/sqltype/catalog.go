// Package sqltype describes the SQL Server column types schemer can create
// and converts between their structured and textual forms.
package sqltype

import "strings"

// ParamKind is the parameter shape a base type accepts.
type ParamKind int

const (
	// KindNone types take no parameters (INT, DATE, ...).
	KindNone ParamKind = iota
	// KindLength types take a single length (VARCHAR(50)).
	KindLength
	// KindPrecisionScale types take precision and scale (DECIMAL(10,2)).
	KindPrecisionScale
)

// String returns the lower-case name used in JSON and CLI output.
func (k ParamKind) String() string {
	switch k {
	case KindLength:
		return "length"
	case KindPrecisionScale:
		return "precision_scale"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ParamKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// names is the full catalog in display order.
var names = []string{
	"INT", "BIGINT", "SMALLINT",
	"TINYINT", "BIT", "DECIMAL",
	"NUMERIC", "MONEY", "SMALLMONEY",
	"FLOAT", "REAL", "DATE",
	"TIME", "DATETIME", "DATETIME2",
	"DATETIMEOFFSET", "SMALLDATETIME",
	"CHAR", "VARCHAR", "TEXT",
	"NCHAR", "NVARCHAR", "NTEXT",
	"BINARY", "VARBINARY", "IMAGE",
	"UNIQUEIDENTIFIER",
}

var kinds = map[string]ParamKind{
	"VARCHAR":   KindLength,
	"NVARCHAR":  KindLength,
	"CHAR":      KindLength,
	"NCHAR":     KindLength,
	"BINARY":    KindLength,
	"VARBINARY": KindLength,
	"DECIMAL":   KindPrecisionScale,
	"NUMERIC":   KindPrecisionScale,
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}()

var numericKeys = map[string]bool{
	"INT": true, "BIGINT": true, "SMALLINT": true, "TINYINT": true,
}

// Names returns the supported base type names in display order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Lookup reports the parameter kind of a base type and whether the name is
// part of the catalog. Matching is case-insensitive; names outside the
// catalog are KindNone.
func Lookup(name string) (ParamKind, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	return kinds[upper], known[upper]
}

// KindOf is Lookup without the membership flag.
func KindOf(name string) ParamKind {
	k, _ := Lookup(name)
	return k
}

// IsNumericKey reports whether a base type gets an IDENTITY clause when it
// is used as a primary key.
func IsNumericKey(name string) bool {
	return numericKeys[strings.ToUpper(strings.TrimSpace(name))]
}
