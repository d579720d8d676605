package sqltype

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxLength is the Length value for VARCHAR(MAX), NVARCHAR(MAX) and
// VARBINARY(MAX). SQL Server reports it as -1 in CHARACTER_MAXIMUM_LENGTH.
const MaxLength = -1

// Defaults substituted when a precision/scale type is rendered without them.
const (
	DefaultPrecision = 18
	DefaultScale     = 0
)

// ColumnType is the structured form of a column data type. Length is only
// set for KindLength types; Precision and Scale only for KindPrecisionScale.
type ColumnType struct {
	Base      string
	Kind      ParamKind
	Length    *int
	Precision *int
	Scale     *int
}

// Named returns the bare type for a base name, classified by the catalog.
func Named(base string) ColumnType {
	base = strings.ToUpper(strings.TrimSpace(base))
	return ColumnType{Base: base, Kind: KindOf(base)}
}

// WithLength returns a length-parameterized type such as VARCHAR(20). Like
// Parse, the length is dropped when the catalog does not give base a length.
func WithLength(base string, n int) ColumnType {
	t := Named(base)
	if t.Kind == KindLength {
		t.Length = &n
	}
	return t
}

// WithPrecision returns a precision/scale type such as DECIMAL(10,2). The
// parameters are dropped when base is not a precision/scale type.
func WithPrecision(base string, precision, scale int) ColumnType {
	t := Named(base)
	if t.Kind == KindPrecisionScale {
		t.Precision = &precision
		t.Scale = &scale
	}
	return t
}

// Render returns the canonical textual form of t.
func Render(t ColumnType) string {
	switch t.Kind {
	case KindLength:
		if t.Length == nil {
			return t.Base
		}
		if *t.Length == MaxLength {
			return t.Base + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", t.Base, *t.Length)
	case KindPrecisionScale:
		p, s := DefaultPrecision, DefaultScale
		if t.Precision != nil {
			p = *t.Precision
		}
		if t.Scale != nil {
			s = *t.Scale
		}
		return fmt.Sprintf("%s(%d,%d)", t.Base, p, s)
	default:
		return t.Base
	}
}

var typePattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\(\s*(\d+|(?i:max))\s*(?:,\s*(\d+)\s*)?\))?`)

// Parse is the inverse of Render. Names missing from the catalog parse as
// KindNone and any parameters they carry are dropped. Parse never fails.
func Parse(text string) ColumnType {
	m := typePattern.FindStringSubmatch(text)
	if m == nil {
		return ColumnType{Base: strings.ToUpper(strings.TrimSpace(text)), Kind: KindNone}
	}

	t := Named(m[1])
	first, second := m[2], m[3]
	if first == "" {
		return t
	}

	// A number too large for int is dropped like any other malformed
	// parameter, leaving the bare type.
	switch t.Kind {
	case KindLength:
		if strings.EqualFold(first, "max") {
			n := MaxLength
			t.Length = &n
		} else if n, err := strconv.Atoi(first); err == nil {
			t.Length = &n
		}
	case KindPrecisionScale:
		if n, err := strconv.Atoi(first); err == nil {
			t.Precision = &n
		}
		if second != "" {
			if n, err := strconv.Atoi(second); err == nil {
				t.Scale = &n
			}
		}
	}
	return t
}

// String implements fmt.Stringer.
func (t ColumnType) String() string {
	return Render(t)
}

// MarshalText renders the type so boundary records carry it as a string.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(Render(t)), nil
}

// UnmarshalText parses a rendered type.
func (t *ColumnType) UnmarshalText(b []byte) error {
	*t = Parse(string(b))
	return nil
}

// IsZero reports whether no base type is set.
func (t ColumnType) IsZero() bool {
	return t.Base == ""
}

// Equivalent reports whether a and b describe the same type once render
// defaults are applied, so DECIMAL(10) and DECIMAL(10,0) are equivalent.
func Equivalent(a, b ColumnType) bool {
	if !strings.EqualFold(a.Base, b.Base) || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindLength:
		return intsEqual(a.Length, b.Length)
	case KindPrecisionScale:
		return valueOr(a.Precision, DefaultPrecision) == valueOr(b.Precision, DefaultPrecision) &&
			valueOr(a.Scale, DefaultScale) == valueOr(b.Scale, DefaultScale)
	default:
		return true
	}
}

func intsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
