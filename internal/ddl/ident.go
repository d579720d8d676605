package ddl

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// maxIdentifierLen is the SQL Server sysname limit.
const maxIdentifierLen = 128

// typeNameRegex matches a bare type name. Parameters are rendered by
// sqltype, never taken from input text.
var typeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier ensures a table, column, constraint or database name
// can be bracket-quoted safely. It rejects empty names, names over 128
// characters and names containing control characters. Any other character
// is allowed because QuoteIdent escapes the closing bracket.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len([]rune(name)) > maxIdentifierLen {
		return fmt.Errorf("identifier too long (max %d chars): %q", maxIdentifierLen, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("identifier %q contains a control character", name)
		}
	}
	return nil
}

// QuoteIdent wraps an identifier in brackets, doubling any embedded
// closing bracket.
func QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// validateTypeName rejects base type names that are not a single word.
func validateTypeName(base string) error {
	if !typeNameRegex.MatchString(base) {
		return fmt.Errorf("invalid data type %q", base)
	}
	return nil
}
