package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// --------------------------------------------------------------------------
// Parameter extraction helpers
// --------------------------------------------------------------------------

// requireString extracts a required string argument from the tool request.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || val == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// optionalString extracts an optional string argument from the tool request.
func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

// hasArg reports whether the caller supplied key at all.
func hasArg(request mcp.CallToolRequest, key string) bool {
	args := request.GetArguments()
	if args == nil {
		return false
	}
	_, ok := args[key]
	return ok
}

// columnSpec builds a column definition from tool arguments. A formula
// makes the column computed and a reference table makes it a foreign key.
// Nullability defaults to true.
func columnSpec(request mcp.CallToolRequest, name string) model.ColumnSpec {
	formula := optionalString(request, "computed_formula")
	refTable := optionalString(request, "ref_table")
	return model.ColumnSpec{
		Name:            name,
		Type:            sqltype.Parse(optionalString(request, "type")),
		IsPrimaryKey:    request.GetBool("is_primary_key", false),
		IsNullable:      request.GetBool("is_nullable", true),
		IsComputed:      formula != "",
		ComputedFormula: formula,
		IsForeignKey:    refTable != "",
		RefTable:        refTable,
		RefColumn:       optionalString(request, "ref_column"),
	}
}

// --------------------------------------------------------------------------
// Response builders
// --------------------------------------------------------------------------

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// opError reports a failed session operation with a hint matching its
// category.
func opError(err error) (*mcp.CallToolResult, error) {
	var (
		ve *model.ValidationError
		ce *model.ConnectivityError
		ee *model.ExecutionError
	)
	switch {
	case errors.As(err, &ve):
		return toolError("Invalid column definition (%s): %v", ve.Field, err)
	case errors.As(err, &ce):
		return toolError("Cannot reach the server: %v", err)
	case errors.As(err, &ee):
		return toolError("SQL Server rejected the change: %v\nStatement: %s", err, ee.Statement)
	default:
		return toolError("%v", err)
	}
}
