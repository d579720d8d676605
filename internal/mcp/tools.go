package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/schemer/internal/diff"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// registerTools adds all schemer tools to the MCP server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(mcp.NewTool("schemer_list_profiles",
		mcp.WithDescription("List the stored SQL Server connection profiles. Passwords are redacted. "+
			"Every other schemer tool takes one of these profile names."),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
	), s.handleListProfiles)

	srv.AddTool(mcp.NewTool("schemer_list_types",
		mcp.WithDescription("List the column data types schemer can emit and which parameters each takes: "+
			"none, length (e.g. VARCHAR(50), VARCHAR(MAX)) or precision_scale (e.g. DECIMAL(10,2))."),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
	), s.handleListTypes)

	srv.AddTool(mcp.NewTool("schemer_list_databases",
		mcp.WithDescription("List the user databases on the server a profile points at."),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Connection profile name")),
	), s.handleListDatabases)

	srv.AddTool(mcp.NewTool("schemer_list_tables",
		mcp.WithDescription("List the tables of a database."),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Connection profile name")),
		mcp.WithString("database", mcp.Description("Database name; defaults to the profile's database")),
	), s.handleListTables)

	srv.AddTool(mcp.NewTool("schemer_describe_table",
		mcp.WithDescription("Show the columns of a table with their types, nullability, primary key, "+
			"computed formula and foreign key reference, plus the key columns other tables can reference. "+
			"Call this before editing a table."),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Connection profile name")),
		mcp.WithString("database", mcp.Description("Database name; defaults to the profile's database")),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
	), s.handleDescribeTable)

	srv.AddTool(mcp.NewTool("schemer_add_column",
		mcp.WithDescription("Add a column to a table. Supplying computed_formula makes it a computed column; "+
			"supplying ref_table and ref_column makes it a foreign key. Returns the new column list and a diff."),
		mcp.WithToolAnnotation(destructiveAnnotation()),
		tableArgs(),
		mcp.WithString("name", mcp.Required(), mcp.Description("New column name")),
		mcp.WithString("type", mcp.Description("Data type, e.g. INT, VARCHAR(50), DECIMAL(10,2). Required unless computed")),
		columnFacetArgs(),
	), s.handleAddColumn)

	srv.AddTool(mcp.NewTool("schemer_edit_column",
		mcp.WithDescription("Redefine an existing column. Omitted arguments keep the column's current value. "+
			"Supplying new_name renames it. Keys and foreign keys are dropped and recreated around the change."),
		mcp.WithToolAnnotation(destructiveAnnotation()),
		tableArgs(),
		mcp.WithString("column", mcp.Required(), mcp.Description("Current column name")),
		mcp.WithString("new_name", mcp.Description("New column name")),
		mcp.WithString("type", mcp.Description("New data type, e.g. NVARCHAR(100)")),
		columnFacetArgs(),
	), s.handleEditColumn)

	srv.AddTool(mcp.NewTool("schemer_drop_column",
		mcp.WithDescription("Drop a column from a table. Its data is lost."),
		mcp.WithToolAnnotation(destructiveAnnotation()),
		tableArgs(),
		mcp.WithString("column", mcp.Required(), mcp.Description("Column to drop")),
	), s.handleDropColumn)
}

// tableArgs declares the profile, database and table arguments shared by
// the column tools.
func tableArgs() mcp.ToolOption {
	return func(t *mcp.Tool) {
		for _, opt := range []mcp.ToolOption{
			mcp.WithString("profile", mcp.Required(), mcp.Description("Connection profile name")),
			mcp.WithString("database", mcp.Description("Database name; defaults to the profile's database")),
			mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		} {
			opt(t)
		}
	}
}

func columnFacetArgs() mcp.ToolOption {
	return func(t *mcp.Tool) {
		for _, opt := range []mcp.ToolOption{
			mcp.WithBoolean("is_primary_key", mcp.Description("Make this the primary key column")),
			mcp.WithBoolean("is_nullable", mcp.Description("Allow NULL (default true; primary keys are never nullable)")),
			mcp.WithString("computed_formula", mcp.Description("T-SQL expression for a computed column, e.g. [Qty]*[Price]")),
			mcp.WithString("ref_table", mcp.Description("Referenced table for a foreign key")),
			mcp.WithString("ref_column", mcp.Description("Referenced key column for a foreign key")),
		} {
			opt(t)
		}
	}
}

// --------------------------------------------------------------------------
// Tool handlers
// --------------------------------------------------------------------------

func (s *MCPServer) handleListProfiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return toolError("Failed to list profiles: %v", err)
	}
	for i := range profiles {
		profiles[i] = profiles[i].Redacted()
	}
	return successJSON(map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (s *MCPServer) handleListTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successJSON(typeCatalog())
}

func (s *MCPServer) handleListDatabases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.openSession(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	names, err := sess.ListDatabases(ctx)
	if err != nil {
		return opError(err)
	}
	return successJSON(map[string]interface{}{
		"databases": names,
		"count":     len(names),
	})
}

func (s *MCPServer) handleListTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.openSession(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	names, err := sess.ListTables(ctx)
	if err != nil {
		return opError(err)
	}
	return successJSON(map[string]interface{}{
		"database": sess.Target().Database,
		"tables":   names,
		"count":    len(names),
	})
}

func (s *MCPServer) handleDescribeTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, cols, errResult := s.openTable(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	keys, err := sess.ReferenceColumns(ctx, sess.Target().Table)
	if err != nil {
		return opError(err)
	}
	return successJSON(map[string]interface{}{
		"database":    sess.Target().Database,
		"table":       sess.Target().Table,
		"columns":     cols,
		"key_columns": keys,
	})
}

func (s *MCPServer) handleAddColumn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}
	sess, before, errResult := s.openTable(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	after, err := sess.AddColumn(ctx, columnSpec(request, name))
	if err != nil {
		return opError(err)
	}
	s.logger.Info("mcp column added", "table", sess.Target().Table, "column", name)
	return editResult(sess, before, after)
}

func (s *MCPServer) handleEditColumn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	column, err := requireString(request, "column")
	if err != nil {
		return toolError("%v", err)
	}
	sess, before, errResult := s.openTable(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	current, ok := model.FindColumn(before, column)
	if !ok {
		return toolError("Column %q not found in table %q", column, sess.Target().Table)
	}

	after, err := sess.EditColumn(ctx, current.Name, mergeColumn(current, request))
	if err != nil {
		return opError(err)
	}
	s.logger.Info("mcp column edited", "table", sess.Target().Table, "column", current.Name)
	return editResult(sess, before, after)
}

func (s *MCPServer) handleDropColumn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	column, err := requireString(request, "column")
	if err != nil {
		return toolError("%v", err)
	}
	sess, before, errResult := s.openTable(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	if _, ok := model.FindColumn(before, column); !ok {
		return toolError("Column %q not found in table %q", column, sess.Target().Table)
	}

	after, err := sess.DeleteColumn(ctx, column)
	if err != nil {
		return opError(err)
	}
	s.logger.Info("mcp column dropped", "table", sess.Target().Table, "column", column)
	return editResult(sess, before, after)
}

// --------------------------------------------------------------------------
// Shared plumbing
// --------------------------------------------------------------------------

// openSession resolves the profile and database arguments. A non-nil
// result is the error to hand back to the client.
func (s *MCPServer) openSession(ctx context.Context, request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	profile, err := requireString(request, "profile")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sess, err := s.sessions.Session(ctx, profile, optionalString(request, "database"))
	if err != nil {
		result, _ := opError(err)
		return nil, result
	}
	return sess, nil
}

// openTable resolves the session and reads the table argument's columns.
func (s *MCPServer) openTable(ctx context.Context, request mcp.CallToolRequest) (*session.Session, []model.ColumnSpec, *mcp.CallToolResult) {
	table, err := requireString(request, "table")
	if err != nil {
		return nil, nil, mcp.NewToolResultError(err.Error())
	}
	sess, errResult := s.openSession(ctx, request)
	if errResult != nil {
		return nil, nil, errResult
	}
	cols, err := sess.Open(ctx, table)
	if err != nil {
		result, _ := opError(err)
		return nil, nil, result
	}
	if len(cols) == 0 {
		return nil, nil, mcp.NewToolResultError(fmt.Sprintf("Table %q not found in database %q", table, sess.Target().Database))
	}
	return sess, cols, nil
}

// mergeColumn overlays the supplied arguments on the current definition.
func mergeColumn(current model.ColumnSpec, request mcp.CallToolRequest) model.ColumnSpec {
	spec := current
	if name := optionalString(request, "new_name"); name != "" {
		spec.Name = name
	}
	if t := optionalString(request, "type"); t != "" {
		spec.Type = sqltype.Parse(t)
	}
	if hasArg(request, "is_primary_key") {
		spec.IsPrimaryKey = request.GetBool("is_primary_key", false)
	}
	if hasArg(request, "is_nullable") {
		spec.IsNullable = request.GetBool("is_nullable", true)
	}
	if hasArg(request, "computed_formula") {
		spec.ComputedFormula = strings.TrimSpace(optionalString(request, "computed_formula"))
		spec.IsComputed = spec.ComputedFormula != ""
	}
	if hasArg(request, "ref_table") {
		spec.RefTable = strings.TrimSpace(optionalString(request, "ref_table"))
		spec.IsForeignKey = spec.RefTable != ""
		if !spec.IsForeignKey {
			spec.RefColumn = ""
		}
	}
	if hasArg(request, "ref_column") {
		spec.RefColumn = optionalString(request, "ref_column")
	}
	return spec
}

func editResult(sess *session.Session, before, after []model.ColumnSpec) (*mcp.CallToolResult, error) {
	changes := diff.Columns(before, after)
	return successJSON(map[string]interface{}{
		"database": sess.Target().Database,
		"table":    sess.Target().Table,
		"columns":  after,
		"changes":  changes,
		"breaking": diff.HasBreaking(changes),
	})
}

type typeInfo struct {
	Name string            `json:"name"`
	Kind sqltype.ParamKind `json:"kind"`
}

func typeCatalog() []typeInfo {
	names := sqltype.Names()
	types := make([]typeInfo, len(names))
	for i, n := range names {
		types[i] = typeInfo{Name: n, Kind: sqltype.KindOf(n)}
	}
	return types
}
