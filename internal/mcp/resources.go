package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const tableURIPrefix = "schemer://table/"

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// schemer://profiles: stored connection profiles, redacted
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"schemer://profiles",
			"Connection Profiles",
			mcp.WithResourceDescription(
				"SQL Server connection profiles known to schemer, with passwords redacted.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleProfilesResource,
	)

	// -------------------------------------------------------------------
	// schemer://types: the column type catalog
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"schemer://types",
			"Column Types",
			mcp.WithResourceDescription(
				"Data types schemer can emit and the parameters each one takes.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTypesResource,
	)

	// -------------------------------------------------------------------
	// schemer://table/{profile}/{database}/{table}: one table's columns
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			tableURIPrefix+"{profile}/{database}/{table}",
			"Table Columns",
			mcp.WithTemplateDescription(
				"Column definitions of a table as schemer reads them from the catalog.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleTableResource,
	)
}

func (s *MCPServer) handleProfilesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	for i := range profiles {
		profiles[i] = profiles[i].Redacted()
	}
	return jsonContents(request.Params.URI, profiles)
}

func (s *MCPServer) handleTypesResource(
	_ context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, typeCatalog())
}

func (s *MCPServer) handleTableResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	profile, database, table, err := parseTableURI(uri)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Session(ctx, profile, database)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", profile, err)
	}
	cols, err := sess.Open(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %q: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found in database %q", table, database)
	}
	return jsonContents(uri, cols)
}

// parseTableURI splits "schemer://table/{profile}/{database}/{table}".
func parseTableURI(uri string) (profile, database, table string, err error) {
	rest := strings.TrimPrefix(uri, tableURIPrefix)
	parts := strings.Split(rest, "/")
	if rest == uri || len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid table URI %q: expected %s{profile}/{database}/{table}", uri, tableURIPrefix)
	}
	return parts[0], parts[1], parts[2], nil
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
