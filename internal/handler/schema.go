package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/schemer/internal/diff"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// Sessions hands out schema sessions for a profile and database.
// *service.Workbench satisfies it.
type Sessions interface {
	Session(ctx context.Context, profile, database string) (*session.Session, error)
}

// SchemaHandler serves database, table and column operations.
type SchemaHandler struct {
	sessions Sessions
	idType   string
}

// NewSchemaHandler creates a new SchemaHandler. idType is the key type used
// when a create-table request names none.
func NewSchemaHandler(sessions Sessions, idType string) *SchemaHandler {
	return &SchemaHandler{sessions: sessions, idType: idType}
}

// typeInfo describes one entry of the type catalog.
type typeInfo struct {
	Name string            `json:"name"`
	Kind sqltype.ParamKind `json:"kind"`
}

// columnRequest is the body of add and edit requests. Nullability defaults
// to true when omitted.
type columnRequest struct {
	Name            string             `json:"name"`
	Type            sqltype.ColumnType `json:"type"`
	IsPrimaryKey    bool               `json:"is_primary_key"`
	IsNullable      *bool              `json:"is_nullable"`
	IsComputed      bool               `json:"is_computed"`
	ComputedFormula string             `json:"computed_formula"`
	IsForeignKey    bool               `json:"is_foreign_key"`
	RefTable        string             `json:"ref_table"`
	RefColumn       string             `json:"ref_column"`
}

func (c columnRequest) spec() model.ColumnSpec {
	nullable := true
	if c.IsNullable != nil {
		nullable = *c.IsNullable
	}
	return model.ColumnSpec{
		Name:            c.Name,
		Type:            c.Type,
		IsPrimaryKey:    c.IsPrimaryKey,
		IsNullable:      nullable,
		IsComputed:      c.IsComputed,
		ComputedFormula: c.ComputedFormula,
		IsForeignKey:    c.IsForeignKey,
		RefTable:        c.RefTable,
		RefColumn:       c.RefColumn,
	}
}

// editResponse is returned by column edits: the re-read column list and
// how it differs from the list read before the edit.
type editResponse struct {
	Database string             `json:"database"`
	Table    string             `json:"table"`
	Columns  []model.ColumnSpec `json:"columns"`
	Changes  []diff.Change      `json:"changes"`
	Breaking bool               `json:"breaking"`
}

type nameRequest struct {
	Name   string `json:"name"`
	IDType string `json:"id_type,omitempty"`
}

// ListTypes returns the supported column types and their parameter kinds.
// GET /api/v1/types
func (h *SchemaHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	names := sqltype.Names()
	types := make([]typeInfo, len(names))
	for i, n := range names {
		types[i] = typeInfo{Name: n, Kind: sqltype.KindOf(n)}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: types,
		Meta:     &model.ResponseMeta{Count: len(types)},
	})
}

// ListDatabases returns the user databases reachable through a profile.
// GET /api/v1/{profile}/databases
func (h *SchemaHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	names, err := s.ListDatabases(r.Context())
	if err != nil {
		writeOpError(w, err, "Failed to list databases")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: stringsToResources("name", names),
		Meta:     &model.ResponseMeta{Count: len(names)},
	})
}

// CreateDatabase creates a database on the profile's server.
// POST /api/v1/{profile}/databases
func (h *SchemaHandler) CreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CreateDatabase(r.Context(), req.Name); err != nil {
		writeOpError(w, err, "Failed to create database")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Database '%s' created", req.Name),
	})
}

// ListTables returns the tables of a database.
// GET /api/v1/{profile}/databases/{db}/tables
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	names, err := s.ListTables(r.Context())
	if err != nil {
		writeOpError(w, err, "Failed to list tables")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: stringsToResources("name", names),
		Meta:     &model.ResponseMeta{Count: len(names)},
	})
}

// CreateTable creates a table holding a single identity key column.
// POST /api/v1/{profile}/databases/{db}/tables
func (h *SchemaHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	idType := req.IDType
	if idType == "" {
		idType = h.idType
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CreateTable(r.Context(), req.Name, idType); err != nil {
		writeOpError(w, err, "Failed to create table")
		return
	}
	cols, err := s.Open(r.Context(), req.Name)
	if err != nil {
		writeOpError(w, err, "Table created but could not be read")
		return
	}
	writeJSON(w, http.StatusCreated, editResponse{
		Database: s.Target().Database,
		Table:    req.Name,
		Columns:  cols,
		Changes:  diff.Columns(nil, cols),
	})
}

// DropTable drops a table. The request must carry ?confirm=true.
// DELETE /api/v1/{profile}/databases/{db}/tables/{table}
func (h *SchemaHandler) DropTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !queryBool(r, "confirm") {
		writeError(w, http.StatusBadRequest, "Dropping a table requires ?confirm=true")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DropTable(r.Context(), table); err != nil {
		writeOpError(w, err, "Failed to drop table")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Table '%s' dropped", table),
	})
}

// ListColumns returns the columns of a table.
// GET /api/v1/{profile}/databases/{db}/tables/{table}/columns
func (h *SchemaHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	_, cols, ok := h.openTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: cols,
		Meta:     &model.ResponseMeta{Count: len(cols)},
	})
}

// ListKeys returns the key columns of a table, the columns a foreign key
// elsewhere can reference.
// GET /api/v1/{profile}/databases/{db}/tables/{table}/keys
func (h *SchemaHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	keys, err := s.ReferenceColumns(r.Context(), table)
	if err != nil {
		writeOpError(w, err, "Failed to read key columns")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: stringsToResources("name", keys),
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}

// AddColumn adds a column to a table.
// POST /api/v1/{profile}/databases/{db}/tables/{table}/columns
func (h *SchemaHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s, before, ok := h.openTable(w, r)
	if !ok {
		return
	}
	after, err := s.AddColumn(r.Context(), req.spec())
	if err != nil {
		writeOpError(w, err, "Failed to add column")
		return
	}
	writeJSON(w, http.StatusCreated, h.editResult(s, before, after))
}

// EditColumn redefines an existing column, renaming it when the body
// carries a different name.
// PUT /api/v1/{profile}/databases/{db}/tables/{table}/columns/{column}
func (h *SchemaHandler) EditColumn(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	var req columnRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s, before, ok := h.openTable(w, r)
	if !ok {
		return
	}
	prior, found := model.FindColumn(before, column)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Column not found: %s", column))
		return
	}
	// The path matches case-insensitively; an omitted name keeps the stored one.
	if strings.TrimSpace(req.Name) == "" {
		req.Name = prior.Name
	}
	after, err := s.EditColumn(r.Context(), column, req.spec())
	if err != nil {
		writeOpError(w, err, "Failed to edit column")
		return
	}
	writeJSON(w, http.StatusOK, h.editResult(s, before, after))
}

// DeleteColumn drops a column from a table.
// DELETE /api/v1/{profile}/databases/{db}/tables/{table}/columns/{column}
func (h *SchemaHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	s, before, ok := h.openTable(w, r)
	if !ok {
		return
	}
	if _, found := model.FindColumn(before, column); !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Column not found: %s", column))
		return
	}
	after, err := s.DeleteColumn(r.Context(), column)
	if err != nil {
		writeOpError(w, err, "Failed to delete column")
		return
	}
	writeJSON(w, http.StatusOK, h.editResult(s, before, after))
}

func (h *SchemaHandler) editResult(s *session.Session, before, after []model.ColumnSpec) editResponse {
	changes := diff.Columns(before, after)
	t := s.Target()
	return editResponse{
		Database: t.Database,
		Table:    t.Table,
		Columns:  after,
		Changes:  changes,
		Breaking: diff.HasBreaking(changes),
	}
}

// session resolves the profile and database URL params into a session. On
// failure the error response is already written.
func (h *SchemaHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	profile := chi.URLParam(r, "profile")
	database := chi.URLParam(r, "db")
	s, err := h.sessions.Session(r.Context(), profile, database)
	if err != nil {
		writeOpError(w, err, "Failed to open profile")
		return nil, false
	}
	return s, true
}

// openTable resolves the session and opens the table URL param.
func (h *SchemaHandler) openTable(w http.ResponseWriter, r *http.Request) (*session.Session, []model.ColumnSpec, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return nil, nil, false
	}
	table := chi.URLParam(r, "table")
	cols, err := s.Open(r.Context(), table)
	if err != nil {
		writeOpError(w, err, "Failed to read table")
		return nil, nil, false
	}
	if len(cols) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Table not found: %s", table))
		return nil, nil, false
	}
	return s, cols, true
}
