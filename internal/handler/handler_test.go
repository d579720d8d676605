package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/ddl"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// fakeServer stands in for a SQL Server instance. It is both the dialer and
// the catalog reader; onExec lets a test mutate the tables when a statement
// runs.
type fakeServer struct {
	mu       sync.Mutex
	tables   map[string][]model.ColumnSpec
	executed []string
	failSQL  string
	failErr  error
	down     bool
	onExec   func(f *fakeServer, query string, args []interface{})
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		tables: map[string][]model.ColumnSpec{
			"Orders": {
				{Name: "ID", Type: sqltype.Named("INT"), IsPrimaryKey: true},
				{Name: "Status", Type: sqltype.WithLength("VARCHAR", 20)},
			},
		},
	}
}

func (f *fakeServer) Open(_ context.Context, database string) (connector.Conn, error) {
	if f.down {
		return nil, &model.ConnectivityError{Op: "connect to fake/" + database, Err: errors.New("connection refused")}
	}
	return &fakeConn{srv: f}, nil
}

func (f *fakeServer) exec(query string, args []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSQL != "" && strings.Contains(query, f.failSQL) {
		return f.failErr
	}
	f.executed = append(f.executed, query)
	if f.onExec != nil {
		f.onExec(f, query, args)
	}
	return nil
}

func (f *fakeServer) Databases(context.Context, connector.Querier) ([]string, error) {
	return []string{"Shop", "Warehouse"}, nil
}

func (f *fakeServer) Tables(context.Context, connector.Querier) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := []string{}
	for n := range f.tables {
		names = append(names, n)
	}
	return names, nil
}

func (f *fakeServer) Columns(_ context.Context, _ connector.Querier, table string) ([]model.ColumnSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols := make([]model.ColumnSpec, len(f.tables[table]))
	copy(cols, f.tables[table])
	return cols, nil
}

func (f *fakeServer) KeyColumns(ctx context.Context, q connector.Querier, table string) ([]string, error) {
	cols, _ := f.Columns(ctx, q, table)
	keys := []string{}
	for _, c := range cols {
		if c.IsPrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys, nil
}

type fakeConn struct{ srv *fakeServer }

func (c *fakeConn) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, c.srv.exec(query, args)
}
func (c *fakeConn) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return nil
}
func (c *fakeConn) Begin(context.Context) (connector.Tx, error) { return &fakeTx{srv: c.srv}, nil }
func (c *fakeConn) Close() error                                { return nil }

type fakeTx struct{ srv *fakeServer }

func (t *fakeTx) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, t.srv.exec(query, args)
}
func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

// fakeSessions resolves every profile except "missing" to the fake server.
type fakeSessions struct{ srv *fakeServer }

func (f *fakeSessions) Session(_ context.Context, profile, database string) (*session.Session, error) {
	if profile == "missing" {
		return nil, fmt.Errorf("profile %q: %w", profile, config.ErrNotFound)
	}
	s := session.New(session.Config{
		Dialer:    f.srv,
		Reader:    f.srv,
		Generator: ddl.New(""),
		Options:   session.DefaultOptions(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Use(database)
	return s, nil
}

// testEnv holds shared state for handler tests.
type testEnv struct {
	srv    *fakeServer
	store  *config.Store
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := newFakeServer()
	sessions := &fakeSessions{srv: srv}
	schema := NewSchemaHandler(sessions, "INT")
	profiles := NewProfileHandler(store, sessions)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/types", schema.ListTypes)
		r.Route("/system/profile", func(r chi.Router) {
			r.Get("/", profiles.ListProfiles)
			r.Post("/", profiles.CreateProfile)
			r.Get("/{name}", profiles.GetProfile)
			r.Delete("/{name}", profiles.DeleteProfile)
			r.Get("/{name}/test", profiles.TestProfile)
		})
		r.Route("/{profile}/databases", func(r chi.Router) {
			r.Get("/", schema.ListDatabases)
			r.Post("/", schema.CreateDatabase)
			r.Get("/{db}/tables", schema.ListTables)
			r.Post("/{db}/tables", schema.CreateTable)
			r.Delete("/{db}/tables/{table}", schema.DropTable)
			r.Get("/{db}/tables/{table}/columns", schema.ListColumns)
			r.Post("/{db}/tables/{table}/columns", schema.AddColumn)
			r.Put("/{db}/tables/{table}/columns/{column}", schema.EditColumn)
			r.Delete("/{db}/tables/{table}/columns/{column}", schema.DeleteColumn)
			r.Get("/{db}/tables/{table}/keys", schema.ListKeys)
		})
	})

	return &testEnv{srv: srv, store: store, router: r}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
