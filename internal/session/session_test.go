package session

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/ddl"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

// event records what the fake connection saw, in order.
type event struct {
	kind string // exec, tx-exec, begin, commit, rollback, close
	sql  string
}

type fakeConn struct {
	d *fakeDialer
}

type fakeTx struct {
	d *fakeDialer
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 0, nil }

type fakeDialer struct {
	mu        sync.Mutex
	events    []event
	databases []string
	openErr   error
	failSQL   string // statements containing this fail
	opens     int
	closes    int
	lastDB    string
}

func (d *fakeDialer) Open(_ context.Context, database string) (connector.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.lastDB = database
	return &fakeConn{d: d}, nil
}

func (d *fakeDialer) record(kind, q string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event{kind: kind, sql: q})
	if d.failSQL != "" && strings.Contains(q, d.failSQL) {
		return errors.New("engine rejected statement")
	}
	return nil
}

func (d *fakeDialer) kinds() []string {
	out := make([]string, len(d.events))
	for i, e := range d.events {
		out[i] = e.kind
	}
	return out
}

func (c *fakeConn) ExecContext(_ context.Context, q string, _ ...interface{}) (sql.Result, error) {
	if err := c.d.record("exec", q); err != nil {
		return nil, err
	}
	return fakeResult{}, nil
}

func (c *fakeConn) SelectContext(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return errors.New("fakeConn: select is served by fakeReader")
}

func (c *fakeConn) Begin(_ context.Context) (connector.Tx, error) {
	c.d.record("begin", "")
	return &fakeTx{d: c.d}, nil
}

func (c *fakeConn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.closes++
	return nil
}

func (t *fakeTx) ExecContext(_ context.Context, q string, _ ...interface{}) (sql.Result, error) {
	if err := t.d.record("tx-exec", q); err != nil {
		return nil, err
	}
	return fakeResult{}, nil
}

func (t *fakeTx) Commit() error   { return t.d.record("commit", "") }
func (t *fakeTx) Rollback() error { return t.d.record("rollback", "") }

// fakeReader serves column lists from a map and counts reads.
type fakeReader struct {
	columns map[string][]model.ColumnSpec
	reads   int
	err     error
}

func (r *fakeReader) Databases(context.Context, connector.Querier) ([]string, error) {
	return []string{"Shop"}, r.err
}

func (r *fakeReader) Tables(context.Context, connector.Querier) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []string{"Orders"}, nil
}

func (r *fakeReader) Columns(_ context.Context, _ connector.Querier, table string) ([]model.ColumnSpec, error) {
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	return r.columns[table], nil
}

func (r *fakeReader) KeyColumns(_ context.Context, _ connector.Querier, table string) ([]string, error) {
	var keys []string
	for _, c := range r.columns[table] {
		if c.IsPrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys, r.err
}

var ordersColumns = []model.ColumnSpec{
	{Name: "ID", Type: sqltype.Named("INT"), IsPrimaryKey: true},
	{Name: "Qty", Type: sqltype.Named("INT")},
}

func newTestSession(opts Options) (*Session, *fakeDialer, *fakeReader) {
	d := &fakeDialer{}
	r := &fakeReader{columns: map[string][]model.ColumnSpec{"Orders": ordersColumns}}
	s := New(Config{
		Dialer:    d,
		Reader:    r,
		Generator: ddl.New("dbo"),
		Options:   opts,
		Locks:     NewLocks(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Use("Shop")
	return s, d, r
}

func TestUseReplacesSelection(t *testing.T) {
	s, _, _ := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)
	require.Len(t, s.Columns(), 2)

	s.Use("Warehouse")
	assert.Equal(t, Target{Database: "Warehouse"}, s.Target())
	assert.Empty(t, s.Columns())
}

func TestOpenRefreshesAndScopesConnection(t *testing.T) {
	s, d, r := newTestSession(DefaultOptions())

	cols, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)
	assert.Equal(t, ordersColumns, cols)
	assert.Equal(t, Target{Database: "Shop", Table: "Orders"}, s.Target())
	assert.Equal(t, 1, r.reads)
	assert.Equal(t, 1, d.opens)
	assert.Equal(t, 1, d.closes)
	assert.Equal(t, "Shop", d.lastDB)
}

func TestColumnOpsRequireTable(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())

	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoTable)

	_, err = s.AddColumn(context.Background(), model.ColumnSpec{Name: "Status", Type: sqltype.WithLength("VARCHAR", 20)})
	assert.ErrorIs(t, err, ErrNoTable)
	assert.Zero(t, d.opens)
}

func TestAddColumnAtomic(t *testing.T) {
	s, d, r := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)

	r.columns["Orders"] = append(ordersColumns, model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "Customers", RefColumn: "ID"})
	cols, err := s.AddColumn(context.Background(), model.ColumnSpec{
		Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true,
		IsForeignKey: true, RefTable: "Customers", RefColumn: "ID",
	})
	require.NoError(t, err)
	assert.Len(t, cols, 3)
	assert.Equal(t, []string{"begin", "tx-exec", "tx-exec", "commit"}, d.kinds())
	assert.Equal(t, 2, d.opens)
	assert.Equal(t, 2, d.closes, "every opened connection is closed")
}

func TestAddColumnValidationFailsBeforeConnecting(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())
	s.target.Table = "Orders"

	_, err := s.AddColumn(context.Background(), model.ColumnSpec{Name: "Cust", Type: sqltype.Named("INT"), IsForeignKey: true})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "incomplete foreign key", ve.Reason)
	assert.Contains(t, err.Error(), `add column "Cust"`)
	assert.Zero(t, d.opens)
}

func TestEditColumnRollsBackOnFailure(t *testing.T) {
	s, d, r := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)
	d.failSQL = "ALTER COLUMN"
	readsBefore := r.reads

	_, err = s.EditColumn(context.Background(), "Qty", model.ColumnSpec{Name: "Quantity", Type: sqltype.Named("BIGINT")})
	var ee *model.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, `edit column "Qty"`, ee.Op)
	assert.Contains(t, ee.Statement, "ALTER COLUMN [Quantity] BIGINT")
	assert.Contains(t, err.Error(), "engine rejected statement")

	assert.Equal(t, []string{"begin", "tx-exec", "tx-exec", "rollback"}, d.kinds())
	assert.Equal(t, readsBefore, r.reads, "no re-read after a failed group")
	assert.Equal(t, d.opens, d.closes)
}

func TestEditColumnNonAtomicLeavesPartialChange(t *testing.T) {
	s, d, _ := newTestSession(Options{Atomic: false})
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)
	d.failSQL = "ALTER COLUMN"

	_, err = s.EditColumn(context.Background(), "Qty", model.ColumnSpec{Name: "Quantity", Type: sqltype.Named("BIGINT")})
	require.Error(t, err)
	assert.Equal(t, []string{"exec", "exec"}, d.kinds())
	assert.Contains(t, d.events[0].sql, "sp_rename")
}

func TestEditColumnRefreshesWhenNotCached(t *testing.T) {
	s, d, r := newTestSession(DefaultOptions())
	s.target.Table = "Orders"

	_, err := s.EditColumn(context.Background(), "qty", model.ColumnSpec{Name: "Qty", Type: sqltype.Named("BIGINT"), IsNullable: true})
	require.NoError(t, err)
	assert.Equal(t, 2, r.reads, "prior read plus re-read")
	require.Len(t, d.events, 3)
	assert.Equal(t, "ALTER TABLE [dbo].[Orders] ALTER COLUMN [Qty] BIGINT NULL", d.events[1].sql)
}

func TestEditColumnNotFound(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)

	_, err = s.EditColumn(context.Background(), "Missing", model.ColumnSpec{Name: "Missing", Type: sqltype.Named("INT")})
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Contains(t, err.Error(), `edit column "Missing"`)
	assert.Empty(t, d.events)
}

func TestDeleteColumn(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)

	_, err = s.DeleteColumn(context.Background(), "Qty")
	require.NoError(t, err)
	require.Len(t, d.events, 3)
	assert.Equal(t, "ALTER TABLE [dbo].[Orders] DROP COLUMN [Qty]", d.events[1].sql)
}

func TestCreateDatabaseRunsOutsideTransaction(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())

	require.NoError(t, s.CreateDatabase(context.Background(), "Shop2"))
	assert.Equal(t, []event{{kind: "exec", sql: "CREATE DATABASE [Shop2]"}}, d.events)
	assert.Equal(t, Target{Database: "Shop"}, s.Target())
}

func TestCreateAndDropTable(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())
	_, err := s.Open(context.Background(), "Orders")
	require.NoError(t, err)

	require.NoError(t, s.CreateTable(context.Background(), "Lines", ""))
	assert.Equal(t, "CREATE TABLE [dbo].[Lines] ([ID] INT IDENTITY(1,1) PRIMARY KEY)", d.events[1].sql)

	require.NoError(t, s.DropTable(context.Background(), "Orders"))
	assert.Equal(t, Target{Database: "Shop"}, s.Target())
	assert.Empty(t, s.Columns())

	err = s.CreateTable(context.Background(), "Bad", "VARCHAR")
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestConnectivityErrorNamesOperation(t *testing.T) {
	s, d, _ := newTestSession(DefaultOptions())
	d.openErr = &model.ConnectivityError{Op: "connect to db/Shop", Err: errors.New("login failed")}

	_, err := s.ListTables(context.Background())
	var ce *model.ConnectivityError
	require.ErrorAs(t, err, &ce)
	assert.True(t, strings.HasPrefix(err.Error(), "list tables: "), err.Error())
}

func TestListings(t *testing.T) {
	s, _, _ := newTestSession(DefaultOptions())

	dbs, err := s.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Shop"}, dbs)

	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders"}, tables)

	keys, err := s.ReferenceColumns(context.Background(), "Orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID"}, keys)
}

func TestReaderErrorNamesOperation(t *testing.T) {
	s, _, r := newTestSession(DefaultOptions())
	r.err = errors.New("permission denied")

	_, err := s.Open(context.Background(), "Orders")
	require.Error(t, err)
	assert.Equal(t, `read columns of "Orders": permission denied`, err.Error())
}

func TestTimeoutApplied(t *testing.T) {
	d := &deadlineDialer{}
	s := New(Config{Dialer: d, Reader: &fakeReader{}, Options: Options{Timeout: time.Second}})
	s.Use("Shop")
	_, _ = s.ListTables(context.Background())
	assert.True(t, d.hadDeadline)
}

type deadlineDialer struct {
	hadDeadline bool
}

func (d *deadlineDialer) Open(ctx context.Context, _ string) (connector.Conn, error) {
	_, d.hadDeadline = ctx.Deadline()
	return nil, errors.New("no server")
}

func TestLocksSerializeSameTable(t *testing.T) {
	l := NewLocks()
	unlock := l.Lock("Shop", "Orders")

	acquired := make(chan struct{})
	go func() {
		release := l.Lock("shop", "ORDERS")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same table should block")
	case <-time.After(50 * time.Millisecond):
	}

	other := l.Lock("Shop", "Lines")
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released")
	}
}

func TestNilLocks(t *testing.T) {
	var l *Locks
	unlock := l.Lock("a", "b")
	unlock()
}
