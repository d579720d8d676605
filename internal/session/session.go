// Package session coordinates schema edits against one SQL Server: it holds
// the selected database and table, runs generated statements through a
// scoped connection and re-reads the catalog afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/ddl"
	"github.com/faucetdb/schemer/internal/model"
)

// DefaultTimeout bounds a single session operation.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNoTable is returned by column operations before a table is opened.
	ErrNoTable = errors.New("no table selected")
	// ErrColumnNotFound is returned when an edit names a column the table
	// does not have.
	ErrColumnNotFound = errors.New("column not found")
)

// Reader reads catalog metadata over a connection.
type Reader interface {
	Databases(ctx context.Context, q connector.Querier) ([]string, error)
	Tables(ctx context.Context, q connector.Querier) ([]string, error)
	Columns(ctx context.Context, q connector.Querier, table string) ([]model.ColumnSpec, error)
	KeyColumns(ctx context.Context, q connector.Querier, table string) ([]string, error)
}

// Target is the current database and table selection.
type Target struct {
	Database string `json:"database"`
	Table    string `json:"table,omitempty"`
}

// Options controls how statement groups run.
type Options struct {
	// Atomic runs each logical edit in one transaction, rolled back on
	// failure. When false every statement commits on its own and a failed
	// group can leave earlier statements applied.
	Atomic bool
	// Timeout bounds each operation. Zero disables the bound.
	Timeout time.Duration
}

// DefaultOptions returns atomic groups with a 30s timeout.
func DefaultOptions() Options {
	return Options{Atomic: true, Timeout: DefaultTimeout}
}

// Config holds the collaborators of a Session.
type Config struct {
	Dialer    connector.Dialer
	Reader    Reader
	Generator ddl.Generator
	Options   Options
	Locks     *Locks
	Logger    *slog.Logger
}

// Session is single-owner state: one operator, one selection. It is not
// safe for concurrent use; share a *Locks between sessions instead.
type Session struct {
	dialer connector.Dialer
	reader Reader
	gen    ddl.Generator
	opts   Options
	locks  *Locks
	logger *slog.Logger

	target  Target
	columns []model.ColumnSpec
}

// New creates a Session with nothing selected.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		dialer: cfg.Dialer,
		reader: cfg.Reader,
		gen:    cfg.Generator,
		opts:   cfg.Options,
		locks:  cfg.Locks,
		logger: logger,
	}
}

// Target returns the current selection.
func (s *Session) Target() Target {
	return s.target
}

// Columns returns the last fetched column list of the open table.
func (s *Session) Columns() []model.ColumnSpec {
	out := make([]model.ColumnSpec, len(s.columns))
	copy(out, s.columns)
	return out
}

// Use selects a database. The previous selection is replaced wholesale, so
// the table and cached columns are cleared.
func (s *Session) Use(database string) {
	s.target = Target{Database: database}
	s.columns = nil
}

// Open selects a table of the current database and reads its columns.
func (s *Session) Open(ctx context.Context, table string) ([]model.ColumnSpec, error) {
	s.target.Table = table
	s.columns = nil
	return s.Refresh(ctx)
}

// Refresh re-reads the columns of the open table.
func (s *Session) Refresh(ctx context.Context) ([]model.ColumnSpec, error) {
	table := s.target.Table
	if table == "" {
		return nil, ErrNoTable
	}
	op := fmt.Sprintf("read columns of %q", table)

	var cols []model.ColumnSpec
	err := s.withConn(ctx, op, func(ctx context.Context, conn connector.Conn) error {
		var err error
		cols, err = s.reader.Columns(ctx, conn, table)
		return wrapOp(op, err)
	})
	if err != nil {
		return nil, err
	}
	s.columns = cols
	return s.Columns(), nil
}

// ListDatabases returns the user databases on the server.
func (s *Session) ListDatabases(ctx context.Context) ([]string, error) {
	var names []string
	err := s.withConn(ctx, "list databases", func(ctx context.Context, conn connector.Conn) error {
		var err error
		names, err = s.reader.Databases(ctx, conn)
		return wrapOp("list databases", err)
	})
	return names, err
}

// ListTables returns the tables of the selected database.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.withConn(ctx, "list tables", func(ctx context.Context, conn connector.Conn) error {
		var err error
		names, err = s.reader.Tables(ctx, conn)
		return wrapOp("list tables", err)
	})
	return names, err
}

// ReferenceColumns returns the key columns of table that a foreign key can
// reference.
func (s *Session) ReferenceColumns(ctx context.Context, table string) ([]string, error) {
	var keys []string
	op := fmt.Sprintf("read key columns of %q", table)
	err := s.withConn(ctx, op, func(ctx context.Context, conn connector.Conn) error {
		var err error
		keys, err = s.reader.KeyColumns(ctx, conn, table)
		return wrapOp(op, err)
	})
	return keys, err
}

// CreateDatabase creates a database on the server. The selection is not
// changed.
func (s *Session) CreateDatabase(ctx context.Context, name string) error {
	op := fmt.Sprintf("create database %q", name)
	stmts, err := s.gen.CreateDatabase(name)
	if err != nil {
		return wrapOp(op, err)
	}
	err = s.withConn(ctx, op, func(ctx context.Context, conn connector.Conn) error {
		return s.execute(ctx, conn, op, stmts)
	})
	if err != nil {
		return err
	}
	s.logger.Info("database created", "op", op, "database", name)
	return nil
}

// CreateTable creates a table with a single identity key column in the
// selected database.
func (s *Session) CreateTable(ctx context.Context, table, idType string) error {
	op := fmt.Sprintf("create table %q", table)
	stmts, err := s.gen.CreateTable(table, idType)
	if err != nil {
		return wrapOp(op, err)
	}
	return s.runTableDDL(ctx, op, table, stmts, "table created")
}

// DropTable drops a table of the selected database. Dropping the open
// table clears the table selection.
func (s *Session) DropTable(ctx context.Context, table string) error {
	op := fmt.Sprintf("drop table %q", table)
	stmts, err := s.gen.DropTable(table)
	if err != nil {
		return wrapOp(op, err)
	}
	if err := s.runTableDDL(ctx, op, table, stmts, "table dropped"); err != nil {
		return err
	}
	if s.target.Table == table {
		s.target.Table = ""
		s.columns = nil
	}
	return nil
}

func (s *Session) runTableDDL(ctx context.Context, op, table string, stmts []ddl.Statement, msg string) error {
	unlock := s.locks.Lock(s.target.Database, table)
	defer unlock()

	err := s.withConn(ctx, op, func(ctx context.Context, conn connector.Conn) error {
		return s.execute(ctx, conn, op, stmts)
	})
	if err != nil {
		return err
	}
	s.logger.Info(msg, "op", op, "database", s.target.Database, "table", table)
	return nil
}

// AddColumn adds a column to the open table and returns the re-read
// column list.
func (s *Session) AddColumn(ctx context.Context, spec model.ColumnSpec) ([]model.ColumnSpec, error) {
	op := fmt.Sprintf("add column %q", spec.Name)
	if err := spec.Normalized().Validate(); err != nil {
		return nil, wrapOp(op, err)
	}
	return s.edit(ctx, op, spec.Name, func(_ context.Context, _ connector.Conn, table string) ([]ddl.Statement, error) {
		return s.gen.AddColumn(table, spec)
	})
}

// EditColumn redefines the column currently named oldName as spec. The
// prior definition comes from the cached column list, refreshed when the
// column is not in it.
func (s *Session) EditColumn(ctx context.Context, oldName string, spec model.ColumnSpec) ([]model.ColumnSpec, error) {
	op := fmt.Sprintf("edit column %q", oldName)
	if err := spec.Normalized().Validate(); err != nil {
		return nil, wrapOp(op, err)
	}
	return s.edit(ctx, op, spec.Name, func(ctx context.Context, conn connector.Conn, table string) ([]ddl.Statement, error) {
		prior, ok := model.FindColumn(s.columns, oldName)
		if !ok {
			cols, err := s.reader.Columns(ctx, conn, table)
			if err != nil {
				return nil, err
			}
			s.columns = cols
			if prior, ok = model.FindColumn(cols, oldName); !ok {
				return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, oldName)
			}
		}
		return s.gen.EditColumn(table, prior, spec)
	})
}

// DeleteColumn drops a column from the open table.
func (s *Session) DeleteColumn(ctx context.Context, name string) ([]model.ColumnSpec, error) {
	op := fmt.Sprintf("delete column %q", name)
	return s.edit(ctx, op, name, func(_ context.Context, _ connector.Conn, table string) ([]ddl.Statement, error) {
		return s.gen.DropColumn(table, name)
	})
}

type buildFunc func(ctx context.Context, conn connector.Conn, table string) ([]ddl.Statement, error)

// edit runs one logical edit of the open table: generate, execute the
// group, then re-read. The table lock is held throughout.
func (s *Session) edit(ctx context.Context, op, column string, build buildFunc) ([]model.ColumnSpec, error) {
	table := s.target.Table
	if table == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoTable)
	}

	unlock := s.locks.Lock(s.target.Database, table)
	defer unlock()

	var (
		stmts []ddl.Statement
		cols  []model.ColumnSpec
	)
	err := s.withConn(ctx, op, func(ctx context.Context, conn connector.Conn) error {
		var err error
		stmts, err = build(ctx, conn, table)
		if err != nil {
			return wrapOp(op, err)
		}
		if err := s.execute(ctx, conn, op, stmts); err != nil {
			return err
		}
		cols, err = s.reader.Columns(ctx, conn, table)
		if err != nil {
			return fmt.Errorf("%s: re-read: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.columns = cols
	s.logger.Info("column change applied",
		"op", op,
		"database", s.target.Database,
		"table", table,
		"column", column,
		"statements", len(stmts),
	)
	return s.Columns(), nil
}

// withConn opens a connection to the selected database for the duration of
// fn and closes it on every exit path.
func (s *Session) withConn(ctx context.Context, op string, fn func(context.Context, connector.Conn) error) error {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	conn, err := s.dialer.Open(ctx, s.target.Database)
	if err != nil {
		s.logger.Error("connect failed", "op", op, "database", s.target.Database, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	if err := fn(ctx, conn); err != nil {
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			s.logger.Error("operation failed", "op", op, "database", s.target.Database, "table", s.target.Table, "error", err)
		}
		return err
	}
	return nil
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
