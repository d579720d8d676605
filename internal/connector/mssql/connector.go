// Package mssql connects to SQL Server and reads its catalog metadata.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/model"
)

// driverName is the database/sql name registered by go-mssqldb.
const driverName = "sqlserver"

// Dialer implements connector.Dialer for SQL Server. It holds no pool:
// every Open creates a connection that lives until the caller closes it.
type Dialer struct {
	cfg connector.Config
}

// New returns a Dialer for cfg. It satisfies connector.Factory.
func New(cfg connector.Config) (connector.Dialer, error) {
	if cfg.Server == "" && cfg.RawDSN == "" {
		return nil, fmt.Errorf("mssql: server or dsn is required")
	}
	return &Dialer{cfg: cfg}, nil
}

// Open connects to database (or the configured default) and verifies the
// connection with a ping.
func (d *Dialer) Open(ctx context.Context, database string) (connector.Conn, error) {
	cfg := d.cfg.WithDatabase(database)
	op := "connect to " + cfg.Target()

	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, &model.ConnectivityError{Op: op, Err: err}
	}
	// One physical connection, so a transaction and the reads around it
	// share a session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &model.ConnectivityError{Op: op, Err: err}
	}
	return &conn{db: db}, nil
}

// conn adapts *sqlx.DB to connector.Conn.
type conn struct {
	db *sqlx.DB
}

func (c *conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *conn) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.db.SelectContext(ctx, dest, query, args...)
}

func (c *conn) Begin(ctx context.Context) (connector.Tx, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *conn) Close() error {
	return c.db.Close()
}
