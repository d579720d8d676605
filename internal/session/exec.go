package session

import (
	"context"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/ddl"
	"github.com/faucetdb/schemer/internal/model"
)

// execute runs a statement group. In atomic mode statements share a
// transaction that commits at each Commit boundary and rolls back on the
// first failure. Standalone statements always run outside a transaction.
func (s *Session) execute(ctx context.Context, conn connector.Conn, op string, stmts []ddl.Statement) error {
	if !s.opts.Atomic {
		for _, st := range stmts {
			if err := s.exec(ctx, conn, op, st); err != nil {
				return err
			}
		}
		return nil
	}

	var tx connector.Tx
	rollback := func() {
		if tx != nil {
			if err := tx.Rollback(); err != nil {
				s.logger.Warn("rollback failed", "op", op, "error", err)
			}
			tx = nil
		}
	}

	for _, st := range stmts {
		if st.Standalone {
			rollback()
			if err := s.exec(ctx, conn, op, st); err != nil {
				return err
			}
			continue
		}

		if tx == nil {
			var err error
			if tx, err = conn.Begin(ctx); err != nil {
				return &model.ExecutionError{Op: op, Statement: "BEGIN TRANSACTION", Err: err}
			}
		}
		if err := s.exec(ctx, tx, op, st); err != nil {
			rollback()
			return err
		}
		if st.Commit {
			if err := tx.Commit(); err != nil {
				tx = nil
				return &model.ExecutionError{Op: op, Statement: "COMMIT", Err: err}
			}
			tx = nil
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return &model.ExecutionError{Op: op, Statement: "COMMIT", Err: err}
		}
	}
	return nil
}

func (s *Session) exec(ctx context.Context, e connector.Execer, op string, st ddl.Statement) error {
	s.logger.Debug("exec", "op", op, "table", st.Table, "sql", st.SQL)
	if _, err := e.ExecContext(ctx, st.SQL, st.Args...); err != nil {
		return &model.ExecutionError{Op: op, Statement: st.SQL, Err: err}
	}
	return nil
}
