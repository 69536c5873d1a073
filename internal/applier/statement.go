// Package applier supplies the default downstream adapters: a statement
// executor and a per-table bulk loader, both over a real MySQL-protocol
// connection via github.com/go-sql-driver/mysql.
package applier

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amvasilyev/cdc-pump/internal/event"
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// StatementExecutor is the default contracts.StatementExecutor. Query
// events are executed immediately against a transaction opened lazily on
// the first Execute call of a commit cycle; the transaction is committed
// or rolled back as a unit.
type StatementExecutor struct {
	db *sql.DB
	tx *sql.Tx
}

// NewStatementExecutor returns a StatementExecutor using db for all
// statement replay.
func NewStatementExecutor(db *sql.DB) *StatementExecutor {
	return &StatementExecutor{db: db}
}

// Execute runs q.Statement against the open transaction, opening one first
// if none is active for the current commit cycle.
func (e *StatementExecutor) Execute(ctx context.Context, q event.Query) error {
	if e.tx == nil {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("opening statement transaction: %w", err)
		}
		e.tx = tx
	}

	if q.Database != "" {
		if _, err := e.tx.ExecContext(ctx, "USE "+q.Database); err != nil {
			return fmt.Errorf("selecting database %q: %w", q.Database, err)
		}
	}

	if _, err := e.tx.ExecContext(ctx, q.Statement); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// Commit durably applies every statement executed since the last commit or
// rollback.
func (e *StatementExecutor) Commit(ctx context.Context) error {
	if e.tx == nil {
		return nil
	}
	err := e.tx.Commit()
	e.tx = nil
	if err != nil {
		return fmt.Errorf("committing statement transaction: %w", err)
	}
	return nil
}

// Rollback discards every statement executed since the last commit.
func (e *StatementExecutor) Rollback(ctx context.Context) error {
	if e.tx == nil {
		return nil
	}
	err := e.tx.Rollback()
	e.tx = nil
	if err != nil {
		logrus.WithError(err).Warn("statement transaction rollback failed")
	}
	return nil
}
