// Package commit implements the commit coordinator (C8): the atomic unit
// of durability spanning the statement executor, every open table applier,
// and the persisted checkpoint.
package commit

import (
	"context"
	"fmt"

	"github.com/amvasilyev/cdc-pump/internal/checkpoint"
	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/tableset"
	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/sirupsen/logrus"
)

// Registry is the subset of *tableset.Registry the coordinator needs.
type Registry interface {
	CommitAll(ctx context.Context) error
	RollbackAll(ctx context.Context)
}

var _ Registry = (*tableset.Registry)(nil)

// Coordinator flushes the statement executor and every open table applier,
// and on success persists the checkpoint.
type Coordinator struct {
	Executor contracts.StatementExecutor
	Tables   Registry
	Store    *checkpoint.Store
}

// New returns a Coordinator wired to the given collaborators.
func New(executor contracts.StatementExecutor, tables Registry, store *checkpoint.Store) *Coordinator {
	return &Coordinator{Executor: executor, Tables: tables, Store: store}
}

// Commit is invoked from Xid events, implicit-commit transitions after a
// Query, and mode switches. It asks the statement executor to commit, then
// every open table applier (collecting rather than short-circuiting on
// failure), and only if every step succeeded rewrites the checkpoint with
// current. On any failure it logs at error level and returns a non-nil
// error; the dispatch loop treats that as fatal.
func (c *Coordinator) Commit(ctx context.Context, current tid.TID) error {
	execErr := c.Executor.Commit(ctx)
	tablesErr := c.Tables.CommitAll(ctx)

	if execErr != nil || tablesErr != nil {
		err := joinTwo(execErr, tablesErr)
		logrus.WithError(err).WithField("tid", current.String()).Error("commit failed")
		return fmt.Errorf("commit failed: %w", err)
	}

	if err := c.Store.Save(current); err != nil {
		logrus.WithError(err).WithField("tid", current.String()).Error("checkpoint write failed")
		return fmt.Errorf("persisting checkpoint: %w", err)
	}

	return nil
}

func joinTwo(a, b error) error {
	switch {
	case a != nil && b != nil:
		return fmt.Errorf("statement executor: %v; tables: %v", a, b)
	case a != nil:
		return fmt.Errorf("statement executor: %w", a)
	case b != nil:
		return fmt.Errorf("tables: %w", b)
	default:
		return nil
	}
}
