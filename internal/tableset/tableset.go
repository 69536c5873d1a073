// Package tableset implements the table registry (C4): a map from
// numeric table id to an open downstream applier, whose lifecycle is
// driven entirely by TableMap events.
package tableset

import (
	"context"
	"errors"
	"fmt"

	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/sirupsen/logrus"
)

// Registry owns every currently-open table applier, keyed by table id.
type Registry struct {
	opener contracts.TableOpener
	tables map[uint64]contracts.TableApplier
	names  map[uint64]string
}

// New returns an empty Registry that opens tables via opener.
func New(opener contracts.TableOpener) *Registry {
	return &Registry{
		opener: opener,
		tables: make(map[uint64]contracts.TableApplier),
		names:  make(map[uint64]string),
	}
}

// Open handles a TableMap event: any existing entry for m.TableID is rolled
// back and released, then a fresh applier is opened and installed in its
// place. Failure to open is returned to the caller, who must treat it as
// fatal.
func (r *Registry) Open(ctx context.Context, m event.TableMap) error {
	if old, ok := r.tables[m.TableID]; ok {
		if err := old.Rollback(ctx); err != nil {
			logrus.WithError(err).WithField("table_id", m.TableID).
				Warn("rollback of replaced table entry failed")
		}
		if err := old.Close(ctx); err != nil {
			logrus.WithError(err).WithField("table_id", m.TableID).
				Warn("close of replaced table entry failed")
		}
	}

	applier, err := r.opener.OpenTable(ctx, m)
	if err != nil {
		return fmt.Errorf("opening table %s (id %d): %w", m.FullName(), m.TableID, err)
	}

	r.tables[m.TableID] = applier
	r.names[m.TableID] = m.FullName()
	return nil
}

// Lookup returns the applier for id, or ok=false if no TableMap for id has
// been processed (or its table was filtered out and never opened).
func (r *Registry) Lookup(id uint64) (contracts.TableApplier, bool) {
	a, ok := r.tables[id]
	return a, ok
}

// Name returns the "database.table" name registered for id, if any.
func (r *Registry) Name(id uint64) (string, bool) {
	n, ok := r.names[id]
	return n, ok
}

// CommitAll commits every open table entry. Per the commit coordinator's
// contract, every entry is attempted even after a failure; all failures are
// collected and returned together.
func (r *Registry) CommitAll(ctx context.Context) error {
	var errs []error
	for id, applier := range r.tables {
		if err := applier.Commit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("table id %d: %w", id, err))
		}
	}
	return joinErrors(errs)
}

// RollbackAll rolls back every open table entry, used on shutdown and on
// commit failure. Every entry is attempted regardless of individual
// failures.
func (r *Registry) RollbackAll(ctx context.Context) {
	for id, applier := range r.tables {
		if err := applier.Rollback(ctx); err != nil {
			logrus.WithError(err).WithField("table_id", id).Warn("rollback failed")
		}
	}
}

// CloseAll closes every open table entry, used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	for id, applier := range r.tables {
		if err := applier.Close(ctx); err != nil {
			logrus.WithError(err).WithField("table_id", id).Warn("close failed")
		}
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d table commits failed: %v", len(errs), errs[0])
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return errors.New(msg)
}
