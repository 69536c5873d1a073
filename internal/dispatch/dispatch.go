// Package dispatch implements the top-level pump (C9): connect-or-retry,
// fetch, filter, dispatch, and terminal-error handling. It is the one
// package that wires every other component together.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amvasilyev/cdc-pump/internal/checkpoint"
	"github.com/amvasilyev/cdc-pump/internal/commit"
	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/amvasilyev/cdc-pump/internal/ferr"
	"github.com/amvasilyev/cdc-pump/internal/filter"
	"github.com/amvasilyev/cdc-pump/internal/modesm"
	"github.com/amvasilyev/cdc-pump/internal/resume"
	"github.com/amvasilyev/cdc-pump/internal/tableset"
	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/sirupsen/logrus"
)

// reconnectBackoff is the fixed sleep between failed connection attempts.
const reconnectBackoff = 5 * time.Second

// Config wires the driver to its collaborators and initial state.
type Config struct {
	Client        contracts.UpstreamClient
	Executor      contracts.StatementExecutor
	Opener        contracts.TableOpener
	Store         *checkpoint.Store
	ConfiguredTID tid.TID
	// AcceptedTables restricts processing to these "database.table" names.
	// Empty means accept everything.
	AcceptedTables []string
}

// Driver is the replication pump. Construction via New spawns no
// goroutine; call Start to begin pumping. Destruction is Stop followed by
// Wait.
type Driver struct {
	client   contracts.UpstreamClient
	executor contracts.StatementExecutor
	tables   *tableset.Registry
	filter   *filter.Filter
	resumeCtl *resume.Controller
	mode     *modesm.Machine
	committer *commit.Coordinator

	currentTID     tid.TID
	implicitCommit bool
	lastGoodTID    tid.TID

	startTIDs  []tid.TID
	locateDone bool

	session contracts.Session

	running atomic.Bool
	done    chan struct{}
}

// New loads the checkpoint and constructs a Driver ready to Start. On
// checkpoint I/O error, construction fails and the caller must abort.
func New(cfg Config) (*Driver, error) {
	resumeTID, hasCheckpoint, err := cfg.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	target := cfg.ConfiguredTID
	if hasCheckpoint {
		target = resumeTID
	}

	tables := tableset.New(cfg.Opener)
	resumeCtl := resume.New()
	resumeCtl.SetTarget(target)

	d := &Driver{
		client:    cfg.Client,
		executor:  cfg.Executor,
		tables:    tables,
		filter:    filter.New(cfg.AcceptedTables),
		resumeCtl: resumeCtl,
		mode:      modesm.New(),
		committer: commit.New(cfg.Executor, tables, cfg.Store),
		lastGoodTID: target,
		done:      make(chan struct{}),
	}
	return d, nil
}

// Start spawns the worker goroutine and returns immediately.
func (d *Driver) Start(ctx context.Context) {
	d.running.Store(true)
	go d.run(ctx)
}

// Stop requests the worker to exit at its next loop iteration.
func (d *Driver) Stop() {
	d.running.Store(false)
}

// Wait blocks until the worker has exited.
func (d *Driver) Wait() {
	<-d.done
}

// Done returns a channel closed when the worker has exited, whether
// because Stop was called or because it hit a fatal error on its own.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Ok reports whether the worker is (still believed to be) running.
func (d *Driver) Ok() bool {
	return d.running.Load()
}

func (d *Driver) run(ctx context.Context) {
	defer close(d.done)
	defer d.shutdown(ctx)

	for d.running.Load() {
		if ctx.Err() != nil {
			d.running.Store(false)
			break
		}

		if d.session == nil {
			sess, err := d.connect(ctx)
			if err != nil {
				logrus.WithError(err).Warn("connect failed, retrying")
				select {
				case <-ctx.Done():
					d.running.Store(false)
					return
				case <-time.After(reconnectBackoff):
				}
				continue
			}
			d.session = sess
		}

		ev, err := d.session.FetchEvent(ctx)
		if err != nil {
			if ferr.IsTransient(err) {
				logrus.WithError(err).Warn("connection lost, will reconnect")
				_ = d.session.Close()
				d.session = nil
				if err := d.executor.Rollback(ctx); err != nil {
					logrus.WithError(err).Warn("rollback of statement executor failed after connection loss")
				}
				d.tables.RollbackAll(ctx)
				continue
			}
			logrus.WithError(err).Error("fatal error fetching event")
			d.running.Store(false)
			break
		}

		if err := d.dispatch(ctx, ev); err != nil {
			logrus.WithError(err).Error("fatal error dispatching event")
			d.running.Store(false)
			break
		}
	}
}

func (d *Driver) connect(ctx context.Context) (contracts.Session, error) {
	if d.resumeCtl.Active() && !d.locateDone {
		startTIDs, err := resume.Locate(ctx, d.client, d.resumeCtl.Target())
		if err != nil {
			return nil, fmt.Errorf("locating resume position: %w", err)
		}
		d.startTIDs = startTIDs
		d.locateDone = true
	} else if d.locateDone && !d.lastGoodTID.Zero() {
		d.startTIDs = []tid.TID{d.lastGoodTID}
	}

	return d.client.Connect(ctx, d.startTIDs)
}

// committerAdapter satisfies modesm.Committer by delegating to the commit
// coordinator with the driver's current transaction id.
type committerAdapter struct{ d *Driver }

func (c committerAdapter) Commit(ctx context.Context) error {
	return c.d.committer.Commit(ctx, c.d.currentTID)
}

func (d *Driver) dispatch(ctx context.Context, raw any) error {
	switch e := raw.(type) {
	case event.Gtid:
		d.currentTID = e.TID
		d.implicitCommit = e.ImplicitCommit
		if err := d.resumeCtl.ObserveGtid(e); err != nil {
			return ferr.AsFatal(err)
		}
		return nil

	case event.Xid:
		if d.resumeCtl.Active() {
			d.resumeCtl.ObserveXid()
			d.resumeCtl.ObserveConsumed()
			return nil
		}
		if err := d.committer.Commit(ctx, d.currentTID); err != nil {
			return ferr.AsFatal(err)
		}
		d.lastGoodTID = d.currentTID
		return nil

	case event.TableMap:
		if d.resumeCtl.Active() {
			d.resumeCtl.ObserveConsumed()
			return nil
		}
		if !d.filter.AllowTableMap(e) {
			return nil
		}
		if err := d.tables.Open(ctx, e); err != nil {
			return ferr.AsFatal(err)
		}
		return nil

	case event.Query:
		if d.resumeCtl.Active() {
			d.resumeCtl.ObserveConsumed()
			return nil
		}
		if !d.filter.AllowQuery(e) {
			return nil
		}
		if err := d.mode.Ensure(ctx, modesm.Statement, committerAdapter{d}); err != nil {
			return ferr.AsFatal(err)
		}
		if err := d.executor.Execute(ctx, e); err != nil {
			return ferr.AsFatal(err)
		}
		if d.implicitCommit {
			if err := d.committer.Commit(ctx, d.currentTID); err != nil {
				return ferr.AsFatal(err)
			}
			d.lastGoodTID = d.currentTID
		}
		return nil

	case event.Rows:
		if d.resumeCtl.Active() {
			d.resumeCtl.ObserveConsumed()
			return nil
		}
		applier, ok := d.tables.Lookup(e.TableID)
		if !ok {
			// TableMap for this id was filtered out (or never seen); a
			// missing table-map is treated as a filtered-out table, not an
			// error.
			return nil
		}
		if err := d.mode.Ensure(ctx, modesm.Bulk, committerAdapter{d}); err != nil {
			return ferr.AsFatal(err)
		}
		if err := applier.Enqueue(ctx, e); err != nil {
			return ferr.AsFatal(err)
		}
		return nil

	default:
		return nil
	}
}

func (d *Driver) shutdown(ctx context.Context) {
	if d.session != nil {
		_ = d.session.Close()
	}
	if err := d.executor.Rollback(ctx); err != nil {
		logrus.WithError(err).Warn("rollback of statement executor failed during shutdown")
	}
	d.tables.RollbackAll(ctx)
	d.tables.CloseAll(ctx)
}
