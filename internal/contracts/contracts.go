// Package contracts defines the collaborator interfaces the driver depends
// on but does not implement itself: the upstream binlog client, the
// downstream statement executor, and the per-table bulk applier. Default
// adapters live in internal/binlogsrc and internal/applier.
package contracts

import (
	"context"

	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/amvasilyev/cdc-pump/internal/tid"
)

// Session represents an established, authenticated connection to the
// upstream replication source.
type Session interface {
	// FetchEvent blocks until the next event is available. A lost network
	// connection is reported as a ferr.Transient-wrapped error; any other
	// error is terminal.
	FetchEvent(ctx context.Context) (any, error)
	// Close releases the session's resources.
	Close() error
}

// UpstreamClient connects to the source database and registers as a
// replica starting from a given TID.
type UpstreamClient interface {
	// Connect performs the TCP handshake and replica registration, starting
	// replication at the position described by startTIDs (one per active
	// GTID domain; an empty slice means "server default").
	Connect(ctx context.Context, startTIDs []tid.TID) (Session, error)
	// ListBinaryLogs returns the upstream's ordered list of binary log
	// names, oldest first.
	ListBinaryLogs(ctx context.Context) ([]string, error)
	// GTIDsAt returns the set of TIDs valid at the given byte offset within
	// logName (offset 4 is the start-of-log sentinel used by resume).
	GTIDsAt(ctx context.Context, logName string, offset uint32) ([]tid.TID, error)
}

// StatementExecutor applies Query events against the downstream store.
type StatementExecutor interface {
	// Execute hands a raw query event to the executor. It returns once the
	// statement has been staged; durability is deferred until Commit.
	Execute(ctx context.Context, q event.Query) error
	// Commit durably applies every statement staged since the last commit
	// or rollback.
	Commit(ctx context.Context) error
	// Rollback discards every statement staged since the last commit.
	Rollback(ctx context.Context) error
}

// TableApplier applies row-image batches for a single open table.
type TableApplier interface {
	// Enqueue stages a batch of row mutations for the table.
	Enqueue(ctx context.Context, rows event.Rows) error
	// Commit durably applies every batch staged since the last commit.
	Commit(ctx context.Context) error
	// Rollback discards every batch staged since the last commit.
	Rollback(ctx context.Context) error
	// Close releases the applier's downstream session. Called when the
	// table entry is replaced or the driver shuts down.
	Close(ctx context.Context) error
}

// TableOpener opens a downstream applier session for a table bound by a
// TableMap event. Failure to open is fatal.
type TableOpener interface {
	OpenTable(ctx context.Context, m event.TableMap) (TableApplier, error)
}
