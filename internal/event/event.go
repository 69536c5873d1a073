// Package event defines the tagged event variants the upstream client
// produces and the dispatch loop consumes. The variant set is closed:
// dispatch is a single type-switch, not a virtual-call hierarchy.
package event

import "github.com/amvasilyev/cdc-pump/internal/tid"

// RowOp identifies the kind of row mutation carried by a Rows event.
type RowOp int

const (
	RowWrite RowOp = iota
	RowUpdate
	RowDelete
)

// Gtid marks the start of a transaction.
type Gtid struct {
	TID tid.TID
	// ImplicitCommit is true when the transaction is a single
	// auto-committing statement (e.g. DDL).
	ImplicitCommit bool
}

// Xid marks the explicit end of a transaction.
type Xid struct {
	TransactionNr uint64
}

// Column describes one column of a table bound by a TableMap event.
type Column struct {
	Name string
	Type string
}

// TableMap binds a session-local numeric table id to a schema for the rest
// of the session, or until replaced by a later TableMap with the same id.
type TableMap struct {
	TableID  uint64
	Database string
	Table    string
	Columns  []Column
}

// FullName renders "database.table".
func (m TableMap) FullName() string {
	return m.Database + "." + m.Table
}

// Query carries a DDL or statement-based DML statement.
type Query struct {
	Database  string
	Statement string
}

// Rows carries a batch of row images for a previously seen table id.
type Rows struct {
	TableID uint64
	Op      RowOp
	Rows    [][]any
}

// Other represents any event type the core ignores (format description,
// previous-GTIDs, heartbeats, and so on).
type Other struct {
	Kind string
}
