// Package resume implements the resume/skip controller (C6): locating the
// binary-log position to start streaming from on startup, and discarding
// already-applied events until the stream catches up to the checkpoint.
package resume

import (
	"context"
	"fmt"

	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/sirupsen/logrus"
)

// Skip is the runtime discard state driven by resume.
type Skip int

const (
	None Skip = iota
	All
	NextTrx
	NextStmt
)

func (s Skip) String() string {
	switch s {
	case All:
		return "ALL"
	case NextTrx:
		return "NEXT_TRX"
	case NextStmt:
		return "NEXT_STMT"
	default:
		return "NONE"
	}
}

// Controller drives the skip state machine across the lifetime of a
// session. It is not safe for concurrent use; the dispatch loop owns it
// exclusively.
type Controller struct {
	target tid.TID
	hasTarget bool
	skip   Skip
}

// New returns a Controller with no target: Active always reports false and
// nothing is ever discarded.
func New() *Controller {
	return &Controller{}
}

// SetTarget installs the TID streaming must resume from, arming the skip
// state machine. Passing the zero TID disarms it.
func (c *Controller) SetTarget(target tid.TID) {
	if target.Zero() {
		c.hasTarget = false
		c.skip = None
		return
	}
	c.target = target
	c.hasTarget = true
	c.skip = All
}

// Active reports whether events are currently being discarded.
func (c *Controller) Active() bool {
	return c.skip != None
}

// Skip returns the current skip state, mostly for logging and tests.
func (c *Controller) Skip() Skip {
	return c.skip
}

// Target returns the TID streaming must resume from. Only meaningful when
// Active reports true.
func (c *Controller) Target() tid.TID {
	return c.target
}

// ObserveGtid updates skip state in response to a Gtid event, per the
// runtime-skip rules in section 4.6. It returns an error (fatal) if the
// stream has already advanced past the target, meaning safe resume is
// impossible.
func (c *Controller) ObserveGtid(g event.Gtid) error {
	if !c.hasTarget || c.skip == None {
		return nil
	}

	if g.TID == c.target {
		if g.ImplicitCommit {
			c.skip = NextStmt
		} else {
			c.skip = NextTrx
		}
		logrus.WithField("tid", g.TID.String()).Info("resume target reached")
		return nil
	}

	if tid.Comparable(g.TID, c.target) && g.TID.Sequence > c.target.Sequence {
		return fmt.Errorf("resume impossible: observed tid %s is strictly newer than checkpoint target %s", g.TID, c.target)
	}

	return nil
}

// ObserveConsumed is called once for every TableMap, Query, Rows or Xid
// event discarded while skip != NONE (for an Xid, after ObserveXid); Gtid
// events and ignored event types do not count. It clears NEXT_STMT
// unconditionally (the single next such event after reaching the target
// clears it).
func (c *Controller) ObserveConsumed() {
	if c.skip == NextStmt {
		c.skip = None
	}
}

// ObserveXid clears NEXT_TRX skip state on the next Xid after the target
// was reached.
func (c *Controller) ObserveXid() {
	if c.skip == NextTrx {
		c.skip = None
	}
}

// Locate finds the binary-log starting position for target by scanning the
// upstream's ordered binary log list and the start-TID set of each log at
// the start-of-log sentinel offset (4). It stops at the first log whose
// start-TID set is strictly newer than target; the position to start from
// is the previous log's start-TID set. If the first log is already newer,
// streaming starts from the first log. If no log is newer, streaming
// starts from the last log.
//
// Unlike a naive outer scan that keeps iterating past the answer, Locate
// returns as soon as the answer is found.
func Locate(ctx context.Context, client contracts.UpstreamClient, target tid.TID) ([]tid.TID, error) {
	logs, err := client.ListBinaryLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing binary logs: %w", err)
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("upstream reports no binary logs")
	}

	var prev []tid.TID
	for i, name := range logs {
		startTIDs, err := client.GTIDsAt(ctx, name, 4)
		if err != nil {
			return nil, fmt.Errorf("reading start-tids of %s: %w", name, err)
		}

		if tid.IsStrictlyNewer(target, startTIDs) {
			if i == 0 {
				return startTIDs, nil
			}
			return prev, nil
		}
		prev = startTIDs
	}

	// No log is newer than the target: start from the last log's position.
	return prev, nil
}
