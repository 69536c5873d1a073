package tableset

import (
	"context"
	"errors"
	"testing"

	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	commits   int
	rollbacks int
	closed    bool
	commitErr error
}

func (f *fakeApplier) Enqueue(context.Context, event.Rows) error { return nil }
func (f *fakeApplier) Commit(context.Context) error              { f.commits++; return f.commitErr }
func (f *fakeApplier) Rollback(context.Context) error             { f.rollbacks++; return nil }
func (f *fakeApplier) Close(context.Context) error                { f.closed = true; return nil }

type fakeOpener struct {
	appliers map[uint64]*fakeApplier
	openErr  error
}

func (o *fakeOpener) OpenTable(_ context.Context, m event.TableMap) (contracts.TableApplier, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	a := &fakeApplier{}
	if o.appliers == nil {
		o.appliers = make(map[uint64]*fakeApplier)
	}
	o.appliers[m.TableID] = a
	return a, nil
}

func TestOpenAndLookup(t *testing.T) {
	opener := &fakeOpener{}
	reg := New(opener)

	require.NoError(t, reg.Open(context.Background(), event.TableMap{TableID: 7, Database: "db", Table: "t"}))

	applier, ok := reg.Lookup(7)
	require.True(t, ok)
	require.NotNil(t, applier)

	name, ok := reg.Name(7)
	require.True(t, ok)
	require.Equal(t, "db.t", name)

	_, ok = reg.Lookup(99)
	require.False(t, ok)
}

func TestOpenReplacesAndRollsBackPrior(t *testing.T) {
	opener := &fakeOpener{}
	reg := New(opener)

	require.NoError(t, reg.Open(context.Background(), event.TableMap{TableID: 7, Database: "db", Table: "t"}))
	first := opener.appliers[7]

	require.NoError(t, reg.Open(context.Background(), event.TableMap{TableID: 7, Database: "db", Table: "t2"}))

	require.Equal(t, 1, first.rollbacks)
	require.True(t, first.closed)

	name, _ := reg.Name(7)
	require.Equal(t, "db.t2", name)
}

func TestOpenFailureIsPropagated(t *testing.T) {
	opener := &fakeOpener{openErr: errors.New("downstream rejected schema")}
	reg := New(opener)

	err := reg.Open(context.Background(), event.TableMap{TableID: 1, Database: "db", Table: "t"})
	require.Error(t, err)
}

func TestCommitAllCollectsAllFailures(t *testing.T) {
	opener := &fakeOpener{}
	reg := New(opener)

	require.NoError(t, reg.Open(context.Background(), event.TableMap{TableID: 1, Database: "db", Table: "a"}))
	require.NoError(t, reg.Open(context.Background(), event.TableMap{TableID: 2, Database: "db", Table: "b"}))

	opener.appliers[1].commitErr = errors.New("boom")

	err := reg.CommitAll(context.Background())
	require.Error(t, err)

	// Both tables must have been attempted despite the first failure.
	require.Equal(t, 1, opener.appliers[1].commits)
	require.Equal(t, 1, opener.appliers[2].commits)
}
