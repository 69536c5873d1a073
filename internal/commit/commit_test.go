package commit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/amvasilyev/cdc-pump/internal/checkpoint"
	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	commits   int
	rollbacks int
	commitErr error
}

func (f *fakeExecutor) Execute(context.Context, event.Query) error { return nil }
func (f *fakeExecutor) Commit(context.Context) error               { f.commits++; return f.commitErr }
func (f *fakeExecutor) Rollback(context.Context) error             { f.rollbacks++; return nil }

type fakeRegistry struct {
	commitErr   error
	commitCalls int
	rollbacks   int
}

func (f *fakeRegistry) CommitAll(context.Context) error { f.commitCalls++; return f.commitErr }
func (f *fakeRegistry) RollbackAll(context.Context)     { f.rollbacks++ }

func TestCommitSuccessAdvancesCheckpoint(t *testing.T) {
	store := checkpoint.New(filepath.Join(t.TempDir(), "checkpoint.txt"))
	exec := &fakeExecutor{}
	reg := &fakeRegistry{}
	c := New(exec, reg, store)

	want := tid.TID{Domain: 0, Server: 1, Sequence: 11}
	require.NoError(t, c.Commit(context.Background(), want))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestCommitExecutorFailureDoesNotAdvanceCheckpoint(t *testing.T) {
	store := checkpoint.New(filepath.Join(t.TempDir(), "checkpoint.txt"))
	exec := &fakeExecutor{commitErr: errors.New("executor down")}
	reg := &fakeRegistry{}
	c := New(exec, reg, store)

	err := c.Commit(context.Background(), tid.TID{Domain: 0, Server: 1, Sequence: 11})
	require.Error(t, err)

	// Table commits are still attempted even though the executor failed.
	require.Equal(t, 1, reg.commitCalls)

	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommitTableFailureDoesNotAdvanceCheckpoint(t *testing.T) {
	store := checkpoint.New(filepath.Join(t.TempDir(), "checkpoint.txt"))
	exec := &fakeExecutor{}
	reg := &fakeRegistry{commitErr: errors.New("table commit failed")}
	c := New(exec, reg, store)

	err := c.Commit(context.Background(), tid.TID{Domain: 0, Server: 1, Sequence: 11})
	require.Error(t, err)

	_, ok, _ := store.Load()
	require.False(t, ok)
}
