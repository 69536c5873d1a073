package modesm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCommitter struct {
	calls int
	err   error
}

func (f *fakeCommitter) Commit(context.Context) error {
	f.calls++
	return f.err
}

func TestEnsureNoOpWhenAlreadyInMode(t *testing.T) {
	m := New()
	c := &fakeCommitter{}
	require.NoError(t, m.Ensure(context.Background(), Statement, c))
	require.Equal(t, 0, c.calls)
}

func TestEnsureCommitsBeforeSwitch(t *testing.T) {
	m := New()
	c := &fakeCommitter{}
	require.NoError(t, m.Ensure(context.Background(), Bulk, c))
	require.Equal(t, 1, c.calls)
	require.Equal(t, Bulk, m.Mode())
}

func TestEnsureFailedCommitBlocksSwitch(t *testing.T) {
	m := New()
	c := &fakeCommitter{err: errors.New("downstream unavailable")}
	err := m.Ensure(context.Background(), Bulk, c)
	require.Error(t, err)
	require.Equal(t, Statement, m.Mode())
}
