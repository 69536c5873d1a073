package applier

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/amvasilyev/cdc-pump/internal/event"
	"github.com/stretchr/testify/require"
)

func newTestApplier() *TableApplier {
	a := &TableApplier{
		fullName:   "db.t",
		readerName: "test-reader",
		buf:        &bytes.Buffer{},
	}
	a.csv = csv.NewWriter(a.buf)
	return a
}

func TestEnqueueStagesCSVRows(t *testing.T) {
	a := newTestApplier()
	require.NoError(t, a.Enqueue(context.Background(), event.Rows{
		TableID: 7,
		Op:      event.RowWrite,
		Rows: [][]any{
			{int64(1), "alice"},
			{int64(2), "bob"},
		},
	}))

	require.Contains(t, a.buf.String(), "alice")
	require.Contains(t, a.buf.String(), "bob")
}

func TestRollbackDiscardsPendingBatch(t *testing.T) {
	a := newTestApplier()
	require.NoError(t, a.Enqueue(context.Background(), event.Rows{
		Rows: [][]any{{int64(1)}},
	}))
	require.Greater(t, a.buf.Len(), 0)

	require.NoError(t, a.Rollback(context.Background()))
	require.Equal(t, 0, a.buf.Len())
}

func TestCommitNoOpWhenNothingStaged(t *testing.T) {
	a := newTestApplier()
	require.NoError(t, a.Commit(context.Background()))
}

func TestStringify(t *testing.T) {
	require.Equal(t, "", stringify(nil))
	require.Equal(t, "hi", stringify([]byte("hi")))
	require.Equal(t, "hi", stringify("hi"))
	require.Equal(t, "42", stringify(int64(42)))
	require.Equal(t, "true", stringify(true))
}
