package binlogsrc

import (
	"testing"

	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/stretchr/testify/require"
)

func TestRenderGTIDSet(t *testing.T) {
	require.Equal(t, "", renderGTIDSet(nil))
	require.Equal(t, "0-1-10", renderGTIDSet([]tid.TID{{Domain: 0, Server: 1, Sequence: 10}}))
	require.Equal(t, "0-1-10,1-1-5", renderGTIDSet([]tid.TID{
		{Domain: 0, Server: 1, Sequence: 10},
		{Domain: 1, Server: 1, Sequence: 5},
	}))
}

func TestEscapeLiteral(t *testing.T) {
	require.Equal(t, "bin''000001", escapeLiteral("bin'000001"))
	require.Equal(t, "bin.000001", escapeLiteral("bin.000001"))
}

func TestRowOpFor(t *testing.T) {
	require.Equal(t, 0, int(rowOpFor(replication.WRITE_ROWS_EVENTv2)))
	require.Equal(t, 1, int(rowOpFor(replication.UPDATE_ROWS_EVENTv2)))
	require.Equal(t, 2, int(rowOpFor(replication.DELETE_ROWS_EVENTv2)))
}

func TestStripBinlogGtidPos(t *testing.T) {
	require.Equal(t, "", stripBinlogGtidPos(""))
	require.Equal(t, "", stripBinlogGtidPos("''"))
	require.Equal(t, "0-1-10,0-2-20", stripBinlogGtidPos("'0-1-10,0-2-20'"))
}
