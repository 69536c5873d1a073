package applier

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/amvasilyev/cdc-pump/internal/contracts"
	"github.com/amvasilyev/cdc-pump/internal/event"
	mysql "github.com/go-sql-driver/mysql"
)

var readerSeq atomic.Uint64

// TableApplier is the default contracts.TableApplier: row batches are
// staged as CSV in memory and flushed via LOAD DATA INFILE inside a
// transaction on Commit.
type TableApplier struct {
	db         *sql.DB
	fullName   string
	readerName string

	buf *bytes.Buffer
	csv *csv.Writer
}

// TableOpener is the default contracts.TableOpener: it creates one
// TableApplier per table, registered under a unique LOAD DATA reader name.
type TableOpener struct {
	DB *sql.DB
}

// OpenTable implements contracts.TableOpener.
func (o *TableOpener) OpenTable(_ context.Context, m event.TableMap) (contracts.TableApplier, error) {
	readerName := fmt.Sprintf("cdc-pump-%d-%d", m.TableID, readerSeq.Add(1))

	a := &TableApplier{
		db:         o.DB,
		fullName:   m.FullName(),
		readerName: readerName,
		buf:        &bytes.Buffer{},
	}
	a.csv = csv.NewWriter(a.buf)

	mysql.RegisterReaderHandler(readerName, func() io.Reader {
		return a.buf
	})

	return a, nil
}

// Enqueue appends rows as CSV records to the pending batch.
func (a *TableApplier) Enqueue(_ context.Context, rows event.Rows) error {
	for _, row := range rows.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = stringify(v)
		}
		if err := a.csv.Write(record); err != nil {
			return fmt.Errorf("staging row for %s: %w", a.fullName, err)
		}
	}
	a.csv.Flush()
	return a.csv.Error()
}

// Commit flushes the pending batch, if any, via LOAD DATA INFILE inside its
// own transaction.
func (a *TableApplier) Commit(ctx context.Context) error {
	if a.buf.Len() == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("opening bulk-load transaction for %s: %w", a.fullName, err)
	}

	query := fmt.Sprintf(
		"LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s FIELDS TERMINATED BY ',' ENCLOSED BY '\"' LINES TERMINATED BY '\\n'",
		a.readerName, a.fullName,
	)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("loading rows into %s: %w", a.fullName, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bulk load for %s: %w", a.fullName, err)
	}

	a.buf.Reset()
	return nil
}

// Rollback discards the pending batch without issuing a LOAD DATA.
func (a *TableApplier) Rollback(context.Context) error {
	a.buf.Reset()
	return nil
}

// Close is a no-op: the applier holds no resources beyond the shared *sql.DB.
func (a *TableApplier) Close(context.Context) error {
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
