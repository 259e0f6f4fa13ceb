package bench

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/series"
)

const (
	sqliteTable      = "data"
	defaultSQLiteDSN = ":memory:"
	// sqliteBatchRows is the number of inserted rows per transaction.
	sqliteBatchRows = 10_000
)

// sqliteStrategy answers the query in SQLite through SQL translated from
// the query. Without loadTimed the table is filled in Prepare; with it the
// file parse, the table load and the query are all timed.
type sqliteStrategy struct {
	name      string
	loadTimed bool
	dsn       string
	path      string
	db        *sql.DB
}

func (s *sqliteStrategy) Name() string { return s.name }

func (s *sqliteStrategy) Timing() TimingScope {
	if s.loadTimed {
		return TimingLoadQuery
	}
	return TimingQuery
}

func (s *sqliteStrategy) Prepare(ctx context.Context, ds *Dataset) error {
	if s.dsn == "" {
		s.dsn = defaultSQLiteDSN
	}
	if s.loadTimed {
		if ds.Path == "" {
			return errNoPath
		}
		s.path = ds.Path
		return nil
	}
	if ds.Frame == nil {
		return errNoFrame
	}

	db, err := openSQLite(ctx, s.dsn)
	if err != nil {
		return err
	}
	if err := loadTable(ctx, db, sqliteTable, ds.Frame); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *sqliteStrategy) Run(ctx context.Context, q Query) (Outcome, error) {
	if s.loadTimed {
		df, err := io.ReadFile(s.path, q.Columns(), memory.NewGoAllocator())
		if err != nil {
			return Outcome{}, err
		}
		defer df.Release()

		db, err := openSQLite(ctx, s.dsn)
		if err != nil {
			return Outcome{}, err
		}
		s.db = db
		if err := loadTable(ctx, db, sqliteTable, df); err != nil {
			return Outcome{}, err
		}
	}
	return querySQLite(ctx, s.db, q)
}

// Close releases the database.
func (s *sqliteStrategy) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", dsn, err)
	}
	// every connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=OFF",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configuring sqlite: %w", err)
		}
	}
	return db, nil
}

// sqliteType maps a column type to its SQLite declaration. Booleans are
// stored as text so that keys render the same as in the other engines.
func sqliteType(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.INT64, arrow.INT32:
		return "INTEGER"
	case arrow.FLOAT64, arrow.FLOAT32:
		return "REAL"
	default:
		return "TEXT"
	}
}

// loadTable creates table with the frame's columns and inserts every row.
func loadTable(ctx context.Context, db *sql.DB, table string, df *dataframe.DataFrame) error {
	names := df.Columns()
	defs := make([]string, len(names))
	placeholders := make([]string, len(names))
	cells := make([]func(row int) any, len(names))

	for i, name := range names {
		col, _ := df.Column(name)
		arr := col.Array()
		defer arr.Release()

		defs[i] = fmt.Sprintf("%s %s", quoteIdent(name), sqliteType(arr.DataType()))
		placeholders[i] = "?"
		cells[i] = sqliteCell(arr)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), strings.Join(placeholders, ", "))
	args := make([]any, len(names))
	for start := 0; start < df.Len(); start += sqliteBatchRows {
		end := min(start+sqliteBatchRows, df.Len())
		if err := insertRows(ctx, db, insert, cells, args, start, end); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(ctx context.Context, db *sql.DB, insert string, cells []func(int) any, args []any, start, end int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for row := start; row < end; row++ {
		for i, cell := range cells {
			args[i] = cell(row)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting row %d: %w", row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rows %d-%d: %w", start, end, err)
	}
	return nil
}

// sqliteCell returns the bound value of a column at a row; nil for nulls
// and NaN.
func sqliteCell(arr arrow.Array) func(row int) any {
	if get, ok := series.NumericAccessor(arr); ok {
		isInt := arr.DataType().ID() == arrow.INT64 || arr.DataType().ID() == arrow.INT32
		return func(row int) any {
			v, valid := get(row)
			switch {
			case !valid, math.IsNaN(v):
				return nil
			case isInt:
				return int64(v)
			default:
				return v
			}
		}
	}
	return func(row int) any {
		if arr.IsNull(row) {
			return nil
		}
		return series.FormatValue(arr, row)
	}
}

func querySQLite(ctx context.Context, db *sql.DB, q Query) (Outcome, error) {
	query, args := q.SQL(sqliteTable)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return Outcome{}, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	width := max(len(q.GroupBy), 1)
	values := make([]sql.NullString, width)
	dest := make([]any, width)
	for i := range values {
		dest[i] = &values[i]
	}

	var retained []Outcome
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return Outcome{}, fmt.Errorf("scanning result: %w", err)
		}
		parts := make([]string, len(q.GroupBy))
		for i := range parts {
			parts[i] = values[i].String
		}
		retained = append(retained, Outcome{Count: 1, Keys: []string{KeyString(parts)}})
	}
	if err := rows.Err(); err != nil {
		return Outcome{}, fmt.Errorf("reading result: %w", err)
	}
	return mergeOutcomes(retained), nil
}
