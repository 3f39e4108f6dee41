// Package sqlitedb stores dataset records in a SQLite table. It serves them
// back as a paged source.Source and can push whole aggregations into SQL.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// DefaultBatch is the number of rows inserted per transaction by Load.
const DefaultBatch = 10000

const (
	driverName = "sqlite3"

	createTable = `CREATE TABLE IF NOT EXISTS records (
		id       INTEGER PRIMARY KEY,
		value    REAL    NOT NULL,
		category TEXT    NOT NULL
	)`
	insertRecord = `INSERT INTO records (id, value, category) VALUES (?, ?, ?)`
	countRecords = `SELECT COUNT(*) FROM records`
	selectPage   = `SELECT id, value, category FROM records ORDER BY id LIMIT ? OFFSET ?`
	sumValue     = `SELECT COALESCE(SUM(value), 0) FROM records`
	groupMoments = `SELECT category, COUNT(*), SUM(value), SUM(value * value)
		FROM records GROUP BY category`
)

// Load creates the records table at path and inserts src in transactions
// of batch rows. A non-positive batch selects DefaultBatch.
func Load(ctx context.Context, path string, src source.Source[dataset.Record], batch int) (err error) {
	if batch <= 0 {
		batch = DefaultBatch
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		closeErr := db.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	_, err = db.ExecContext(ctx, createTable)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	return source.Each(ctx, src, batch, func(window []dataset.Record) error {
		return insertBatch(ctx, db, window)
	})
}

func insertBatch(ctx context.Context, db *sql.DB, window []dataset.Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range window {
		_, err = stmt.ExecContext(ctx, r.ID, r.Value, r.Category)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// DB is a read-only handle on a records table.
type DB struct {
	db *sql.DB
}

// Open opens path read-only.
func Open(path string) (*DB, error) {
	db, err := sql.Open(driverName, path+"?mode=ro&_query_only=true")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &DB{db: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Len implements source.Source.
func (d *DB) Len(ctx context.Context) (int64, error) {
	var n int64

	err := d.db.QueryRowContext(ctx, countRecords).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return n, nil
}

// Open implements source.Source. Every Read fetches one page with
// LIMIT/OFFSET, so only a window of rows is in memory at a time.
func (d *DB) Open(_ context.Context, r source.Range) (source.Reader[dataset.Record], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	return &pageReader{db: d.db, next: r.Start, remaining: r.Len()}, nil
}

// SumValue computes the sum of the value column inside SQLite.
func (d *DB) SumValue(ctx context.Context) (float64, error) {
	var sum float64

	err := d.db.QueryRowContext(ctx, sumValue).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum values: %w", err)
	}

	return sum, nil
}

// GroupMoments computes per-category moments inside SQLite.
func (d *DB) GroupMoments(ctx context.Context) (accum.GroupMoments, error) {
	rows, err := d.db.QueryContext(ctx, groupMoments)
	if err != nil {
		return nil, fmt.Errorf("group moments: %w", err)
	}
	defer rows.Close()

	out := make(accum.GroupMoments)

	for rows.Next() {
		var (
			category string
			m        accum.Moments
		)

		err = rows.Scan(&category, &m.Count, &m.Sum, &m.SumSq)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}

		out[category] = m
	}

	return out, rows.Err()
}

type pageReader struct {
	db        *sql.DB
	next      int64
	remaining int64 // source.Unbounded reads to the end.
}

func (p *pageReader) Read(ctx context.Context, dst []dataset.Record) (int, error) {
	if p.remaining == 0 {
		return 0, io.EOF
	}

	limit := int64(len(dst))
	if p.remaining > 0 {
		limit = min(limit, p.remaining)
	}

	rows, err := p.db.QueryContext(ctx, selectPage, limit, p.next)
	if err != nil {
		return 0, fmt.Errorf("query page at %d: %w", p.next, err)
	}
	defer rows.Close()

	n := 0

	for rows.Next() {
		rec := &dst[n]

		err = rows.Scan(&rec.ID, &rec.Value, &rec.Category)
		if err != nil {
			return n, fmt.Errorf("scan row %d: %w", p.next+int64(n), err)
		}

		n++
	}

	err = rows.Err()
	if err != nil {
		return n, fmt.Errorf("page at %d: %w", p.next, err)
	}

	p.next += int64(n)

	if p.remaining > 0 {
		p.remaining -= int64(n)
	}

	if int64(n) < limit || p.remaining == 0 {
		p.remaining = 0

		return n, io.EOF
	}

	return n, nil
}

func (p *pageReader) Close() error { return nil }
