package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"
)

// maxBulkAttempts bounds the bulk-insert retry loop before the per-row
// fallback takes over.
const maxBulkAttempts = 3

// Writer is the relational bulk writer: given two tables, it
// atomically attempts a two-table bulk insert, retrying the bulk path up
// to maxBulkAttempts times before falling back to per-row inserts that
// preserve whatever subset of rows is valid.
type Writer struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewWriter wraps a pooled *gorm.DB (see Connect) as a bulk writer.
func NewWriter(db *gorm.DB, logger hclog.Logger) *Writer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Writer{db: db, logger: logger.Named("relational-writer")}
}

// Table is one side of a two-table bulk insert: a destination table, its
// column list, and the rows to insert (each row's values ordered to match
// Columns).
type Table struct {
	Name    string
	Columns []string
	Rows    [][]interface{}
}

// BulkInsert attempts a single transaction inserting both tables' rows. If
// the bulk path fails after maxBulkAttempts tries, it rolls back and falls
// through to per-row inserts (each its own transaction) so that valid rows
// are preserved and bad rows are reported individually. No cross-table
// atomicity is promised beyond the happy path: in per-row fallback, one
// table's rows may commit while the other's fail.
func (w *Writer) BulkInsert(ctx context.Context, t1, t2 Table) error {
	if len(t1.Rows) == 0 && len(t2.Rows) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxBulkAttempts; attempt++ {
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := bulkInsertTable(tx, t1); err != nil {
				return fmt.Errorf("bulk insert into %s: %w", t1.Name, err)
			}
			if err := bulkInsertTable(tx, t2); err != nil {
				return fmt.Errorf("bulk insert into %s: %w", t2.Name, err)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		lastErr = err
		w.logger.Warn("bulk insert attempt failed", "attempt", attempt, "of", maxBulkAttempts, "error", err)
	}

	w.logger.Error("bulk insert exhausted retries, falling back to per-row inserts", "error", lastErr)

	var rowErrs *multierror.Error
	rowErrs = multierror.Append(rowErrs, w.perRowInsert(ctx, t1)...)
	rowErrs = multierror.Append(rowErrs, w.perRowInsert(ctx, t2)...)

	if rowErrs.Len() > 0 {
		w.logger.Error("per-row fallback had individual failures", "count", rowErrs.Len())
	}
	return nil
}

// perRowInsert inserts each row of a table in its own transaction, logging
// and collecting (without aborting on) individual failures.
func (w *Writer) perRowInsert(ctx context.Context, t Table) []error {
	var errs []error
	for i, row := range t.Rows {
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return bulkInsertTable(tx, Table{Name: t.Name, Columns: t.Columns, Rows: [][]interface{}{row}})
		})
		if err != nil {
			w.logger.Error("per-row insert failed", "table", t.Name, "row_index", i, "error", err)
			errs = append(errs, fmt.Errorf("row %d into %s: %w", i, t.Name, err))
		}
	}
	return errs
}

func bulkInsertTable(tx *gorm.DB, t Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	valueGroups := make([]string, len(t.Rows))
	args := make([]interface{}, 0, len(t.Rows)*len(t.Columns))
	for i, row := range t.Rows {
		placeholders := make([]string, len(row))
		for j := range row {
			placeholders[j] = "?"
		}
		valueGroups[i] = "(" + strings.Join(placeholders, ", ") + ")"
		args = append(args, row...)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		t.Name,
		strings.Join(t.Columns, ", "),
		strings.Join(valueGroups, ", "),
	)

	return tx.Exec(query, args...).Error
}
