package io

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paveg/crosstab/internal/pivot"
)

// ReadSQL runs query and returns its rows as records together with the
// result column names.
func ReadSQL(ctx context.Context, db *sql.DB, query string, args ...any) (pivot.Records, []string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return ScanRows(rows)
}

// ScanRows drains rows into records. Byte slices become strings; SQL NULL
// becomes a missing value. The caller closes rows.
func ScanRows(rows *sql.Rows) (pivot.Records, []string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading columns: %w", err)
	}

	records := pivot.Records{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scanning row: %w", err)
		}
		rec := make(pivot.Record, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				rec[name] = string(b)
			} else {
				rec[name] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating rows: %w", err)
	}
	return records, columns, nil
}
