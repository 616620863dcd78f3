package postgres

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
)

// scanRows reads every row into a column-keyed storage.Row. The driver returns
// NUMERIC and TEXT as []byte; those are copied into strings so rows stay valid
// after the result set is closed.
func scanRows(rows *sql.Rows) ([]storage.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := make([]storage.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(storage.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// catalogOrder returns the catalogued ids sorted, so statements are prepared
// in a deterministic order.
func catalogOrder() []storage.QueryID {
	ids := make([]storage.QueryID, 0, len(storage.Catalog))
	for id := range storage.Catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
