package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Bounds holds the timestamps of the oldest and newest rows.
// Both are empty when the table is empty.
type Bounds struct {
	First string
	Last  string
}

// groupable lists the columns CountBy accepts.
var groupable = map[string]bool{
	"pin_state": true,
	"led_state": true,
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gpio_log`).Scan(&count); err != nil {
		return 0, storageErr("count", err)
	}
	return count, nil
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, &QueryError{Reason: fmt.Sprintf("limit must be positive, got %d", limit)}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, pin_state, led_state FROM gpio_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	samples, err := scanSamples(rows)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	return samples, nil
}

// Bounds returns the timestamps of the first and last inserted rows.
func (s *Store) Bounds(ctx context.Context) (Bounds, error) {
	first, err := s.edgeTimestamp(ctx, "ASC")
	if err != nil {
		return Bounds{}, err
	}
	last, err := s.edgeTimestamp(ctx, "DESC")
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{First: first, Last: last}, nil
}

func (s *Store) edgeTimestamp(ctx context.Context, order string) (string, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM gpio_log ORDER BY id `+order+` LIMIT 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("bounds", err)
	}
	return ts.String, nil
}

// CountBy returns row counts grouped by the values of column, keyed by the
// decimal value. Only pin_state and led_state can be grouped.
func (s *Store) CountBy(ctx context.Context, column string) (map[string]int, error) {
	if !groupable[column] {
		return nil, &QueryError{Reason: fmt.Sprintf("cannot group by %q", column)}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM gpio_log GROUP BY `+column)
	if err != nil {
		return nil, storageErr("count by "+column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			value sql.NullInt64
			n     int
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, storageErr("count by "+column, err)
		}
		key := "null"
		if value.Valid {
			key = strconv.FormatInt(value.Int64, 10)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count by "+column, err)
	}
	return counts, nil
}
