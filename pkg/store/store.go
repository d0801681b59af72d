package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// TimestampFormat is the ISO-8601 layout written into the timestamp column.
const TimestampFormat = "2006-01-02T15:04:05.000000"

const schemaSQL = `CREATE TABLE IF NOT EXISTS gpio_log (
	id INTEGER PRIMARY KEY,
	timestamp TEXT,
	pin_state INTEGER,
	led_state INTEGER
)`

// Columns lists the gpio_log columns in schema order.
var Columns = []string{"id", "timestamp", "pin_state", "led_state"}

// Sample is one logged GPIO observation.
type Sample struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	PinState  int    `json:"pin_state"`
	LEDState  int    `json:"led_state"`
}

// Store is a handle on one gpio_log database file.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp new samples.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the live database at path and ensures the
// gpio_log table exists.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("database path is required")}
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("open", fmt.Errorf("create database dir: %w", err))
		}
	}

	s, err := open(cleanPath, cleanPath+"?_pragma=busy_timeout(5000)", false, opts)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSnapshot opens a copied database file read-only. The file must exist.
func OpenSnapshot(path string, opts ...Option) (*Store, error) {
	cleanPath := filepath.Clean(path)
	if _, err := os.Stat(cleanPath); err != nil {
		return nil, storageErr("open snapshot", err)
	}
	return open(cleanPath, "file:"+cleanPath+"?mode=ro&_pragma=busy_timeout(5000)", true, opts)
}

func open(path, dsn string, readOnly bool, opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("open", fmt.Errorf("ping sqlite db: %w", err))
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:       db,
		path:     path,
		readOnly: readOnly,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureSchema creates the gpio_log table if it is absent. Safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.readOnly {
		return storageErr("ensure schema", ErrReadOnly)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return storageErr("ensure schema", err)
	}
	return nil
}

// Append stamps the current time, inserts one row and returns it with its id.
func (s *Store) Append(ctx context.Context, pinState, ledState int) (Sample, error) {
	if s.readOnly {
		return Sample{}, storageErr("append", ErrReadOnly)
	}
	sample := Sample{
		Timestamp: s.now().Format(TimestampFormat),
		PinState:  pinState,
		LEDState:  ledState,
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gpio_log (timestamp, pin_state, led_state) VALUES (?, ?, ?)`,
		sample.Timestamp, sample.PinState, sample.LEDState,
	)
	if err != nil {
		return Sample{}, storageErr("append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Sample{}, storageErr("append", fmt.Errorf("last insert id: %w", err))
	}
	sample.ID = id
	return sample, nil
}

// ReadAll returns every row in insertion order.
func (s *Store) ReadAll(ctx context.Context) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, pin_state, led_state FROM gpio_log ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("read all", err)
	}
	samples, err := scanSamples(rows)
	if err != nil {
		return nil, storageErr("read all", err)
	}
	return samples, nil
}

// ClearAll deletes every row. It is irreversible.
func (s *Store) ClearAll(ctx context.Context) error {
	if s.readOnly {
		return storageErr("clear", ErrReadOnly)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gpio_log`); err != nil {
		return storageErr("clear", err)
	}
	return nil
}

// Backup writes a consistent copy of the database to dest, replacing any
// existing file there.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageErr("backup", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return storageErr("backup", err)
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]Sample, error) {
	defer rows.Close()

	samples := make([]Sample, 0)
	for rows.Next() {
		var (
			sample    Sample
			timestamp sql.NullString
		)
		if err := rows.Scan(&sample.ID, &timestamp, &sample.PinState, &sample.LEDState); err != nil {
			return nil, err
		}
		sample.Timestamp = timestamp.String
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
