package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a live store in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "database.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "database.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file was not created")
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "open", storageErr.Op)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, 1, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.EnsureSchema(ctx), "iteration %d", i)
	}

	var tables int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='gpio_log'`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 1, tables)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-running schema must not drop rows")
}

func TestAppend_ReadAllInsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		sample, err := s.Append(ctx, i%2, (i+1)%2)
		require.NoError(t, err)
		assert.Positive(t, sample.ID)
	}

	samples, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, samples, n)

	for i, sample := range samples {
		assert.Equal(t, i%2, sample.PinState)
		assert.Equal(t, (i+1)%2, sample.LEDState)
		if i > 0 {
			assert.Greater(t, sample.ID, samples[i-1].ID, "ids must strictly increase")
		}
	}
}

func TestAppend_StampsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 11, 19, 12, 30, 45, 123456000, time.Local)
	s := createTestStore(t, WithClock(func() time.Time { return fixed }))

	sample, err := s.Append(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-19T12:30:45.123456", sample.Timestamp)

	samples, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, sample, samples[0])
}

func TestClearAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, 1, 1)
		require.NoError(t, err)
	}

	require.NoError(t, s.ClearAll(ctx))

	samples, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, samples)

	// Appends keep working after a clear.
	sample, err := s.Append(ctx, 0, 0)
	require.NoError(t, err)
	assert.Positive(t, sample.ID)
}

func TestAppend_ClosedStore(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Append(context.Background(), 1, 1)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "append", storageErr.Op)
}

func TestRecent_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, 1, 1)
	require.NoError(t, err)
	_, err = s.Append(ctx, 0, 0)
	require.NoError(t, err)

	recent, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 0, recent[0].PinState)
	assert.Equal(t, 0, recent[0].LEDState)

	all, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Greater(t, all[0].ID, all[1].ID)
}

func TestRecent_InvalidLimit(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Recent(context.Background(), 0)

	var queryErr *QueryError
	require.ErrorAs(t, err, &queryErr)
}

func TestBounds(t *testing.T) {
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	s := createTestStore(t, WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	ctx := context.Background()

	bounds, err := s.Bounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, Bounds{}, bounds)

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, i, i)
		require.NoError(t, err)
	}

	bounds, err = s.Bounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:01.000000", bounds.First)
	assert.Equal(t, "2025-01-01T00:00:03.000000", bounds.Last)
}

func TestCountBy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	counts, err := s.CountBy(ctx, "pin_state")
	require.NoError(t, err)
	assert.Empty(t, counts)

	for _, pair := range [][2]int{{1, 0}, {1, 1}, {0, 1}} {
		_, err := s.Append(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	pins, err := s.CountBy(ctx, "pin_state")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0": 1, "1": 2}, pins)

	leds, err := s.CountBy(ctx, "led_state")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0": 1, "1": 2}, leds)
}

func TestCountBy_RejectsUnknownColumn(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CountBy(context.Background(), "timestamp; DROP TABLE gpio_log")

	var queryErr *QueryError
	require.ErrorAs(t, err, &queryErr)
}

func TestOpenSnapshot_ReadsCopy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, 1, 1)
	require.NoError(t, err)
	_, err = s.Append(ctx, 0, 1)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	copyPath := filepath.Join(t.TempDir(), "gpio_data.db")
	require.NoError(t, os.WriteFile(copyPath, data, 0o644))

	snap, err := OpenSnapshot(copyPath)
	require.NoError(t, err)
	defer snap.Close()

	samples, err := snap.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	_, err = snap.Append(ctx, 1, 1)
	assert.True(t, errors.Is(err, ErrReadOnly))
	assert.ErrorIs(t, snap.ClearAll(ctx), ErrReadOnly)
}

func TestOpenSnapshot_Missing(t *testing.T) {
	_, err := OpenSnapshot(filepath.Join(t.TempDir(), "missing.db"))

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, 1, 0)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "database_export.db")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))
	require.NoError(t, s.Backup(ctx, dest))

	snap, err := OpenSnapshot(dest)
	require.NoError(t, err)
	defer snap.Close()

	count, err := snap.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
