package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// keyPrefix namespaces export records. Keys are prefix + 8-byte big-endian
// start time + record id, so byte order is time order.
var keyPrefix = []byte("export/")

// ExportRecord is one export attempt.
type ExportRecord struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Container   string    `json:"container,omitempty"`
	SourcePath  string    `json:"source_path,omitempty"`
	Destination string    `json:"destination"`
	Bytes       int64     `json:"bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// OK reports whether the export succeeded.
func (r ExportRecord) OK() bool {
	return r.Error == ""
}

// LedgerConfig holds BadgerDB configuration
type LedgerConfig struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool
}

// Ledger stores export records in BadgerDB.
type Ledger struct {
	db *badger.DB
}

// OpenLedger opens (creating if needed) the export ledger.
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Records are a few hundred bytes and arrive a few times a minute, so
	// keep the footprint small.
	const memTableSize = 8 << 20
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(2).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithNumCompactors(2).
		WithValueLogFileSize(16 << 20).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores rec.
func (l *Ledger) Record(ctx context.Context, rec ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode export record: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(rec.StartedAt, rec.ID), value)
	})
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]ExportRecord, error) {
	records := make([]ExportRecord, 0)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, keyPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec ExportRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode export record: %w", err)
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Prune deletes records that started before the cutoff and returns how many
// were removed.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int, error) {
	var keys [][]byte
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			if !parseKeyTime(key).Before(before) {
				// Keys are time ordered; everything after is newer.
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := l.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete export record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush deletes: %w", err)
	}
	return len(keys), nil
}

// RunGC runs BadgerDB's value log garbage collection.
// badger.ErrNoRewrite means there was nothing to reclaim and is not reported.
func (l *Ledger) RunGC(discardRatio float64) error {
	err := l.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close shuts down BadgerDB cleanly
func (l *Ledger) Close() error {
	return l.db.Close()
}

func makeKey(startedAt time.Time, id string) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+len(id))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(startedAt.UnixNano()))
	return append(key, id...)
}

func parseKeyTime(key []byte) time.Time {
	if len(key) < len(keyPrefix)+8 {
		return time.Time{}
	}
	nanos := binary.BigEndian.Uint64(key[len(keyPrefix) : len(keyPrefix)+8])
	return time.Unix(0, int64(nanos))
}
