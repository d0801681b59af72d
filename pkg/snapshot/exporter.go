package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Recorder keeps a history of export attempts.
type Recorder interface {
	Record(ctx context.Context, rec ExportRecord) error
}

// Result describes a completed export.
type Result struct {
	Destination string
	Container   string
	SourcePath  string
	Bytes       int64
	Checksum    string
	Duration    time.Duration
}

// Exporter copies the located database to a host path.
type Exporter struct {
	locator  Locator
	recorder Recorder
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLedger records every export attempt in r.
func WithLedger(r Recorder) Option {
	return func(e *Exporter) {
		e.recorder = r
	}
}

// New creates an exporter.
func New(locator Locator, opts ...Option) *Exporter {
	e := &Exporter{locator: locator}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export replaces destination with a fresh copy of the live database.
// On error the previous file at destination is left as it was.
func (e *Exporter) Export(ctx context.Context, destination string) (*Result, error) {
	rec := ExportRecord{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		Destination: destination,
	}

	result, err := e.export(ctx, destination, &rec)

	rec.FinishedAt = time.Now()
	if err != nil {
		rec.Error = err.Error()
	}
	if e.recorder != nil {
		if recErr := e.recorder.Record(ctx, rec); recErr != nil {
			log.Printf("Failed to record export %s: %v", rec.ID, recErr)
		}
	}
	if err != nil {
		return nil, err
	}
	result.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	return result, nil
}

func (e *Exporter) export(ctx context.Context, destination string, rec *ExportRecord) (*Result, error) {
	src, err := e.locator.Locate(ctx)
	if err != nil {
		return nil, err
	}
	rec.Container = src.Container
	rec.SourcePath = src.Path

	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &CopyError{Path: destination, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destination)+".*.tmp")
	if err != nil {
		return nil, &CopyError{Path: destination, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	hash := xxhash.New()
	counter := &countingWriter{}
	copyErr := src.CopyTo(ctx, io.MultiWriter(tmp, hash, counter))
	if copyErr == nil {
		copyErr = tmp.Sync()
	}
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		return nil, &CopyError{Path: destination, Err: copyErr}
	case closeErr != nil:
		return nil, &CopyError{Path: destination, Err: closeErr}
	case counter.n == 0:
		return nil, &CopyError{Path: destination, Err: errors.New("source produced no data")}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		return nil, &CopyError{Path: destination, Err: fmt.Errorf("replace snapshot: %w", err)}
	}
	committed = true

	rec.Bytes = counter.n
	rec.Checksum = formatChecksum(hash.Sum64())

	return &Result{
		Destination: destination,
		Container:   src.Container,
		SourcePath:  src.Path,
		Bytes:       counter.n,
		Checksum:    rec.Checksum,
	}, nil
}

// Checksum returns the xxhash64 checksum of a file in the format used by
// export records.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return formatChecksum(hash.Sum64()), nil
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
