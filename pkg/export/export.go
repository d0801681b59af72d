package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nicktill/gpiolog/pkg/store"
)

// SampleSource is anything that can list every sample in id order.
type SampleSource interface {
	ReadAll(ctx context.Context) ([]store.Sample, error)
}

// Exporter handles exporting samples to CSV
type Exporter struct {
	source SampleSource
}

// NewExporter creates a new exporter
func NewExporter(source SampleSource) *Exporter {
	return &Exporter{source: source}
}

// ExportResult contains stats about the export
type ExportResult struct {
	SamplesExported int       `json:"samples_exported"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
}

// Filename returns the download name for a CSV export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("gpio_log_%s.csv", t.Format("20060102_150405"))
}

// ExportToCSV writes the full table as CSV to the given writer
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer) (*ExportResult, error) {
	samples, err := e.source.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	if err := WriteCSV(w, samples); err != nil {
		return nil, err
	}

	return &ExportResult{
		SamplesExported: len(samples),
		Format:          "csv",
		ExportedAt:      time.Now(),
	}, nil
}

// ExportToFile writes the CSV to path, replacing any existing file.
func (e *Exporter) ExportToFile(ctx context.Context, path string) (*ExportResult, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	result, err := e.ExportToCSV(ctx, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close CSV file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WriteCSV encodes samples with a header row in schema column order.
func WriteCSV(w io.Writer, samples []store.Sample) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(store.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Timestamp,
			strconv.Itoa(s.PinState),
			strconv.Itoa(s.LEDState),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
