package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/export"
	"github.com/nicktill/gpiolog/pkg/producer"
	"github.com/nicktill/gpiolog/pkg/snapshot"
	"github.com/nicktill/gpiolog/pkg/store"
)

// SnapshotExporter refreshes the local snapshot from the live database.
type SnapshotExporter interface {
	Export(ctx context.Context, destination string) (*snapshot.Result, error)
}

// RemoteCaller invokes operations on the bridge.
type RemoteCaller interface {
	Call(ctx context.Context, method string, result any, params ...any) error
}

// ExportHistory lists past export attempts.
type ExportHistory interface {
	Recent(ctx context.Context, limit int) ([]snapshot.ExportRecord, error)
}

// ExportObserver is told about every export the service triggers.
type ExportObserver interface {
	RecordSuccess()
	RecordFailure(err error)
}

// DataResponse is the payload of GET /api/data.
type DataResponse struct {
	Total          int            `json:"total"`
	Entries        []store.Sample `json:"entries"`
	FirstTimestamp *string        `json:"first_timestamp"`
	LastTimestamp  *string        `json:"last_timestamp"`
	Error          string         `json:"error,omitempty"`
}

// StatsResponse is the payload of GET /api/stats.
type StatsResponse struct {
	TotalEntries      int            `json:"total_entries"`
	PinStateCounts    map[string]int `json:"pin_state_counts"`
	LedStateCounts    map[string]int `json:"led_state_counts"`
	DatabaseSizeBytes int64          `json:"database_size_bytes"`
	DatabaseSizeKB    float64        `json:"database_size_kb"`
	Error             string         `json:"error,omitempty"`
}

// ClearResponse is the payload of POST /api/clear.
type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service answers viewer queries from a snapshot taken fresh for each call.
// Calls are serialized because they all share one snapshot file.
type Service struct {
	exporter     SnapshotExporter
	snapshotPath string
	remote       RemoteCaller
	history      ExportHistory
	observer     ExportObserver

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithRemote sets the bridge used to clear the live log.
func WithRemote(remote RemoteCaller) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// WithHistory sets where export records are listed from.
func WithHistory(history ExportHistory) Option {
	return func(s *Service) {
		s.history = history
	}
}

// WithObserver reports each export outcome to observer.
func WithObserver(observer ExportObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// NewService creates a service that keeps its snapshot at snapshotPath.
func NewService(exporter SnapshotExporter, snapshotPath string, opts ...Option) *Service {
	s := &Service{
		exporter:     exporter,
		snapshotPath: snapshotPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SnapshotPath returns where the service keeps its snapshot.
func (s *Service) SnapshotPath() string {
	return s.snapshotPath
}

// GetData returns the total row count, the limit most recent samples (newest
// first) and the first and last timestamps. Failures are reported in the
// Error field with empty defaults.
func (s *Service) GetData(ctx context.Context, limit int) DataResponse {
	if limit <= 0 {
		limit = config.DefaultDataLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.getData(ctx, limit)
	if err != nil {
		return DataResponse{Entries: []store.Sample{}, Error: err.Error()}
	}
	return resp
}

func (s *Service) getData(ctx context.Context, limit int) (DataResponse, error) {
	snap, err := s.refresh(ctx)
	if err != nil {
		return DataResponse{}, err
	}
	defer snap.Close()

	total, err := snap.Count(ctx)
	if err != nil {
		return DataResponse{}, err
	}
	entries, err := snap.Recent(ctx, limit)
	if err != nil {
		return DataResponse{}, err
	}
	bounds, err := snap.Bounds(ctx)
	if err != nil {
		return DataResponse{}, err
	}

	resp := DataResponse{Total: total, Entries: entries}
	if bounds.First != "" {
		resp.FirstTimestamp = &bounds.First
	}
	if bounds.Last != "" {
		resp.LastTimestamp = &bounds.Last
	}
	return resp, nil
}

// GetStats returns grouped pin and LED counts and the snapshot size.
// Failures are reported in the Error field with zeroed counts.
func (s *Service) GetStats(ctx context.Context) StatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.getStats(ctx)
	if err != nil {
		return StatsResponse{
			PinStateCounts: map[string]int{},
			LedStateCounts: map[string]int{},
			Error:          err.Error(),
		}
	}
	return resp
}

func (s *Service) getStats(ctx context.Context) (StatsResponse, error) {
	snap, err := s.refresh(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	defer snap.Close()

	total, err := snap.Count(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	pins, err := snap.CountBy(ctx, "pin_state")
	if err != nil {
		return StatsResponse{}, err
	}
	leds, err := snap.CountBy(ctx, "led_state")
	if err != nil {
		return StatsResponse{}, err
	}
	info, err := os.Stat(s.snapshotPath)
	if err != nil {
		return StatsResponse{}, fmt.Errorf("stat snapshot: %w", err)
	}

	return StatsResponse{
		TotalEntries:      total,
		PinStateCounts:    pins,
		LedStateCounts:    leds,
		DatabaseSizeBytes: info.Size(),
		DatabaseSizeKB:    math.Round(float64(info.Size())/1024*100) / 100,
	}, nil
}

// ExportCSV writes every sample, id ascending, as CSV to w.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (*export.ExportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	return export.NewExporter(snap).ExportToCSV(ctx, w)
}

// Clear empties the live log through the bridge, then deletes the local
// snapshot so a stale copy cannot be served.
func (s *Service) Clear(ctx context.Context) ClearResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote == nil {
		return ClearResponse{Message: "Failed to clear database: no bridge configured"}
	}
	var cleared bool
	if err := s.remote.Call(ctx, producer.MethodClearLog, &cleared); err != nil {
		return ClearResponse{Message: fmt.Sprintf("Failed to clear database: %v", err)}
	}
	if !cleared {
		return ClearResponse{Message: "Failed to clear database: bridge reported failure"}
	}

	if err := os.Remove(s.snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ClearResponse{Message: fmt.Sprintf("Database cleared but the local snapshot could not be removed: %v", err)}
	}
	return ClearResponse{Success: true, Message: "Database cleared successfully"}
}

// Exports lists up to limit recent export attempts, newest first.
func (s *Service) Exports(ctx context.Context, limit int) ([]snapshot.ExportRecord, error) {
	if s.history == nil {
		return []snapshot.ExportRecord{}, nil
	}
	if limit <= 0 {
		limit = config.DefaultExportsLimit
	}
	return s.history.Recent(ctx, limit)
}

// refresh exports a fresh snapshot and opens it read-only.
func (s *Service) refresh(ctx context.Context) (*store.Store, error) {
	_, err := s.exporter.Export(ctx, s.snapshotPath)
	if s.observer != nil {
		if err != nil {
			s.observer.RecordFailure(err)
		} else {
			s.observer.RecordSuccess()
		}
	}
	if err != nil {
		return nil, err
	}
	return store.OpenSnapshot(s.snapshotPath)
}
