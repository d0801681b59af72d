package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nicktill/gpiolog/pkg/bridge"
	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/export"
	"github.com/nicktill/gpiolog/pkg/store"
)

// Bridge method names.
const (
	MethodLogData        = "log_data"
	MethodClearLog       = "clear_log"
	MethodGetAllData     = "get_all_data"
	MethodExportDatabase = "export_database"
	MethodExportCSV      = "export_to_csv"
)

// SampleLog is the slice of the store the bridge operations need.
type SampleLog interface {
	Append(ctx context.Context, pinState, ledState int) (store.Sample, error)
	Count(ctx context.Context) (int, error)
	ReadAll(ctx context.Context) ([]store.Sample, error)
	ClearAll(ctx context.Context) error
	Backup(ctx context.Context, dest string) error
}

// Remote serves the operations a controller invokes over the bridge.
type Remote struct {
	samples  SampleLog
	exporter *export.Exporter
}

// NewRemote creates the remote-call producer over samples.
func NewRemote(samples SampleLog) *Remote {
	return &Remote{
		samples:  samples,
		exporter: export.NewExporter(samples),
	}
}

// LogData appends one sample. It reports success as a boolean and never
// returns an error, so a bad write cannot take down the controller side.
func (r *Remote) LogData(ctx context.Context, pinState, ledState int) bool {
	if _, err := r.samples.Append(ctx, pinState, ledState); err != nil {
		log.Printf("Error: %v", err)
		return false
	}

	total, err := r.samples.Count(ctx)
	if err != nil {
		log.Printf("Entry logged: pin=%d, led=%d (count unavailable: %v)", pinState, ledState, err)
		return true
	}
	log.Printf("Entry #%d: pin=%d, led=%d", total, pinState, ledState)
	return true
}

// Register provides the bridge operations. log_data is only provided when
// withLogData is set, i.e. in remote mode.
func (r *Remote) Register(b *bridge.Bridge, withLogData bool) error {
	handlers := map[string]bridge.Handler{
		MethodClearLog:       r.handleClearLog,
		MethodGetAllData:     r.handleGetAllData,
		MethodExportDatabase: r.handleExportDatabase,
		MethodExportCSV:      r.handleExportCSV,
	}
	if withLogData {
		handlers[MethodLogData] = r.handleLogData
	}

	for name, h := range handlers {
		if err := b.Provide(name, h); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

func (r *Remote) handleLogData(ctx context.Context, params []json.RawMessage) (any, error) {
	pin, err := bridge.IntParam(params, 0)
	if err != nil {
		log.Printf("Error: log_data pin_state: %v", err)
		return false, nil
	}
	led, err := bridge.IntParam(params, 1)
	if err != nil {
		log.Printf("Error: log_data led_state: %v", err)
		return false, nil
	}
	return r.LogData(ctx, pin, led), nil
}

func (r *Remote) handleClearLog(ctx context.Context, params []json.RawMessage) (any, error) {
	if err := r.samples.ClearAll(ctx); err != nil {
		return nil, err
	}
	log.Println("Database cleared")
	return true, nil
}

func (r *Remote) handleGetAllData(ctx context.Context, params []json.RawMessage) (any, error) {
	samples, err := r.samples.ReadAll(ctx)
	if err != nil {
		log.Printf("Error retrieving data: %v", err)
		return []store.Sample{}, nil
	}
	log.Printf("Retrieved %d entries", len(samples))
	return samples, nil
}

func (r *Remote) handleExportDatabase(ctx context.Context, params []json.RawMessage) (any, error) {
	path, err := bridge.StringParam(params, 0, config.DefaultDatabaseExport)
	if err != nil {
		return nil, err
	}
	if err := r.samples.Backup(ctx, path); err != nil {
		log.Printf("Export error: %v", err)
		return nil, nil
	}
	log.Printf("Database exported to: %s", path)
	return path, nil
}

func (r *Remote) handleExportCSV(ctx context.Context, params []json.RawMessage) (any, error) {
	path, err := bridge.StringParam(params, 0, config.DefaultCSVExport)
	if err != nil {
		return nil, err
	}
	result, err := r.exporter.ExportToFile(ctx, path)
	if err != nil {
		log.Printf("CSV export error: %v", err)
		return nil, nil
	}
	log.Printf("Data exported to CSV: %s (%d entries)", path, result.SamplesExported)
	return path, nil
}
