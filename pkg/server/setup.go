package server

import (
	"fmt"
	"log"

	"github.com/nicktill/gpiolog/pkg/bridge"
	"github.com/nicktill/gpiolog/pkg/config"
	"github.com/nicktill/gpiolog/pkg/producer"
	"github.com/nicktill/gpiolog/pkg/server/monitor"
	"github.com/nicktill/gpiolog/pkg/snapshot"
	"github.com/nicktill/gpiolog/pkg/store"
	"github.com/nicktill/gpiolog/pkg/viewer"
)

// Viewer bundles the viewer's components.
type Viewer struct {
	Service        *viewer.Service
	Handler        *viewer.Handler
	Hub            *viewer.Hub
	Ledger         *snapshot.Ledger
	ExportMonitor  *monitor.ExportMonitor
	StorageMonitor *monitor.StorageMonitor
}

// Close releases the ledger.
func (v *Viewer) Close() error {
	if v.Ledger == nil {
		return nil
	}
	return v.Ledger.Close()
}

// InitializeLedger opens the export ledger under cfg.LedgerDir.
func InitializeLedger(cfg config.Viewer) (*snapshot.Ledger, error) {
	log.Printf("Opening export ledger at %s...", cfg.LedgerDir)
	ledger, err := snapshot.OpenLedger(snapshot.LedgerConfig{Path: cfg.LedgerDir})
	if err != nil {
		return nil, fmt.Errorf("open export ledger: %w", err)
	}
	log.Println("Export ledger ready")
	return ledger, nil
}

// InitializeViewer wires the snapshot exporter, the bridge client and the
// monitors into a viewer. ledger may be nil.
func InitializeViewer(cfg config.Viewer, ledger *snapshot.Ledger, runner snapshot.Runner) *Viewer {
	v := &Viewer{
		Ledger:        ledger,
		ExportMonitor: &monitor.ExportMonitor{},
	}

	var exportOpts []snapshot.Option
	serviceOpts := []viewer.Option{
		viewer.WithRemote(bridge.NewClient(cfg.BridgeURL, config.RPCClientTimeout)),
		viewer.WithObserver(v.ExportMonitor),
	}
	storagePaths := []string{cfg.SnapshotPath}
	if ledger != nil {
		exportOpts = append(exportOpts, snapshot.WithLedger(ledger))
		serviceOpts = append(serviceOpts, viewer.WithHistory(ledger))
		storagePaths = append(storagePaths, cfg.LedgerDir)
	}

	locator := snapshot.NewLocator(cfg.Exporter, runner)
	if cfg.SourcePath != "" {
		log.Printf("Snapshots copied from host file %s", cfg.SourcePath)
	} else {
		log.Printf("Snapshots copied from container (find %s -name %s)", cfg.SearchRoot, cfg.DBName)
	}

	exporter := snapshot.New(locator, exportOpts...)
	v.Service = viewer.NewService(exporter, cfg.SnapshotPath, serviceOpts...)
	v.Hub = viewer.NewHub()
	v.Handler = viewer.NewHandler(v.Service, v.Hub)
	v.StorageMonitor = monitor.NewStorageMonitor(storagePaths...)
	log.Printf("Viewer service created (snapshot: %s, bridge: %s)", cfg.SnapshotPath, cfg.BridgeURL)

	return v
}

// Bridge bundles the bridge's components.
type Bridge struct {
	Store  *store.Store
	RPC    *bridge.Bridge
	Remote *producer.Remote
	Ticker *producer.Ticker
}

// Close closes the live store.
func (b *Bridge) Close() error {
	return b.Store.Close()
}

// InitializeBridge opens the live store and registers the bridge
// operations. In timer mode it also creates the ticker, and log_data is not
// provided.
func InitializeBridge(cfg config.Bridge) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Opening sample store at %s...", cfg.DBPath)
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized")

	b := &Bridge{
		Store:  s,
		RPC:    bridge.New(),
		Remote: producer.NewRemote(s),
	}
	if err := b.Remote.Register(b.RPC, cfg.Mode == config.ModeRemote); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.Mode == config.ModeTimer {
		b.Ticker = producer.NewTicker(s, cfg.TickInterval)
		log.Printf("Timer mode: logging every %v", cfg.TickInterval)
	} else {
		log.Println("Remote mode: waiting for log_data calls")
	}
	log.Printf("Bridge operations: %v", b.RPC.Methods())

	return b, nil
}
