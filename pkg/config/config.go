package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server defaults
const (
	DefaultPort       = "5000"
	DefaultBridgeAddr = ":8090"
	DefaultBridgeURL  = "http://localhost:8090"
	DefaultDBPath     = "database.db"
)

// Producer defaults
const (
	ModeRemote          = "remote"
	ModeTimer           = "timer"
	DefaultTickInterval = 2 * time.Second
)

// Snapshot defaults
const (
	DefaultSearchRoot   = "/home"
	DefaultDBName       = "database.db"
	DefaultDockerBin    = "docker"
	DefaultSnapshotName = "gpio_data.db"
	DefaultLedgerDir    = ".gpiolog/ledger"

	// Bridge-side export targets, reachable from the host through /tmp.
	DefaultDatabaseExport = "/tmp/database_export.db"
	DefaultCSVExport      = "/tmp/gpio_log.csv"
)

// Ledger retention and GC
const (
	DefaultLedgerRetention = 7 * 24 * time.Hour
	LedgerPruneInterval    = 1 * time.Hour
	LedgerGCInterval       = 10 * time.Minute
)

// Viewer limits
const (
	DefaultDataLimit    = 100
	DefaultExportsLimit = 50
	BroadcastInterval   = 5 * time.Second
)

// HTTP server timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ShutdownTimeout    = 30 * time.Second
	RPCClientTimeout   = 30 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 16
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Bridge configures the process that owns the live store.
type Bridge struct {
	DBPath       string        `env:"GPIOLOG_DB_PATH" envDefault:"database.db"`
	Mode         string        `env:"GPIOLOG_MODE" envDefault:"remote"`
	TickInterval time.Duration `env:"GPIOLOG_TICK_INTERVAL" envDefault:"2s"`
	Addr         string        `env:"GPIOLOG_BRIDGE_ADDR" envDefault:":8090"`
}

// Exporter configures where snapshots come from and where they land.
type Exporter struct {
	SnapshotPath string `env:"GPIOLOG_SNAPSHOT_PATH"`
	Container    string `env:"GPIOLOG_CONTAINER"`
	SearchRoot   string `env:"GPIOLOG_SEARCH_ROOT" envDefault:"/home"`
	DBName       string `env:"GPIOLOG_DB_NAME" envDefault:"database.db"`
	SourcePath   string `env:"GPIOLOG_SOURCE_PATH"`
	DockerBin    string `env:"GPIOLOG_DOCKER_BIN" envDefault:"docker"`
}

// Viewer configures the query/export web service.
type Viewer struct {
	Exporter
	Port            string        `env:"PORT" envDefault:"5000"`
	BridgeURL       string        `env:"GPIOLOG_BRIDGE_URL" envDefault:"http://localhost:8090"`
	LedgerDir       string        `env:"GPIOLOG_LEDGER_DIR"`
	LedgerRetention time.Duration `env:"GPIOLOG_LEDGER_RETENTION" envDefault:"168h"`
}

// LoadBridge parses bridge configuration from the environment.
func LoadBridge() (Bridge, error) {
	var cfg Bridge
	if err := env.Parse(&cfg); err != nil {
		return Bridge{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadExporter parses exporter configuration and fills home-relative defaults.
func LoadExporter() (Exporter, error) {
	var cfg Exporter
	if err := env.Parse(&cfg); err != nil {
		return Exporter{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = homePath(filepath.Join("Desktop", DefaultSnapshotName))
	}
	return cfg, nil
}

// LoadViewer parses viewer configuration and fills home-relative defaults.
func LoadViewer() (Viewer, error) {
	var cfg Viewer
	if err := env.Parse(&cfg); err != nil {
		return Viewer{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = homePath(filepath.Join("Desktop", DefaultSnapshotName))
	}
	if cfg.LedgerDir == "" {
		cfg.LedgerDir = homePath(DefaultLedgerDir)
	}
	return cfg, nil
}

// Validate checks the producer mode.
func (b Bridge) Validate() error {
	switch b.Mode {
	case ModeRemote, ModeTimer:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", b.Mode, ModeRemote, ModeTimer)
	}
	if b.Mode == ModeTimer && b.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", b.TickInterval)
	}
	return nil
}

// homePath resolves rel against the user's home directory, falling back to
// the working directory when no home is set.
func homePath(rel string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return rel
	}
	return filepath.Join(home, rel)
}
