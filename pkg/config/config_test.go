package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBridge_Defaults(t *testing.T) {
	cfg, err := LoadBridge()
	require.NoError(t, err)

	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, ModeRemote, cfg.Mode)
	assert.Equal(t, DefaultTickInterval, cfg.TickInterval)
	assert.Equal(t, DefaultBridgeAddr, cfg.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadBridge_Env(t *testing.T) {
	t.Setenv("GPIOLOG_DB_PATH", "/home/arduino/app/database.db")
	t.Setenv("GPIOLOG_MODE", ModeTimer)
	t.Setenv("GPIOLOG_TICK_INTERVAL", "500ms")

	cfg, err := LoadBridge()
	require.NoError(t, err)

	assert.Equal(t, "/home/arduino/app/database.db", cfg.DBPath)
	assert.Equal(t, ModeTimer, cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
}

func TestLoadBridge_BadDuration(t *testing.T) {
	t.Setenv("GPIOLOG_TICK_INTERVAL", "soon")

	_, err := LoadBridge()
	assert.Error(t, err)
}

func TestBridge_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Bridge
		wantErr string
	}{
		{"remote", Bridge{Mode: ModeRemote}, ""},
		{"timer", Bridge{Mode: ModeTimer, TickInterval: time.Second}, ""},
		{"unknown mode", Bridge{Mode: "cron"}, "invalid mode"},
		{"zero interval", Bridge{Mode: ModeTimer}, "tick interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadViewer_HomeDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg, err := LoadViewer()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Desktop", DefaultSnapshotName), cfg.SnapshotPath)
	assert.Equal(t, filepath.Join(home, DefaultLedgerDir), cfg.LedgerDir)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultBridgeURL, cfg.BridgeURL)
	assert.Equal(t, DefaultLedgerRetention, cfg.LedgerRetention)
	assert.Equal(t, DefaultSearchRoot, cfg.SearchRoot)
	assert.Equal(t, DefaultDBName, cfg.DBName)
}

func TestLoadViewer_Env(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("GPIOLOG_SNAPSHOT_PATH", "/tmp/snap.db")
	t.Setenv("GPIOLOG_CONTAINER", "arduino")
	t.Setenv("GPIOLOG_LEDGER_RETENTION", "24h")

	cfg, err := LoadViewer()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "/tmp/snap.db", cfg.SnapshotPath)
	assert.Equal(t, "arduino", cfg.Container)
	assert.Equal(t, 24*time.Hour, cfg.LedgerRetention)
}

func TestLoadExporter(t *testing.T) {
	t.Setenv("GPIOLOG_SOURCE_PATH", "/var/lib/gpiolog/database.db")

	cfg, err := LoadExporter()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gpiolog/database.db", cfg.SourcePath)
	assert.True(t, strings.HasSuffix(cfg.SnapshotPath, DefaultSnapshotName))
	assert.Equal(t, DefaultDockerBin, cfg.DockerBin)
}
