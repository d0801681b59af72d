package monitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StorageMonitor reports the disk usage of the viewer's local state (the
// snapshot file and the export ledger), cached to avoid repeated walks.
type StorageMonitor struct {
	paths         []string
	cachedUsage   Usage
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// Usage is the disk usage per monitored path, in bytes.
type Usage struct {
	Paths     map[string]int64 `json:"paths"`
	UsedBytes int64            `json:"used_bytes"`
}

// NewStorageMonitor creates a monitor over paths, which may be files or
// directories.
func NewStorageMonitor(paths ...string) *StorageMonitor {
	return &StorageMonitor{
		paths:         paths,
		cacheDuration: 10 * time.Second,
	}
}

// GetUsage returns current usage (cached for 10 seconds). Paths that do not
// exist yet count as zero.
func (sm *StorageMonitor) GetUsage() (Usage, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage := Usage{Paths: make(map[string]int64, len(sm.paths))}
	for _, p := range sm.paths {
		size, err := calculateSize(p)
		if errors.Is(err, fs.ErrNotExist) {
			size, err = 0, nil
		}
		if err != nil {
			return Usage{}, err
		}
		usage.Paths[p] = size
		usage.UsedBytes += size
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// calculateSize returns the on-disk size of a file or, recursively, of a
// directory. Uses actual disk usage (not logical size) to handle sparse files.
func calculateSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			actualSize, err := getActualFileSize(filePath, info)
			if err != nil {
				size += info.Size()
			} else {
				size += actualSize
			}
		}
		return nil
	})
	return size, err
}

// getActualFileSize is implemented in platform-specific files:
// - filesize_unix.go (Linux/Mac): Uses syscall.Stat_t.Blocks
// - filesize_windows.go (Windows): Uses GetCompressedFileSizeW API
