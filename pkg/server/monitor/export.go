package monitor

import (
	"sync"
	"time"
)

// unhealthyAfter is how many consecutive export failures mark the viewer
// degraded.
const unhealthyAfter = 3

// ExportMonitor tracks the outcome of snapshot exports.
type ExportMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	totalExports      int
	totalFailures     int
	lastError         string
}

// RecordSuccess records a successful export.
func (em *ExportMonitor) RecordSuccess() {
	em.mu.Lock()
	defer em.mu.Unlock()
	now := time.Now()
	em.lastSuccess = now
	em.lastAttempt = now
	em.consecutiveErrors = 0
	em.totalExports++
	em.lastError = ""
}

// RecordFailure records a failed export.
func (em *ExportMonitor) RecordFailure(err error) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.lastAttempt = time.Now()
	em.consecutiveErrors++
	em.totalExports++
	em.totalFailures++
	if err != nil {
		em.lastError = err.Error()
	}
}

// IsHealthy reports whether exports are working: unhealthy after more than
// 3 failed exports in a row. No attempts yet counts as healthy since exports
// only run on request.
func (em *ExportMonitor) IsHealthy() bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.isHealthy()
}

func (em *ExportMonitor) isHealthy() bool {
	return em.consecutiveErrors <= unhealthyAfter
}

// ExportStatus is the export section of the health response.
type ExportStatus struct {
	Healthy           bool   `json:"healthy"`
	TotalExports      int    `json:"total_exports"`
	TotalFailures     int    `json:"total_failures"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current export status for health checks.
func (em *ExportMonitor) Status() ExportStatus {
	em.mu.RLock()
	defer em.mu.RUnlock()

	status := ExportStatus{
		Healthy:       em.isHealthy(),
		TotalExports:  em.totalExports,
		TotalFailures: em.totalFailures,
	}

	if !em.lastSuccess.IsZero() {
		status.LastSuccess = em.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(em.lastSuccess).Round(time.Second).String()
	}

	if !em.lastAttempt.IsZero() {
		status.LastAttempt = em.lastAttempt.Format(time.RFC3339)
	}

	if em.consecutiveErrors > 0 {
		status.ConsecutiveErrors = em.consecutiveErrors
		status.LastError = em.lastError
	}

	return status
}
