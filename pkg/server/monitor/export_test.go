package monitor

import (
	"errors"
	"testing"
)

func TestExportMonitor_RecordSuccess(t *testing.T) {
	em := &ExportMonitor{}
	em.RecordFailure(errors.New("no running container found"))
	em.RecordSuccess()

	status := em.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", status.ConsecutiveErrors)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
	if status.TotalExports != 2 || status.TotalFailures != 1 {
		t.Errorf("totals = %d/%d, want 2/1", status.TotalExports, status.TotalFailures)
	}
}

func TestExportMonitor_RecordFailure(t *testing.T) {
	em := &ExportMonitor{}
	em.RecordFailure(errors.New("docker: command not found"))

	status := em.Status()
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "docker: command not found" {
		t.Errorf("LastError = %q, want %q", status.LastError, "docker: command not found")
	}
	if status.LastSuccess != "" {
		t.Errorf("LastSuccess = %q, want empty", status.LastSuccess)
	}
}

func TestExportMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*ExportMonitor)
		expected bool
	}{
		{
			name:     "no exports yet",
			setup:    func(*ExportMonitor) {},
			expected: true,
		},
		{
			name: "recent success",
			setup: func(em *ExportMonitor) {
				em.RecordSuccess()
			},
			expected: true,
		},
		{
			name: "a few failures",
			setup: func(em *ExportMonitor) {
				em.RecordFailure(errors.New("error 1"))
				em.RecordFailure(errors.New("error 2"))
				em.RecordFailure(errors.New("error 3"))
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			setup: func(em *ExportMonitor) {
				em.RecordSuccess()
				em.RecordFailure(errors.New("error 1"))
				em.RecordFailure(errors.New("error 2"))
				em.RecordFailure(errors.New("error 3"))
				em.RecordFailure(errors.New("error 4"))
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			em := &ExportMonitor{}
			tt.setup(em)
			if got := em.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExportMonitor_Status(t *testing.T) {
	em := &ExportMonitor{}
	em.RecordSuccess()

	status := em.Status()
	if !status.Healthy {
		t.Error("Status should be healthy")
	}
	if status.LastSuccess == "" {
		t.Error("LastSuccess should be set")
	}
	if status.TimeSinceSuccess == "" {
		t.Error("TimeSinceSuccess should be set")
	}
	if status.LastAttempt == "" {
		t.Error("LastAttempt should be set")
	}
}
