package domain

import (
	"testing"
	"time"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status ExceptionStatus
		want   bool
	}{
		{StatusNew, false},
		{StatusAcknowledged, false},
		{StatusRetriedSuccess, false},
		{StatusRetriedFailed, false},
		{StatusEscalated, false},
		{StatusResolved, true},
		{StatusClosed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			exc := &InterfaceException{Status: tt.status}
			if got := exc.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryable  bool
		status     ExceptionStatus
		retryCount int
		maxRetries int
		want       bool
	}{
		{"retryable new", true, StatusNew, 0, 5, true},
		{"not retryable", false, StatusNew, 0, 5, false},
		{"resolved", true, StatusResolved, 0, 5, false},
		{"closed", true, StatusClosed, 0, 5, false},
		{"at retry limit", true, StatusNew, 5, 5, false},
		{"one below limit", true, StatusRetriedFailed, 4, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exc := &InterfaceException{
				Retryable:  tt.retryable,
				Status:     tt.status,
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := exc.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Isolation(t *testing.T) {
	ackAt := time.Now()
	exc := &InterfaceException{
		ID:             1,
		TransactionID:  "TXN-1",
		Status:         StatusAcknowledged,
		AcknowledgedBy: "ops",
		AcknowledgedAt: &ackAt,
		RetryCount:     2,
	}

	original := ackAt
	snap := exc.Snapshot()

	// Mutating the entity after the snapshot must not leak through
	exc.Status = StatusResolved
	exc.RetryCount = 3
	*exc.AcknowledgedAt = ackAt.Add(time.Hour)

	if snap.Status != StatusAcknowledged {
		t.Errorf("snapshot status changed, got %s", snap.Status)
	}
	if snap.RetryCount != 2 {
		t.Errorf("snapshot retry count changed, got %d", snap.RetryCount)
	}
	if !snap.AcknowledgedAt.Equal(original) {
		t.Errorf("snapshot acknowledged time changed, got %s", snap.AcknowledgedAt)
	}
}
