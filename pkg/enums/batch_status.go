package enums

import "fmt"

// BatchStatus tracks the lifecycle of a regional batch.
type BatchStatus string

const (
	BatchStatusDraft      BatchStatus = "draft"
	BatchStatusActive     BatchStatus = "active"
	BatchStatusSuccessful BatchStatus = "successful"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
	BatchStatusDelivered  BatchStatus = "delivered"
)

var validBatchStatuses = []BatchStatus{
	BatchStatusDraft,
	BatchStatusActive,
	BatchStatusSuccessful,
	BatchStatusFailed,
	BatchStatusCancelled,
	BatchStatusDelivered,
}

// String implements fmt.Stringer.
func (s BatchStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BatchStatus.
func (s BatchStatus) IsValid() bool {
	for _, candidate := range validBatchStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsResolved reports whether the batch reached one of the three outcomes
// a batch can only reach once.
func (s BatchStatus) IsResolved() bool {
	switch s {
	case BatchStatusSuccessful, BatchStatusFailed, BatchStatusCancelled, BatchStatusDelivered:
		return true
	}
	return false
}

// RefundsEscrow reports whether held funds for the batch must be voided.
func (s BatchStatus) RefundsEscrow() bool {
	return s == BatchStatusFailed || s == BatchStatusCancelled
}

// CapturesEscrow reports whether held funds for the batch must be captured.
func (s BatchStatus) CapturesEscrow() bool {
	return s == BatchStatusSuccessful || s == BatchStatusDelivered
}

// ParseBatchStatus converts raw input into a BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, error) {
	for _, candidate := range validBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid batch status %q", value)
}
