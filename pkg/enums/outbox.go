package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row describes.
type OutboxAggregateType string

const (
	AggregateRegionalBatch OutboxAggregateType = "regional_batch"
	AggregateOrder         OutboxAggregateType = "order"
	AggregateEscrowRecord  OutboxAggregateType = "escrow_record"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRegionalBatch,
	AggregateOrder,
	AggregateEscrowRecord,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the event stored in an outbox row.
type OutboxEventType string

const (
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventNotificationRequested,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// NotificationEvent is the user-facing event a notification request carries.
type NotificationEvent string

const (
	NotificationOrderPlaced        NotificationEvent = "order_placed"
	NotificationBatchSucceeded     NotificationEvent = "batch_succeeded"
	NotificationBatchFailed        NotificationEvent = "batch_failed"
	NotificationBatchCancelled     NotificationEvent = "batch_cancelled"
	NotificationBatchDelivered     NotificationEvent = "batch_delivered"
	NotificationEscrowManualReview NotificationEvent = "escrow_manual_review"
)

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
