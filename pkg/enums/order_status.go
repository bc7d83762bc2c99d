package enums

import "fmt"

// GroupStatus mirrors the outcome of the batch an order belongs to.
type GroupStatus string

const (
	GroupStatusOpen      GroupStatus = "open"
	GroupStatusSucceeded GroupStatus = "succeeded"
	GroupStatusFailed    GroupStatus = "failed"
)

var validGroupStatuses = []GroupStatus{
	GroupStatusOpen,
	GroupStatusSucceeded,
	GroupStatusFailed,
}

// String implements fmt.Stringer.
func (g GroupStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupStatus.
func (g GroupStatus) IsValid() bool {
	for _, candidate := range validGroupStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// FulfillmentStatus tracks physical delivery or the refund path of an order.
type FulfillmentStatus string

const (
	FulfillmentStatusPending       FulfillmentStatus = "pending"
	FulfillmentStatusShipped       FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered     FulfillmentStatus = "delivered"
	FulfillmentStatusRefundPending FulfillmentStatus = "refund_pending"
	FulfillmentStatusRefunded      FulfillmentStatus = "refunded"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusPending,
	FulfillmentStatusShipped,
	FulfillmentStatusDelivered,
	FulfillmentStatusRefundPending,
	FulfillmentStatusRefunded,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
