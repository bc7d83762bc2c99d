package errors

import "fmt"

// InvalidBatchState reports a rejected lifecycle transition, naming both states.
func InvalidBatchState(current, attempted string) *Error {
	return New(CodeInvalidBatchState, fmt.Sprintf("cannot move batch from %s to %s", current, attempted)).
		WithDetails(map[string]any{"current": current, "attempted": attempted})
}

// BatchNotJoinable reports that a batch stopped accepting orders.
func BatchNotJoinable(status, reason string) *Error {
	return New(CodeBatchNotJoinable, "this offer is no longer accepting orders").
		WithDetails(map[string]any{"status": status, "reason": reason})
}

func PaymentHoldFailed(err error) *Error {
	return Wrap(CodePaymentHoldFailed, err, "payment could not be authorized")
}

func EscrowReleaseFailed(recordID string, err error) *Error {
	return Wrap(CodeEscrowReleaseFailed, err, fmt.Sprintf("capture failed for escrow %s", recordID))
}

func EscrowRefundFailed(recordID string, err error) *Error {
	return Wrap(CodeEscrowRefundFailed, err, fmt.Sprintf("void failed for escrow %s", recordID))
}

func ConcurrencyTimeout(resource string, err error) *Error {
	return Wrap(CodeConcurrencyTimeout, err, fmt.Sprintf("timed out waiting for %s", resource))
}
