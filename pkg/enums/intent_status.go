package enums

import "fmt"

// IntentStatus tracks the lifecycle of a payment intent.
type IntentStatus string

const (
	IntentStatusPending     IntentStatus = "pending"
	IntentStatusAuthorized  IntentStatus = "authorized"
	IntentStatusInProcess   IntentStatus = "in_process"
	IntentStatusInMediation IntentStatus = "in_mediation"
	IntentStatusApproved    IntentStatus = "approved"
	IntentStatusRejected    IntentStatus = "rejected"
	IntentStatusCancelled   IntentStatus = "cancelled"
	IntentStatusRefunded    IntentStatus = "refunded"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusPending,
	IntentStatusAuthorized,
	IntentStatusInProcess,
	IntentStatusInMediation,
	IntentStatusApproved,
	IntentStatusRejected,
	IntentStatusCancelled,
	IntentStatusRefunded,
}

// ActiveIntentStatuses are the statuses that count toward the one-active-intent
// rule per (user, category, period).
var ActiveIntentStatuses = []IntentStatus{
	IntentStatusPending,
	IntentStatusAuthorized,
	IntentStatusInProcess,
	IntentStatusApproved,
}

// String implements fmt.Stringer.
func (s IntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentStatus.
func (s IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
// Approved is not terminal: a refund may still land on it.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusRejected, IntentStatusCancelled, IntentStatusRefunded:
		return true
	}
	return false
}

// IsActive reports whether the status blocks creation of another intent for
// the same (user, category, period) tuple.
func (s IntentStatus) IsActive() bool {
	for _, candidate := range ActiveIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
