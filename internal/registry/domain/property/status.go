package property

import (
	"fmt"
	"strings"
)

// Status describes the lifecycle of a property transfer.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusPendingNotary indicates the transfer awaits notary approval.
	StatusPendingNotary
	// StatusNotaryApproved indicates the notary approved the transfer.
	StatusNotaryApproved
	// StatusBuyerApproved indicates the buyer approved the transfer.
	StatusBuyerApproved
	// StatusGovernmentSealed indicates the government authority sealed the transfer.
	StatusGovernmentSealed
	// StatusCompleted indicates the transfer finished. Terminal.
	StatusCompleted
	// StatusCancelled indicates the seller cancelled the transfer before
	// notary approval. Terminal.
	StatusCancelled
)

// IsTerminal reports whether no further status transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// isStatusTransitionAllowed reports whether a status transition is permitted.
// Statuses only advance forward through the approval chain; the single side
// branch is cancellation out of the initial status.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusPendingNotary:
		return to == StatusNotaryApproved || to == StatusCancelled
	case StatusNotaryApproved:
		return to == StatusBuyerApproved
	case StatusBuyerApproved:
		return to == StatusGovernmentSealed
	case StatusGovernmentSealed:
		return to == StatusCompleted
	default:
		return false
	}
}

// StatusLabel returns a stable label for a property status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPendingNotary:
		return "PENDING_NOTARY"
	case StatusNotaryApproved:
		return "NOTARY_APPROVED"
	case StatusBuyerApproved:
		return "BUYER_APPROVED"
	case StatusGovernmentSealed:
		return "GOVERNMENT_SEALED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status.
// It trims whitespace and matches case-insensitively. Both short
// ("PENDING_NOTARY") and prefixed ("PROPERTY_STATUS_PENDING_NOTARY") forms
// are accepted.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, fmt.Errorf("property status is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "PENDING_NOTARY", "PROPERTY_STATUS_PENDING_NOTARY":
		return StatusPendingNotary, nil
	case "NOTARY_APPROVED", "PROPERTY_STATUS_NOTARY_APPROVED":
		return StatusNotaryApproved, nil
	case "BUYER_APPROVED", "PROPERTY_STATUS_BUYER_APPROVED":
		return StatusBuyerApproved, nil
	case "GOVERNMENT_SEALED", "PROPERTY_STATUS_GOVERNMENT_SEALED":
		return StatusGovernmentSealed, nil
	case "COMPLETED", "PROPERTY_STATUS_COMPLETED":
		return StatusCompleted, nil
	case "CANCELLED", "PROPERTY_STATUS_CANCELLED":
		return StatusCancelled, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown property status: %s", trimmed)
	}
}
