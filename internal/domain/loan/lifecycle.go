package loan

import (
	"fmt"
	"time"

	"credit-engine/internal/pkg/apperrors"
)

// Approve moves a pending loan into active status, opening it for payments.
func Approve(l *Loan, approvedBy string, now time.Time) error {
	if l.Status != StatusPending {
		return transitionError(l.Status, StatusActive)
	}
	l.Status = StatusActive
	l.ApprovedBy = approvedBy
	at := now
	l.ApprovedAt = &at
	l.UpdatedAt = now
	return nil
}

// Reject cancels a pending loan. Cancelled is terminal; rejecting a loan
// twice fails the second time.
func Reject(l *Loan, now time.Time) error {
	if l.Status != StatusPending {
		return transitionError(l.Status, StatusCancelled)
	}
	l.Status = StatusCancelled
	l.UpdatedAt = now
	return nil
}

// MarkDefaulted flags an active loan as defaulted. The determination itself
// is external policy; this only guards the transition.
func MarkDefaulted(l *Loan, now time.Time) error {
	if l.Status != StatusActive {
		return transitionError(l.Status, StatusDefaulted)
	}
	l.Status = StatusDefaulted
	l.UpdatedAt = now
	return nil
}

// complete is the only automatic transition, triggered by ApplyPayment when
// the balance reaches zero.
func complete(l *Loan, now time.Time) error {
	if l.Status != StatusActive {
		return transitionError(l.Status, StatusCompleted)
	}
	l.Status = StatusCompleted
	l.UpdatedAt = now
	return nil
}

func transitionError(from, to LoanStatus) error {
	return fmt.Errorf("%w: cannot move loan from %s to %s", apperrors.ErrInvalidStateTransition, from, to)
}
