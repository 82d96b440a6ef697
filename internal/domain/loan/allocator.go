package loan

import (
	"fmt"
	"math"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/google/uuid"
)

// fullEntryTolerance distinguishes genuine partial payments from float noise
// when comparing the remaining budget against a full installment.
const fullEntryTolerance = 1e-9

// CreditDelta describes the adjustment the owning customer's credit line
// earns when a loan completes: only the principal is released back to the
// line, and the credit score improves by a fixed step.
type CreditDelta struct {
	ReleasedPrincipal Money
	ScoreDelta        int
}

// ScoreRewardOnCompletion is added to the customer's credit score when a
// loan is paid off, capped at the score ceiling by the customer ledger.
const ScoreRewardOnCompletion = 10

// ApplyPayment allocates a payment against an active loan using a strict
// waterfall: accrued late fees first, then schedule entries in due order,
// oldest first. Entries are settled whole when the budget covers them and
// proportionally otherwise. The schedule is rebuilt by folding over the
// current entries rather than mutating them in place.
//
// A successful payment of any size clears the loan's overdue state. When the
// remaining balance reaches zero the loan transitions to completed and the
// returned CreditDelta carries the principal to release on the customer.
func ApplyPayment(l *Loan, amount Money, method PaymentMethod, notes string, now time.Time) (*LoanPayment, *CreditDelta, error) {
	if l.Status != StatusActive {
		return nil, nil, fmt.Errorf("%w: payments are only accepted on active loans, loan is %s", apperrors.ErrInvalidStateTransition, l.Status)
	}
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: payment amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	if amount > l.RemainingBalance+balanceEpsilon {
		return nil, nil, fmt.Errorf("%w: payment %.2f exceeds remaining balance %.2f", apperrors.ErrPaymentExceedsBalance, amount, l.RemainingBalance)
	}

	lateFeePortion := math.Min(amount, l.LateFees)
	budget := amount - lateFeePortion

	var principalPaid, interestPaid Money
	newSchedule := make([]AmortizationEntry, len(l.Schedule))
	for i, entry := range l.Schedule {
		if entry.Status == EntryStatusPaid || budget <= 0 {
			newSchedule[i] = entry
			continue
		}

		if budget+fullEntryTolerance >= entry.MonthlyPayment {
			paidAt := now
			entry.Status = EntryStatusPaid
			entry.PaidAmount = entry.MonthlyPayment
			entry.PaidDate = &paidAt
			entry.UpdatedAt = now
			principalPaid += entry.PrincipalPayment
			interestPaid += entry.InterestPayment
			budget -= entry.MonthlyPayment
		} else {
			proportion := budget / entry.MonthlyPayment
			paidAt := now
			entry.Status = EntryStatusPartial
			entry.PaidAmount = budget
			entry.PaidDate = &paidAt
			entry.UpdatedAt = now
			principalPaid += entry.PrincipalPayment * proportion
			interestPaid += entry.InterestPayment * proportion
			budget = 0
		}
		newSchedule[i] = entry
	}
	l.Schedule = newSchedule

	remainingAfter := math.Max(0, l.RemainingBalance-amount)

	payment := &LoanPayment{
		ID:                    uuid.NewString(),
		LoanID:                l.ID,
		PaymentNumber:         len(l.Payments) + 1,
		Amount:                amount,
		Principal:             principalPaid,
		Interest:              interestPaid,
		LateFee:               lateFeePortion,
		Date:                  now,
		Method:                method,
		Notes:                 notes,
		RemainingBalanceAfter: remainingAfter,
	}

	l.RemainingBalance = remainingAfter
	l.PaidAmount += amount
	// any successful payment clears overdue standing, regardless of size
	l.DaysOverdue = 0
	l.LateFees = 0
	if next := l.firstUnpaidEntry(); next != nil {
		l.NextPaymentDate = next.DueDate
	} else {
		l.NextPaymentDate = l.EndDate
	}
	l.Payments = append(l.Payments, *payment)
	l.UpdatedAt = now

	var delta *CreditDelta
	if l.RemainingBalance <= balanceEpsilon {
		l.RemainingBalance = 0
		if err := complete(l, now); err != nil {
			return nil, nil, err
		}
		delta = &CreditDelta{
			ReleasedPrincipal: l.Principal,
			ScoreDelta:        ScoreRewardOnCompletion,
		}
	}

	return payment, delta, nil
}
