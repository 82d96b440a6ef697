package loan

import (
	"testing"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newActiveLoan(t *testing.T) *Loan {
	t.Helper()
	l := newPendingLoan(t)
	require.NoError(t, Approve(l, "manager", paymentTime.AddDate(0, -1, 0)))
	l.ID = 1
	return l
}

func TestApplyPaymentFullInstallment(t *testing.T) {
	l := newActiveLoan(t)
	balanceBefore := l.RemainingBalance

	payment, delta, err := ApplyPayment(l, l.MonthlyPayment, MethodCash, "", paymentTime)

	require.NoError(t, err)
	assert.Nil(t, delta)

	entry := l.Schedule[0]
	assert.Equal(t, EntryStatusPaid, entry.Status)
	assert.InDelta(t, entry.MonthlyPayment, entry.PaidAmount, 1e-9)
	require.NotNil(t, entry.PaidDate)
	assert.Equal(t, paymentTime, *entry.PaidDate)

	assert.Equal(t, EntryStatusPending, l.Schedule[1].Status)
	assert.InDelta(t, entry.PrincipalPayment, payment.Principal, 1e-9)
	assert.InDelta(t, entry.InterestPayment, payment.Interest, 1e-9)
	assert.InDelta(t, balanceBefore-l.MonthlyPayment, l.RemainingBalance, 1e-9)
	assert.Equal(t, l.Schedule[1].DueDate, l.NextPaymentDate)
	require.Len(t, l.Payments, 1)
	assert.Equal(t, 1, payment.PaymentNumber)
}

func TestApplyPaymentPartialIsProportional(t *testing.T) {
	l := newActiveLoan(t)
	half := l.MonthlyPayment / 2

	payment, delta, err := ApplyPayment(l, half, MethodCard, "half installment", paymentTime)

	require.NoError(t, err)
	assert.Nil(t, delta)

	entry := l.Schedule[0]
	assert.Equal(t, EntryStatusPartial, entry.Status)
	assert.InDelta(t, half, entry.PaidAmount, 1e-9)
	assert.InDelta(t, entry.PrincipalPayment/2, payment.Principal, 1e-9)
	assert.InDelta(t, entry.InterestPayment/2, payment.Interest, 1e-9)

	// a partial entry is still the next one due
	assert.Equal(t, entry.DueDate, l.NextPaymentDate)
}

func TestApplyPaymentSpansMultipleEntries(t *testing.T) {
	l := newActiveLoan(t)
	amount := l.MonthlyPayment * 2.5

	_, delta, err := ApplyPayment(l, amount, MethodTransfer, "", paymentTime)

	require.NoError(t, err)
	assert.Nil(t, delta)
	assert.Equal(t, EntryStatusPaid, l.Schedule[0].Status)
	assert.Equal(t, EntryStatusPaid, l.Schedule[1].Status)
	assert.Equal(t, EntryStatusPartial, l.Schedule[2].Status)
	assert.InDelta(t, l.MonthlyPayment/2, l.Schedule[2].PaidAmount, 1e-9)
	assert.Equal(t, EntryStatusPending, l.Schedule[3].Status)
}

func TestApplyPaymentLateFeesComeFirst(t *testing.T) {
	l := newActiveLoan(t)
	l.DaysOverdue = 35
	l.LateFees = 200

	payment, _, err := ApplyPayment(l, 200+l.MonthlyPayment, MethodCash, "", paymentTime)

	require.NoError(t, err)
	assert.InDelta(t, 200.0, payment.LateFee, 1e-9)
	assert.Equal(t, EntryStatusPaid, l.Schedule[0].Status)

	// any payment resets overdue standing
	assert.Equal(t, 0, l.DaysOverdue)
	assert.Equal(t, 0.0, l.LateFees)
}

func TestApplyPaymentSmallAmountStillClearsOverdue(t *testing.T) {
	l := newActiveLoan(t)
	l.DaysOverdue = 10
	l.LateFees = 100

	payment, _, err := ApplyPayment(l, 50, MethodCash, "", paymentTime)

	require.NoError(t, err)
	assert.InDelta(t, 50.0, payment.LateFee, 1e-9)
	assert.Equal(t, EntryStatusPending, l.Schedule[0].Status)
	assert.Equal(t, 0, l.DaysOverdue)
	assert.Equal(t, 0.0, l.LateFees)
}

func TestApplyPaymentSkipsSettledEntries(t *testing.T) {
	l := newActiveLoan(t)
	_, _, err := ApplyPayment(l, l.MonthlyPayment, MethodCash, "", paymentTime)
	require.NoError(t, err)

	_, _, err = ApplyPayment(l, l.MonthlyPayment, MethodCash, "", paymentTime.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, EntryStatusPaid, l.Schedule[0].Status)
	assert.Equal(t, EntryStatusPaid, l.Schedule[1].Status)
	assert.Equal(t, EntryStatusPending, l.Schedule[2].Status)
}

func TestApplyPaymentPayoffCompletesLoan(t *testing.T) {
	l := newActiveLoan(t)

	payment, delta, err := ApplyPayment(l, l.RemainingBalance, MethodTransfer, "payoff", paymentTime)

	require.NoError(t, err)
	require.NotNil(t, delta)
	assert.Equal(t, StatusCompleted, l.Status)
	assert.Equal(t, 0.0, l.RemainingBalance)
	assert.Equal(t, 0.0, payment.RemainingBalanceAfter)

	// only the principal is released back to the credit line, not the
	// interest-bearing total
	assert.InDelta(t, l.Principal, delta.ReleasedPrincipal, 1e-9)
	assert.Equal(t, ScoreRewardOnCompletion, delta.ScoreDelta)

	for _, entry := range l.Schedule {
		assert.Equal(t, EntryStatusPaid, entry.Status)
	}
}

func TestApplyPaymentValidation(t *testing.T) {
	t.Run("inactive loan", func(t *testing.T) {
		l := newPendingLoan(t)
		_, _, err := ApplyPayment(l, 100, MethodCash, "", paymentTime)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)
	})

	t.Run("zero amount", func(t *testing.T) {
		l := newActiveLoan(t)
		_, _, err := ApplyPayment(l, 0, MethodCash, "", paymentTime)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("negative amount", func(t *testing.T) {
		l := newActiveLoan(t)
		_, _, err := ApplyPayment(l, -50, MethodCash, "", paymentTime)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("amount exceeds balance", func(t *testing.T) {
		l := newActiveLoan(t)
		_, _, err := ApplyPayment(l, l.RemainingBalance+1, MethodCash, "", paymentTime)
		assert.ErrorIs(t, err, apperrors.ErrPaymentExceedsBalance)
	})
}

func TestApplyPaymentRebuildsScheduleSlice(t *testing.T) {
	l := newActiveLoan(t)
	original := l.Schedule

	_, _, err := ApplyPayment(l, l.MonthlyPayment, MethodCash, "", paymentTime)

	require.NoError(t, err)
	// the fold produces a fresh slice, the pre-payment view stays intact
	assert.Equal(t, EntryStatusPending, original[0].Status)
	assert.Equal(t, EntryStatusPaid, l.Schedule[0].Status)
}

func TestParsePaymentMethod(t *testing.T) {
	for _, valid := range []string{"CASH", "CARD", "TRANSFER"} {
		m, err := ParsePaymentMethod(valid)
		require.NoError(t, err)
		assert.Equal(t, PaymentMethod(valid), m)
	}

	_, err := ParsePaymentMethod("CHECK")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
