package loan

import (
	"testing"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStartDate = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestComputeAmortizationFrenchSchedule(t *testing.T) {
	payment, schedule, err := ComputeAmortization(12000, 24, 12, testStartDate)

	require.NoError(t, err)
	require.Len(t, schedule, 12)

	// payment = P * r * (1+r)^n / ((1+r)^n - 1) with r = 0.02
	assert.InDelta(t, 1134.72, payment, 0.01)

	first := schedule[0]
	assert.Equal(t, 1, first.PaymentNumber)
	assert.InDelta(t, 12000.0, first.BeginningBalance, 1e-9)
	assert.InDelta(t, 240.0, first.InterestPayment, 1e-9)
	assert.InDelta(t, payment-240.0, first.PrincipalPayment, 1e-9)
	assert.Equal(t, testStartDate.AddDate(0, 1, 0), first.DueDate)
	assert.Equal(t, EntryStatusPending, first.Status)

	// interest decreases and principal grows along the schedule
	for i := 1; i < len(schedule); i++ {
		assert.Less(t, schedule[i].InterestPayment, schedule[i-1].InterestPayment)
		assert.Greater(t, schedule[i].PrincipalPayment, schedule[i-1].PrincipalPayment)
		assert.InDelta(t, schedule[i-1].EndingBalance, schedule[i].BeginningBalance, 1e-9)
	}

	var totalPrincipal Money
	for _, entry := range schedule {
		assert.InDelta(t, payment, entry.MonthlyPayment, 1e-9)
		assert.InDelta(t, entry.MonthlyPayment, entry.PrincipalPayment+entry.InterestPayment, 1e-9)
		totalPrincipal += entry.PrincipalPayment
	}
	assert.InDelta(t, 12000.0, totalPrincipal, 0.01)

	assert.Equal(t, 0.0, schedule[11].EndingBalance)
}

func TestComputeAmortizationZeroRate(t *testing.T) {
	payment, schedule, err := ComputeAmortization(1200, 0, 12, testStartDate)

	require.NoError(t, err)
	assert.InDelta(t, 100.0, payment, 1e-9)
	for _, entry := range schedule {
		assert.InDelta(t, 0.0, entry.InterestPayment, 1e-9)
		assert.InDelta(t, 100.0, entry.PrincipalPayment, 1e-9)
	}
	assert.Equal(t, 0.0, schedule[11].EndingBalance)
}

func TestComputeAmortizationSingleMonth(t *testing.T) {
	payment, schedule, err := ComputeAmortization(500, 12, 1, testStartDate)

	require.NoError(t, err)
	require.Len(t, schedule, 1)
	// one installment repays everything plus one month of interest
	assert.InDelta(t, 505.0, payment, 1e-9)
	assert.Equal(t, 0.0, schedule[0].EndingBalance)
}

func TestComputeAmortizationLongTermCloses(t *testing.T) {
	_, schedule, err := ComputeAmortization(250000, 18.5, 360, testStartDate)

	require.NoError(t, err)
	require.Len(t, schedule, 360)
	assert.Equal(t, 0.0, schedule[359].EndingBalance)
}

func TestComputeAmortizationRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		principal Money
		rate      Money
		term      int
	}{
		{"zero principal", 0, 24, 12},
		{"negative principal", -100, 24, 12},
		{"negative rate", 1000, -1, 12},
		{"zero term", 1000, 24, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ComputeAmortization(tt.principal, tt.rate, tt.term, testStartDate)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestNewLoanDerivedFields(t *testing.T) {
	l, err := NewLoan(7, "LN-2026-000001", 12000, 24, 12, 10, testStartDate)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, l.Status)
	assert.InDelta(t, l.MonthlyPayment*12, l.TotalAmount, 1e-9)
	assert.InDelta(t, l.TotalAmount, l.RemainingBalance, 1e-9)
	assert.InDelta(t, l.MonthlyPayment*MinimumPaymentRate, l.MinimumPayment, 1e-9)
	assert.InDelta(t, 0.02, l.MonthlyInterestRate, 1e-12)
	assert.Equal(t, testStartDate.AddDate(0, 1, 0), l.NextPaymentDate)
	assert.Equal(t, testStartDate.AddDate(0, 12, 0), l.EndDate)
	assert.Equal(t, 0, l.DaysOverdue)
	assert.Equal(t, 0.0, l.LateFees)
}

func TestNewLoanRejectsNegativeLateFeeRate(t *testing.T) {
	_, err := NewLoan(7, "LN-2026-000001", 12000, 24, 12, -1, testStartDate)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
