package loan

import (
	"fmt"
	"math"
	"time"

	"credit-engine/internal/pkg/apperrors"
)

// balanceEpsilon absorbs float residue on the final schedule entry and on
// payoff detection.
const balanceEpsilon = 0.01

// ComputeAmortization produces the fixed monthly installment and the full
// constant-payment (French) amortization schedule for a loan. A zero rate
// degrades to straight-line division of the principal.
func ComputeAmortization(principal, annualRatePercent Money, termMonths int, startDate time.Time) (Money, []AmortizationEntry, error) {
	if principal <= 0 {
		return 0, nil, fmt.Errorf("%w: principal must be greater than zero", apperrors.ErrInvalidInput)
	}
	if annualRatePercent < 0 {
		return 0, nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidInput)
	}
	if termMonths < 1 {
		return 0, nil, fmt.Errorf("%w: term must be at least one month", apperrors.ErrInvalidInput)
	}

	monthlyRate := annualRatePercent / 100 / 12

	var monthlyPayment Money
	if monthlyRate == 0 {
		monthlyPayment = principal / float64(termMonths)
	} else {
		factor := math.Pow(1+monthlyRate, float64(termMonths))
		monthlyPayment = principal * monthlyRate * factor / (factor - 1)
	}

	schedule := make([]AmortizationEntry, 0, termMonths)
	balance := principal
	for i := 1; i <= termMonths; i++ {
		interest := balance * monthlyRate
		principalPortion := monthlyPayment - interest
		// clamp so float residue never leaves a negative balance
		ending := math.Max(0, balance-principalPortion)

		schedule = append(schedule, AmortizationEntry{
			PaymentNumber:    i,
			DueDate:          startDate.AddDate(0, i, 0),
			BeginningBalance: balance,
			MonthlyPayment:   monthlyPayment,
			PrincipalPayment: principalPortion,
			InterestPayment:  interest,
			EndingBalance:    ending,
			Status:           EntryStatusPending,
		})
		balance = ending
	}

	if final := schedule[termMonths-1].EndingBalance; final > balanceEpsilon {
		return 0, nil, fmt.Errorf("%w: schedule failed to close, residual balance %.2f", apperrors.ErrInternalServer, final)
	}
	schedule[termMonths-1].EndingBalance = 0

	return monthlyPayment, schedule, nil
}
