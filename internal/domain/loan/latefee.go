package loan

import "math"

// ComputeLateFee accrues moratory fees in whole-month steps: a single day
// overdue already counts as a full month. The fee is not pro-rated daily.
func ComputeLateFee(monthlyPayment, lateFeeRatePercent Money, daysOverdue int) Money {
	if daysOverdue <= 0 {
		return 0
	}
	monthsOverdue := math.Ceil(float64(daysOverdue) / 30)
	return monthlyPayment * (lateFeeRatePercent / 100) * monthsOverdue
}
