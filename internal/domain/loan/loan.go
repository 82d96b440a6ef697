package loan

import (
	"fmt"
	"time"

	"credit-engine/internal/pkg/apperrors"
)

type Money = float64

// MinimumPaymentRate is the fixed share of the monthly installment accepted
// as a minimum payment.
const MinimumPaymentRate = 0.30

type LoanStatus string

const (
	StatusPending   LoanStatus = "PENDING"
	StatusActive    LoanStatus = "ACTIVE"
	StatusCompleted LoanStatus = "COMPLETED"
	StatusDefaulted LoanStatus = "DEFAULTED"
	StatusCancelled LoanStatus = "CANCELLED"
)

type EntryStatus string

const (
	EntryStatusPending EntryStatus = "PENDING"
	EntryStatusPartial EntryStatus = "PARTIAL"
	EntryStatusPaid    EntryStatus = "PAID"
	EntryStatusOverdue EntryStatus = "OVERDUE"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodCard     PaymentMethod = "CARD"
	MethodTransfer PaymentMethod = "TRANSFER"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCash, MethodCard, MethodTransfer:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, s)
}

type Loan struct {
	ID                  int64
	LoanNumber          string
	CustomerID          int64
	Principal           Money
	InterestRate        Money
	MonthlyInterestRate Money
	TermMonths          int
	MonthlyPayment      Money
	MinimumPayment      Money
	TotalAmount         Money
	RemainingBalance    Money
	PaidAmount          Money
	LateFeeRate         Money
	DaysOverdue         int
	LateFees            Money
	Status              LoanStatus
	Schedule            []AmortizationEntry
	Payments            []LoanPayment
	StartDate           time.Time
	EndDate             time.Time
	NextPaymentDate     time.Time
	ApprovedBy          string
	ApprovedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type AmortizationEntry struct {
	ID               int64
	LoanID           int64
	PaymentNumber    int
	DueDate          time.Time
	BeginningBalance Money
	MonthlyPayment   Money
	PrincipalPayment Money
	InterestPayment  Money
	EndingBalance    Money
	Status           EntryStatus
	PaidAmount       Money
	PaidDate         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LoanPayment is an append-only record of where a payment went. It is never
// mutated after creation.
type LoanPayment struct {
	ID                    string
	LoanID                int64
	PaymentNumber         int
	Amount                Money
	Principal             Money
	Interest              Money
	LateFee               Money
	Date                  time.Time
	Method                PaymentMethod
	Notes                 string
	RemainingBalanceAfter Money
}

// NewLoan builds a loan in PENDING status with its full amortization schedule.
func NewLoan(customerID int64, loanNumber string, principal, annualRatePercent Money, termMonths int, lateFeeRate Money, startDate time.Time) (*Loan, error) {
	monthlyPayment, schedule, err := ComputeAmortization(principal, annualRatePercent, termMonths, startDate)
	if err != nil {
		return nil, err
	}
	if lateFeeRate < 0 {
		return nil, fmt.Errorf("%w: late fee rate cannot be negative", apperrors.ErrInvalidInput)
	}

	// Amounts stay unrounded in the domain; formatting to cents happens at
	// the edges. Keeping the raw floats lets the payment waterfall walk the
	// schedule without accumulating rounding drift.
	totalAmount := monthlyPayment * float64(termMonths)

	l := &Loan{
		LoanNumber:          loanNumber,
		CustomerID:          customerID,
		Principal:           principal,
		InterestRate:        annualRatePercent,
		MonthlyInterestRate: annualRatePercent / 100 / 12,
		TermMonths:          termMonths,
		MonthlyPayment:      monthlyPayment,
		MinimumPayment:      monthlyPayment * MinimumPaymentRate,
		TotalAmount:         totalAmount,
		RemainingBalance:    totalAmount,
		LateFeeRate:         lateFeeRate,
		Status:              StatusPending,
		Schedule:            schedule,
		StartDate:           startDate,
		EndDate:             schedule[len(schedule)-1].DueDate,
		NextPaymentDate:     schedule[0].DueDate,
	}
	return l, nil
}

// Outstanding entries in due order. Paid entries are settled and skipped.
func (l *Loan) firstUnpaidEntry() *AmortizationEntry {
	for i := range l.Schedule {
		if l.Schedule[i].Status != EntryStatusPaid {
			return &l.Schedule[i]
		}
	}
	return nil
}
