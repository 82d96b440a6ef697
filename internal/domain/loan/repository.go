package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (createdLoan *Loan, err error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// GetLoanForUpdate loads the loan row with a row lock so payment
	// application is serialized per loan.
	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	GetScheduleByLoanID(ctx context.Context, loanID int64) ([]AmortizationEntry, error)

	GetPaymentsByLoanID(ctx context.Context, loanID int64) ([]LoanPayment, error)

	GetAllActiveLoanIDs(ctx context.Context) ([]int64, error)

	NextLoanSequence(ctx context.Context, year int) (int64, error)

	UpdateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error

	UpdateScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64, schedule []AmortizationEntry) error

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *LoanPayment) error

	UpdateLoanStatus(ctx context.Context, loan *Loan) error

	UpdateOverdueState(ctx context.Context, loanID int64, daysOverdue int, lateFees Money) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
