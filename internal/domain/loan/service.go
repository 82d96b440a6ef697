package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

type LoanService interface {
	CreateLoan(ctx context.Context, customerID int64, principal Money, termMonths int, annualInterestRate Money, lateFeeRate Money, startDate time.Time) (*Loan, error)

	ApproveLoan(ctx context.Context, loanID int64, approvedBy string) (*Loan, error)

	RejectLoan(ctx context.Context, loanID int64) (*Loan, error)

	MarkLoanDefaulted(ctx context.Context, loanID int64) (*Loan, error)

	MakePayment(ctx context.Context, loanID int64, amount Money, method PaymentMethod, notes string, minimumPayment bool) (*LoanPayment, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetLoanSchedule(ctx context.Context, loanID int64) ([]AmortizationEntry, error)

	GetOutstanding(ctx context.Context, loanID int64) (Money, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	pub             event.EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewLoanService(r Repository, cs customer.CustomerService, pub event.EventPublisher, logger *slog.Logger) LoanService {
	return &loanServiceImpl{repo: r, customerService: cs, pub: pub, logger: logger, now: time.Now}
}

// NewLoanServiceWithClock allows tests to pin the service to a fixed clock.
func NewLoanServiceWithClock(r Repository, cs customer.CustomerService, pub event.EventPublisher, logger *slog.Logger, now func() time.Time) LoanService {
	return &loanServiceImpl{repo: r, customerService: cs, pub: pub, logger: logger, now: now}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, customerID int64, principal Money, termMonths int, annualInterestRate Money, lateFeeRate Money, startDate time.Time) (*Loan, error) {
	s.logger.Info("Creating new loan", "customerID", customerID, "principal", principal, "termMonths", termMonths)

	if startDate.IsZero() {
		startDate = s.now().Truncate(24 * time.Hour)
	}

	// Issuance is gated on the credit line: the principal must fit in the
	// customer's available margin before a schedule is even computed.
	if err := s.customerService.ReserveCredit(ctx, customerID, principal); err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Customer not found", slog.Any("error", err))
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrValidation, customerID)
		}
		s.logger.Warn("Credit reservation failed", slog.Any("error", err))
		return nil, err
	}

	year := startDate.Year()
	seq, err := s.repo.NextLoanSequence(ctx, year)
	if err != nil {
		s.logger.Error("Failed to allocate loan number", "error", err)
		return nil, fmt.Errorf("%w: failed to allocate loan number: %v", apperrors.ErrInternalServer, err)
	}
	loanNumber := fmt.Sprintf("LN-%d-%06d", year, seq)

	loan, err := NewLoan(customerID, loanNumber, principal, annualInterestRate, termMonths, lateFeeRate, startDate)
	if err != nil {
		s.logger.Error("Failed to create new loan object", "error", err)
		return nil, err
	}

	createdLoan, err := s.repo.CreateLoan(ctx, loan)
	if err != nil {
		s.logger.Error("Failed to save loan and schedule", "error", err)
		return nil, fmt.Errorf("%w: failed to save loan and schedule: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordLoanCreated()
	s.logger.Info("Loan created successfully", "loanID", createdLoan.ID, "loanNumber", createdLoan.LoanNumber, "customerID", customerID)
	return createdLoan, nil
}

func (s *loanServiceImpl) ApproveLoan(ctx context.Context, loanID int64, approvedBy string) (*Loan, error) {
	s.logger.Info("Approving loan", "loanID", loanID, "approvedBy", approvedBy)

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := Approve(loan, approvedBy, s.now()); err != nil {
		s.logger.Warn("Loan approval rejected", "loanID", loanID, "status", loan.Status, "error", err)
		return nil, err
	}

	if err := s.repo.UpdateLoanStatus(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan approval", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to persist loan approval: %v", apperrors.ErrInternalServer, err)
	}

	if s.pub != nil {
		evt := event.LoanApprovedEvent{
			Timestamp:  s.now(),
			ApprovedBy: approvedBy,
			Payload:    newLoanEventPayload(loan),
		}
		if pubErr := s.pub.PublishLoanApproved(ctx, evt); pubErr != nil {
			s.logger.Error("Loan approved, but FAILED to publish approval event", slog.Any("error", pubErr))
		}
	}

	s.logger.Info("Loan approved", "loanID", loanID)
	return loan, nil
}

func (s *loanServiceImpl) RejectLoan(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.Info("Rejecting loan", "loanID", loanID)

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := Reject(loan, s.now()); err != nil {
		s.logger.Warn("Loan rejection refused", "loanID", loanID, "status", loan.Status, "error", err)
		return nil, err
	}

	if err := s.repo.UpdateLoanStatus(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan rejection", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to persist loan rejection: %v", apperrors.ErrInternalServer, err)
	}

	s.logger.Info("Loan rejected", "loanID", loanID)
	return loan, nil
}

func (s *loanServiceImpl) MarkLoanDefaulted(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.Info("Marking loan as defaulted", "loanID", loanID)

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := MarkDefaulted(loan, s.now()); err != nil {
		s.logger.Warn("Default transition refused", "loanID", loanID, "status", loan.Status, "error", err)
		return nil, err
	}

	if err := s.repo.UpdateLoanStatus(ctx, loan); err != nil {
		s.logger.Error("Failed to persist loan default", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to persist loan default: %v", apperrors.ErrInternalServer, err)
	}

	return loan, nil
}

func (s *loanServiceImpl) MakePayment(ctx context.Context, loanID int64, amount Money, method PaymentMethod, notes string, minimumPayment bool) (payment *LoanPayment, err error) {
	s.logger.Info("Making payment", "loanID", loanID, "amount", amount, "method", method)
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		status := "success"
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrBelowMinimumPayment):
			status = "failure_amount"
		case errors.Is(err, apperrors.ErrPaymentExceedsBalance):
			status = "failure_exceeds_balance"
		case errors.Is(err, apperrors.ErrInvalidStateTransition):
			status = "failure_state"
		case err != nil:
			status = "failure_internal"
		}
		monitoring.RecordPayment(status)
		if p := recover(); p != nil {
			s.logger.Error("Panic occurred during payment processing", "loanID", loanID, "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			s.logger.Error("Rolling back transaction due to error", "error", err)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	loan, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: cannot make payment, loan ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to load loan for payment", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not load loan for payment: %v", apperrors.ErrInternalServer, err)
	}

	// The minimum-payment floor is a caller-side policy, enforced here at
	// the service boundary rather than inside the allocator.
	if minimumPayment && amount < loan.MinimumPayment {
		s.logger.Warn("Payment below minimum", "loanID", loanID, "amount", amount, "minimum", loan.MinimumPayment)
		return nil, fmt.Errorf("%w: %.2f is below the minimum payment %.2f",
			apperrors.ErrBelowMinimumPayment, amount, loan.MinimumPayment)
	}

	payment, delta, err := ApplyPayment(loan, amount, method, notes, s.now())
	if err != nil {
		return nil, err
	}

	if err = s.repo.UpdateScheduleInTx(ctx, tx, loan.ID, loan.Schedule); err != nil {
		s.logger.Error("Failed to update schedule", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not update schedule: %v", apperrors.ErrInternalServer, err)
	}
	if err = s.repo.InsertPaymentInTx(ctx, tx, payment); err != nil {
		s.logger.Error("Failed to insert payment record", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not insert payment record: %v", apperrors.ErrInternalServer, err)
	}
	if err = s.repo.UpdateLoanInTx(ctx, tx, loan); err != nil {
		s.logger.Error("Failed to update loan totals", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not update loan totals: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.Error("Failed to commit transaction", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	if delta != nil {
		monitoring.RecordLoanCompleted()
		s.logger.Info("Loan fully paid, releasing credit", "loanID", loanID, "principal", delta.ReleasedPrincipal)

		if _, creditErr := s.customerService.ApplyLoanCompletion(ctx, loan.CustomerID, delta.ReleasedPrincipal, delta.ScoreDelta); creditErr != nil {
			s.logger.Error("Loan completed, but FAILED to apply customer credit release", "customerID", loan.CustomerID, slog.Any("error", creditErr))
		}

		if s.pub != nil {
			evt := event.LoanCompletedEvent{Timestamp: s.now(), Payload: newLoanEventPayload(loan)}
			if pubErr := s.pub.PublishLoanCompleted(ctx, evt); pubErr != nil {
				s.logger.Error("Loan completed, but FAILED to publish completion event", slog.Any("error", pubErr))
			}
		}
	}

	s.logger.Info("Payment processed successfully", "loanID", loanID, "amount", amount, "paymentID", payment.ID)
	return payment, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.Info("Getting loan details", "loanID", loanID)
	loan, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	schedule, err := s.repo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		s.logger.Error("Failed to get loan schedule", "loanID", loanID, "error", err)
	} else {
		loan.Schedule = schedule
	}

	payments, err := s.repo.GetPaymentsByLoanID(ctx, loanID)
	if err != nil {
		s.logger.Error("Failed to get loan payments", "loanID", loanID, "error", err)
	} else {
		loan.Payments = payments
	}

	return loan, nil
}

func (s *loanServiceImpl) GetLoanSchedule(ctx context.Context, loanID int64) ([]AmortizationEntry, error) {
	s.logger.Info("Getting loan schedule", "loanID", loanID)
	schedule, err := s.repo.GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found when getting schedule", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("%w: failed to get schedule for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	if len(schedule) == 0 {
		if _, checkLoanErr := s.repo.GetLoanByID(ctx, loanID); errors.Is(checkLoanErr, pgx.ErrNoRows) || errors.Is(checkLoanErr, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found when getting schedule", apperrors.ErrNotFound, loanID)
		}
	}
	return schedule, nil
}

func (s *loanServiceImpl) GetOutstanding(ctx context.Context, loanID int64) (Money, error) {
	s.logger.Info("Getting outstanding balance for loan", "loanID", loanID)
	loan, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return 0, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Warn("Failed to get outstanding amount", "loanID", loanID, "error", err)
		return 0, fmt.Errorf("%w: failed to get outstanding amount for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	// Outstanding includes any accrued, unpaid moratory fees.
	return loan.RemainingBalance + loan.LateFees, nil
}

func newLoanEventPayload(l *Loan) event.LoanEventPayload {
	return event.LoanEventPayload{
		LoanID:           l.ID,
		LoanNumber:       l.LoanNumber,
		CustomerID:       l.CustomerID,
		Principal:        l.Principal,
		RemainingBalance: l.RemainingBalance,
		Status:           string(l.Status),
	}
}
