package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

type AccountService interface {
	OpenAccount(ctx context.Context, customerID int64, amount Money) (*Account, error)

	RecordPayment(ctx context.Context, accountID int64, amount Money, method, notes string) (*Payment, error)

	GetAccount(ctx context.Context, accountID int64) (*Account, error)

	ListByCustomer(ctx context.Context, customerID int64) ([]*Account, error)
}

type accountServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	logger          *slog.Logger
	now             func() time.Time
}

func NewAccountService(r Repository, cs customer.CustomerService, logger *slog.Logger) AccountService {
	return &accountServiceImpl{repo: r, customerService: cs, logger: logger.With("component", "creditAccountService"), now: time.Now}
}

// OpenAccount issues store credit against the customer's line. Unlike loans,
// a fiado balance consumes the line immediately at issuance.
func (s *accountServiceImpl) OpenAccount(ctx context.Context, customerID int64, amount Money) (*Account, error) {
	s.logger.InfoContext(ctx, "Opening credit account", "customerID", customerID, "amount", amount)

	account, err := NewAccount(customerID, amount)
	if err != nil {
		return nil, err
	}

	if err := s.customerService.ConsumeCredit(ctx, customerID, amount); err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrValidation, customerID)
		}
		s.logger.WarnContext(ctx, "Credit consumption refused", slog.Any("error", err))
		return nil, err
	}

	if err := s.repo.Save(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save credit account, releasing consumed credit", slog.Any("error", err))
		if _, releaseErr := s.customerService.ReleaseCredit(ctx, customerID, amount); releaseErr != nil {
			s.logger.ErrorContext(ctx, "FAILED to release credit after save failure", slog.Any("error", releaseErr))
		}
		return nil, fmt.Errorf("%w: failed to save credit account: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordCreditAccountOpened()
	s.logger.InfoContext(ctx, "Credit account opened", "accountID", account.ID)
	return account, nil
}

func (s *accountServiceImpl) RecordPayment(ctx context.Context, accountID int64, amount Money, method, notes string) (*Payment, error) {
	s.logger.InfoContext(ctx, "Recording credit account payment", "accountID", accountID, "amount", amount)

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: credit account %d not found", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: failed to load credit account %d: %v", apperrors.ErrInternalServer, accountID, err)
	}

	payment, released, err := account.RecordPayment(amount, method, notes, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "Payment refused", slog.Any("error", err))
		return nil, err
	}

	if err := s.repo.Save(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save credit account after payment", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save credit account: %v", apperrors.ErrInternalServer, err)
	}
	if err := s.repo.InsertPayment(ctx, payment); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save payment record", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save payment record: %v", apperrors.ErrInternalServer, err)
	}

	if _, err := s.customerService.ReleaseCredit(ctx, account.CustomerID, released); err != nil {
		s.logger.ErrorContext(ctx, "Payment recorded, but FAILED to release customer credit", slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "Credit account payment recorded", "accountID", accountID, "paymentID", payment.ID, "status", account.Status)
	return payment, nil
}

func (s *accountServiceImpl) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Credit account not found", "accountID", accountID)
			return nil, fmt.Errorf("%w: credit account %d not found", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: failed to load credit account %d: %v", apperrors.ErrInternalServer, accountID, err)
	}
	return account, nil
}

func (s *accountServiceImpl) ListByCustomer(ctx context.Context, customerID int64) ([]*Account, error) {
	accounts, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list credit accounts", "customerID", customerID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list credit accounts for customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}
	return accounts, nil
}
