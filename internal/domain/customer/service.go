package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"credit-engine/internal/event"
	"credit-engine/internal/pkg/apperrors"
)

const customerNotFound = "Customer not found by repository"

type CustomerService interface {
	CreateNewCustomer(ctx context.Context, name string, creditLimit Money, creditScore int) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	ListActiveCustomers(ctx context.Context) ([]*Customer, error)
	UpdateCreditLimit(ctx context.Context, customerID int64, newLimit Money) error
	AvailableCredit(ctx context.Context, customerID int64) (Money, error)
	ReserveCredit(ctx context.Context, customerID int64, amount Money) error
	ConsumeCredit(ctx context.Context, customerID int64, amount Money) error
	ReleaseCredit(ctx context.Context, customerID int64, amount Money) (*Customer, error)
	ApplyLoanCompletion(ctx context.Context, customerID int64, principal Money, scoreDelta int) (*Customer, error)
	DeactivateCustomer(ctx context.Context, customerID int64) error
	ReactivateCustomer(ctx context.Context, customerID int64) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) publishCreditChanged(ctx context.Context, cust *Customer) {
	if s.pub == nil || cust == nil {
		return
	}
	evt := event.CustomerCreditChangedEvent{
		Timestamp: time.Now(),
		Payload: event.CustomerCreditPayload{
			CustomerID:    cust.CustomerID,
			CreditLimit:   cust.CreditLimit,
			CurrentCredit: cust.CurrentCredit,
			CreditScore:   cust.CreditScore,
		},
	}
	if err := s.pub.PublishCustomerCreditChanged(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish customer credit change event", slog.Any("error", err))
	}
}

func (s *customerService) CreateNewCustomer(ctx context.Context, name string, creditLimit Money, creditScore int) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer")

	name = strings.TrimSpace(name)
	if name == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, fmt.Errorf("%w: customer name cannot be empty", apperrors.ErrInvalidInput)
	}
	if creditLimit < 0 {
		s.logger.WarnContext(ctx, "Validation failed: negative credit limit", slog.Float64("creditLimit", creditLimit))
		return nil, fmt.Errorf("%w: credit limit cannot be negative", apperrors.ErrInvalidInput)
	}
	if creditScore < 0 || creditScore > MaxCreditScore {
		s.logger.WarnContext(ctx, "Validation failed: credit score out of range", slog.Int("creditScore", creditScore))
		return nil, fmt.Errorf("%w: credit score must be between 0 and %d", apperrors.ErrInvalidInput, MaxCreditScore)
	}

	cust := NewCustomer(name, creditLimit, creditScore)

	if err := s.repo.Save(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully created new customer", slog.Int64("customerID", cust.CustomerID))
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to get customer by ID", slog.Int64("customerID", customerID))

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, customerNotFound, slog.Int64("customerID", customerID))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	return cust, nil
}

func (s *customerService) ListActiveCustomers(ctx context.Context) ([]*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to list all active customers")

	customers, err := s.repo.FindAll(ctx, true)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing active customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list active customers: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully retrieved active customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (s *customerService) UpdateCreditLimit(ctx context.Context, customerID int64, newLimit Money) error {
	s.logger.InfoContext(ctx, "Attempting to update customer credit limit", slog.Int64("customerID", customerID))

	if newLimit < 0 {
		s.logger.WarnContext(ctx, "Validation failed: negative credit limit")
		return fmt.Errorf("%w: credit limit cannot be negative", apperrors.ErrInvalidInput)
	}

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		return fmt.Errorf("cannot find customer %d to update credit limit: %w", customerID, err)
	}

	// Lowering a limit below the outstanding balance is allowed: it only
	// blocks new issuance, it does not call existing credit.
	cust.CreditLimit = newLimit
	cust.UpdatedAt = time.Now()

	if err := s.repo.Save(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save credit limit change", slog.Any("error", err))
		return fmt.Errorf("failed to save credit limit for customer %d: %w", customerID, err)
	}

	s.publishCreditChanged(ctx, cust)
	s.logger.InfoContext(ctx, "Successfully updated customer credit limit")
	return nil
}

func (s *customerService) AvailableCredit(ctx context.Context, customerID int64) (Money, error) {
	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return cust.AvailableCredit(), nil
}

// ReserveCredit validates the requested amount against the customer's
// available margin. It intentionally performs no mutation; see
// Customer.ReserveCredit for the timing behavior this preserves.
func (s *customerService) ReserveCredit(ctx context.Context, customerID int64, amount Money) error {
	s.logger.InfoContext(ctx, "Validating credit reservation", slog.Int64("customerID", customerID), slog.Float64("amount", amount))

	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if !cust.Active {
		s.logger.WarnContext(ctx, "Business rule failed: cannot reserve credit for inactive customer")
		return fmt.Errorf("%w: customer %d is not active", apperrors.ErrValidation, customerID)
	}

	if err := cust.ReserveCredit(amount); err != nil {
		s.logger.WarnContext(ctx, "Credit reservation rejected", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *customerService) ConsumeCredit(ctx context.Context, customerID int64, amount Money) error {
	s.logger.InfoContext(ctx, "Consuming customer credit", slog.Int64("customerID", customerID), slog.Float64("amount", amount))

	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if err := cust.ReserveCredit(amount); err != nil {
		s.logger.WarnContext(ctx, "Credit consumption rejected", slog.Any("error", err))
		return err
	}
	cust.ConsumeCredit(amount)

	if err := s.repo.UpdateCredit(ctx, cust.CustomerID, cust.CurrentCredit, cust.CreditScore); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to persist credit consumption", slog.Any("error", err))
		return fmt.Errorf("failed to persist credit consumption for customer %d: %w", customerID, err)
	}

	s.publishCreditChanged(ctx, cust)
	return nil
}

func (s *customerService) ReleaseCredit(ctx context.Context, customerID int64, amount Money) (*Customer, error) {
	s.logger.InfoContext(ctx, "Releasing customer credit", slog.Int64("customerID", customerID), slog.Float64("amount", amount))

	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	cust.ReleaseCredit(amount)

	if err := s.repo.UpdateCredit(ctx, cust.CustomerID, cust.CurrentCredit, cust.CreditScore); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to persist credit release", slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist credit release for customer %d: %w", customerID, err)
	}

	s.publishCreditChanged(ctx, cust)
	return cust, nil
}

func (s *customerService) ApplyLoanCompletion(ctx context.Context, customerID int64, principal Money, scoreDelta int) (*Customer, error) {
	s.logger.InfoContext(ctx, "Applying loan completion to customer credit",
		slog.Int64("customerID", customerID), slog.Float64("principal", principal), slog.Int("scoreDelta", scoreDelta))

	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	cust.ApplyLoanCompletion(principal, scoreDelta)

	if err := s.repo.UpdateCredit(ctx, cust.CustomerID, cust.CurrentCredit, cust.CreditScore); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to persist loan completion", slog.Any("error", err))
		return nil, fmt.Errorf("failed to persist loan completion for customer %d: %w", customerID, err)
	}

	s.publishCreditChanged(ctx, cust)
	s.logger.InfoContext(ctx, "Successfully applied loan completion",
		slog.Float64("currentCredit", cust.CurrentCredit), slog.Int("creditScore", cust.CreditScore))
	return cust, nil
}

func (s *customerService) DeactivateCustomer(ctx context.Context, customerID int64) error {
	s.logger.InfoContext(ctx, "Attempting to deactivate customer", slog.Int64("customerID", customerID))

	cust, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if cust.CurrentCredit > 0 {
		s.logger.WarnContext(ctx, "Business rule failed: customer has outstanding credit", slog.Float64("currentCredit", cust.CurrentCredit))
		return ErrCannotDeactivateWithDebt
	}

	if err := s.repo.SetActiveStatus(ctx, customerID, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error deactivating customer", slog.Any("error", err))
		return fmt.Errorf("failed to deactivate customer %d: %w", customerID, err)
	}

	s.logger.InfoContext(ctx, "Successfully deactivated customer")
	return nil
}

func (s *customerService) ReactivateCustomer(ctx context.Context, customerID int64) error {
	s.logger.InfoContext(ctx, "Attempting to reactivate customer", slog.Int64("customerID", customerID))

	if err := s.repo.SetActiveStatus(ctx, customerID, true); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, customerNotFound)
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error reactivating customer", slog.Any("error", err))
		return fmt.Errorf("failed to reactivate customer %d: %w", customerID, err)
	}

	s.logger.InfoContext(ctx, "Successfully reactivated customer")
	return nil
}
