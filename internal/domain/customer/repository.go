package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrUpdateConflict = errors.New("update conflict detected")

	ErrCannotDeactivateWithDebt = errors.New("cannot deactivate customer with outstanding credit")
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Customer, error)

	// UpdateCredit persists currentCredit and creditScore together so credit
	// releases and score bumps land atomically.
	UpdateCredit(ctx context.Context, customerID int64, currentCredit Money, creditScore int) error

	SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error
}
