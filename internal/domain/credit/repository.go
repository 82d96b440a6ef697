package credit

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("credit account not found")

type Repository interface {
	Save(ctx context.Context, account *Account) error

	FindByID(ctx context.Context, accountID int64) (*Account, error)

	FindByCustomerID(ctx context.Context, customerID int64) ([]*Account, error)

	InsertPayment(ctx context.Context, payment *Payment) error
}
