package credit

import (
	"fmt"
	"math"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/google/uuid"
)

type Money = float64

type AccountStatus string

const (
	StatusPending AccountStatus = "PENDING"
	StatusPartial AccountStatus = "PARTIAL"
	StatusPaid    AccountStatus = "PAID"
	StatusOverdue AccountStatus = "OVERDUE"
)

// Account is a store-credit ("fiado") balance on a single purchase, the
// simpler sibling of an installment loan. It shares the customer's credit
// line from the moment it is opened.
type Account struct {
	ID               int64
	CustomerID       int64
	Amount           Money
	RemainingBalance Money
	Status           AccountStatus
	Payments         []Payment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Payment struct {
	ID        string
	AccountID int64
	Amount    Money
	Date      time.Time
	Method    string
	Notes     string
}

const paidEpsilon = 0.01

func NewAccount(customerID int64, amount Money) (*Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit account amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	now := time.Now()
	return &Account{
		CustomerID:       customerID,
		Amount:           amount,
		RemainingBalance: amount,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// RecordPayment reduces the balance and settles the account once it clears.
// The released amount (what should come off the customer's credit line) is
// the payment itself, capped by the balance.
func (a *Account) RecordPayment(amount Money, method, notes string, now time.Time) (*Payment, Money, error) {
	if a.Status == StatusPaid {
		return nil, 0, fmt.Errorf("%w: credit account is already settled", apperrors.ErrInvalidStateTransition)
	}
	if amount <= 0 {
		return nil, 0, fmt.Errorf("%w: payment amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	if amount > a.RemainingBalance+paidEpsilon {
		return nil, 0, fmt.Errorf("%w: payment %.2f exceeds remaining balance %.2f", apperrors.ErrPaymentExceedsBalance, amount, a.RemainingBalance)
	}

	released := math.Min(amount, a.RemainingBalance)
	a.RemainingBalance = math.Max(0, a.RemainingBalance-amount)
	if a.RemainingBalance <= paidEpsilon {
		a.RemainingBalance = 0
		a.Status = StatusPaid
	} else {
		a.Status = StatusPartial
	}
	a.UpdatedAt = now

	p := Payment{
		ID:        uuid.NewString(),
		AccountID: a.ID,
		Amount:    amount,
		Date:      now,
		Method:    method,
		Notes:     notes,
	}
	a.Payments = append(a.Payments, p)
	return &p, released, nil
}

// MarkOverdue flags an unsettled account past its terms.
func (a *Account) MarkOverdue(now time.Time) error {
	if a.Status == StatusPaid {
		return fmt.Errorf("%w: settled account cannot become overdue", apperrors.ErrInvalidStateTransition)
	}
	a.Status = StatusOverdue
	a.UpdatedAt = now
	return nil
}
