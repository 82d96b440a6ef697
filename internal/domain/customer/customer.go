package customer

import (
	"fmt"
	"time"

	"credit-engine/internal/pkg/apperrors"
)

type Money = float64

// MaxCreditScore is the ceiling for the 0-850 credit score scale.
const MaxCreditScore = 850

type Customer struct {
	CustomerID    int64     `json:"customerId"`
	Name          string    `json:"name"`
	CreditLimit   Money     `json:"creditLimit"`
	CurrentCredit Money     `json:"currentCredit"`
	CreditScore   int       `json:"creditScore"`
	Active        bool      `json:"active"`
	CreateDate    time.Time `json:"createDate"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewCustomer(name string, creditLimit Money, creditScore int) *Customer {
	now := time.Now()
	return &Customer{
		Name:          name,
		CreditLimit:   creditLimit,
		CurrentCredit: 0,
		CreditScore:   creditScore,
		Active:        true,
		CreateDate:    now,
		UpdatedAt:     now,
	}
}

// AvailableCredit is the remaining headroom before new credit can be issued.
func (c *Customer) AvailableCredit() Money {
	return c.CreditLimit - c.CurrentCredit
}

// ReserveCredit validates that issuing the given amount would not exceed the
// customer's credit line. It does not consume the line: loans only count
// against currentCredit once they complete, never at disbursement. That
// timing is preserved from the system this replaces.
func (c *Customer) ReserveCredit(amount Money) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reservation amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	if amount > c.AvailableCredit() {
		return fmt.Errorf("%w: requested %.2f but only %.2f available", apperrors.ErrInsufficientCredit, amount, c.AvailableCredit())
	}
	return nil
}

// ConsumeCredit adds to the outstanding balance counted against the credit
// line. Store credit (fiado) accounts consume at issuance.
func (c *Customer) ConsumeCredit(amount Money) {
	if amount <= 0 {
		return
	}
	c.CurrentCredit += amount
	c.UpdatedAt = time.Now()
}

// ReleaseCredit frees part of the consumed credit line, clamped at zero.
func (c *Customer) ReleaseCredit(amount Money) {
	if amount <= 0 {
		return
	}
	c.CurrentCredit -= amount
	if c.CurrentCredit < 0 {
		c.CurrentCredit = 0
	}
	c.UpdatedAt = time.Now()
}

// ApplyLoanCompletion releases the loan principal back to the credit line
// and rewards the score, capped at MaxCreditScore.
func (c *Customer) ApplyLoanCompletion(principal Money, scoreDelta int) {
	c.ReleaseCredit(principal)
	c.CreditScore += scoreDelta
	if c.CreditScore > MaxCreditScore {
		c.CreditScore = MaxCreditScore
	}
	c.UpdatedAt = time.Now()
}

func (c *Customer) Deactivate() {
	if c.Active {
		c.Active = false
		c.UpdatedAt = time.Now()
	}
}

func (c *Customer) Reactivate() {
	if !c.Active {
		c.Active = true
		c.UpdatedAt = time.Now()
	}
}
