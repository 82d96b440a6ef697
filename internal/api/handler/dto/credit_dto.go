package dto

import (
	"fmt"
	"strconv"
	"time"

	"credit-engine/internal/domain/credit"
	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type OpenCreditAccountRequest struct {
	CustomerID int64   `json:"customerId"`
	Amount     float64 `json:"amount"`
}

func (r *OpenCreditAccountRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be positive")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	return nil
}

type CreditPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	Notes  string `json:"notes"`
}

func (r *CreditPaymentRequest) Validate() error {
	if _, err := decimal.NewFromString(r.Amount); err != nil || r.Amount == "" {
		return fmt.Errorf("invalid payment amount: %w", err)
	}
	if _, err := loan.ParsePaymentMethod(r.Method); err != nil {
		return fmt.Errorf("invalid payment method %q", r.Method)
	}
	return nil
}

type CreditAccountResponse struct {
	ID               string                  `json:"id"`
	CustomerID       int64                   `json:"customerId"`
	Amount           string                  `json:"amount"`
	RemainingBalance string                  `json:"remainingBalance"`
	Status           string                  `json:"status"`
	Payments         []CreditPaymentResponse `json:"payments,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

type CreditPaymentResponse struct {
	ID     string    `json:"id"`
	Amount string    `json:"amount"`
	Date   time.Time `json:"date"`
	Method string    `json:"method"`
	Notes  string    `json:"notes,omitempty"`
}

func NewCreditAccountResponse(a *credit.Account) CreditAccountResponse {
	resp := CreditAccountResponse{
		ID:               strconv.FormatInt(a.ID, 10),
		CustomerID:       a.CustomerID,
		Amount:           formatMoney(a.Amount),
		RemainingBalance: formatMoney(a.RemainingBalance),
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	for _, p := range a.Payments {
		resp.Payments = append(resp.Payments, CreditPaymentResponse{
			ID:     p.ID,
			Amount: formatMoney(p.Amount),
			Date:   p.Date,
			Method: p.Method,
			Notes:  p.Notes,
		})
	}
	return resp
}
