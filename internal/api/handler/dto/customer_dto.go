package dto

import (
	"fmt"
	"strconv"
	"time"

	"credit-engine/internal/domain/customer"
)

type CreateCustomerRequest struct {
	Name        string  `json:"name"`
	CreditLimit float64 `json:"creditLimit"`
	CreditScore int     `json:"creditScore"`
}

func (r *CreateCustomerRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.CreditLimit < 0 {
		return fmt.Errorf("creditLimit cannot be negative")
	}
	if r.CreditScore < 0 || r.CreditScore > customer.MaxCreditScore {
		return fmt.Errorf("creditScore must be between 0 and %d", customer.MaxCreditScore)
	}
	return nil
}

type UpdateCreditLimitRequest struct {
	CreditLimit float64 `json:"creditLimit"`
}

func (r *UpdateCreditLimitRequest) Validate() error {
	if r.CreditLimit < 0 {
		return fmt.Errorf("creditLimit cannot be negative")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID      string    `json:"customerId"`
	Name            string    `json:"name"`
	CreditLimit     string    `json:"creditLimit"`
	CurrentCredit   string    `json:"currentCredit"`
	AvailableCredit string    `json:"availableCredit"`
	CreditScore     int       `json:"creditScore"`
	Active          bool      `json:"active"`
	CreateDate      time.Time `json:"createDate"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		CustomerID:      strconv.FormatInt(c.CustomerID, 10),
		Name:            c.Name,
		CreditLimit:     formatMoney(c.CreditLimit),
		CurrentCredit:   formatMoney(c.CurrentCredit),
		AvailableCredit: formatMoney(c.AvailableCredit()),
		CreditScore:     c.CreditScore,
		Active:          c.Active,
		CreateDate:      c.CreateDate,
		UpdatedAt:       c.UpdatedAt,
	}
}
