package dto

import (
	"fmt"
	"strconv"
	"time"

	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type CreateLoanRequest struct {
	CustomerID         int64   `json:"customerId"`
	Principal          float64 `json:"principal"`
	TermMonths         int     `json:"termMonths"`
	AnnualInterestRate float64 `json:"annualInterestRate"`
	LateFeeRate        float64 `json:"lateFeeRate"`
	StartDate          string  `json:"startDate"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be positive")
	}
	if r.Principal <= 0 {
		return fmt.Errorf("principal must be greater than zero")
	}
	if r.AnnualInterestRate < 0 {
		return fmt.Errorf("annualInterestRate cannot be negative")
	}
	if r.TermMonths <= 0 {
		return fmt.Errorf("termMonths must be positive")
	}
	if r.LateFeeRate < 0 {
		return fmt.Errorf("lateFeeRate cannot be negative")
	}
	if r.StartDate != "" {
		if _, err := time.Parse(time.RFC3339[:10], r.StartDate); err != nil {
			return fmt.Errorf("invalid startDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

type ApproveLoanRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

func (r *ApproveLoanRequest) Validate() error {
	if r.ApprovedBy == "" {
		return fmt.Errorf("approvedBy is required")
	}
	return nil
}

type MakePaymentRequest struct {
	Amount         string `json:"amount"`
	Method         string `json:"method"`
	Notes          string `json:"notes"`
	MinimumPayment bool   `json:"minimumPayment"`
}

func (r *MakePaymentRequest) Validate() error {
	if _, err := decimal.NewFromString(r.Amount); err != nil || r.Amount == "" {
		return fmt.Errorf("invalid payment amount: %w", err)
	}
	if _, err := loan.ParsePaymentMethod(r.Method); err != nil {
		return fmt.Errorf("invalid payment method %q", r.Method)
	}
	return nil
}

type LoanResponse struct {
	ID               string                      `json:"id"`
	LoanNumber       string                      `json:"loanNumber"`
	CustomerID       int64                       `json:"customerId"`
	Principal        string                      `json:"principal"`
	InterestRate     string                      `json:"interestRate"`
	TermMonths       int                         `json:"termMonths"`
	MonthlyPayment   string                      `json:"monthlyPayment"`
	MinimumPayment   string                      `json:"minimumPayment"`
	TotalAmount      string                      `json:"totalAmount"`
	RemainingBalance string                      `json:"remainingBalance"`
	PaidAmount       string                      `json:"paidAmount"`
	LateFeeRate      string                      `json:"lateFeeRate"`
	DaysOverdue      int                         `json:"daysOverdue"`
	LateFees         string                      `json:"lateFees"`
	Status           string                      `json:"status"`
	StartDate        string                      `json:"startDate"`
	EndDate          string                      `json:"endDate"`
	NextPaymentDate  string                      `json:"nextPaymentDate"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
	Schedule         []AmortizationEntryResponse `json:"schedule,omitempty"`
	Payments         []LoanPaymentResponse       `json:"payments,omitempty"`
}

type AmortizationEntryResponse struct {
	PaymentNumber    int        `json:"paymentNumber"`
	DueDate          string     `json:"dueDate"`
	BeginningBalance string     `json:"beginningBalance"`
	MonthlyPayment   string     `json:"monthlyPayment"`
	PrincipalPayment string     `json:"principalPayment"`
	InterestPayment  string     `json:"interestPayment"`
	EndingBalance    string     `json:"endingBalance"`
	Status           string     `json:"status"`
	PaidAmount       *string    `json:"paidAmount,omitempty"`
	PaidDate         *time.Time `json:"paidDate,omitempty"`
}

type LoanPaymentResponse struct {
	ID                    string    `json:"id"`
	PaymentNumber         int       `json:"paymentNumber"`
	Amount                string    `json:"amount"`
	Principal             string    `json:"principal"`
	Interest              string    `json:"interest"`
	LateFee               string    `json:"lateFee"`
	Date                  time.Time `json:"date"`
	Method                string    `json:"method"`
	Notes                 string    `json:"notes,omitempty"`
	RemainingBalanceAfter string    `json:"remainingBalanceAfter"`
}

type OutstandingResponse struct {
	LoanID            string `json:"loanId"`
	RemainingBalance  string `json:"remainingBalance"`
	LateFees          string `json:"lateFees"`
	OutstandingAmount string `json:"outstandingAmount"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func NewLoanResponse(domainLoan *loan.Loan, includeSchedule bool) LoanResponse {
	resp := LoanResponse{
		ID:               strconv.FormatInt(domainLoan.ID, 10),
		LoanNumber:       domainLoan.LoanNumber,
		CustomerID:       domainLoan.CustomerID,
		Principal:        formatMoney(domainLoan.Principal),
		InterestRate:     decimal.NewFromFloat(domainLoan.InterestRate).String(),
		TermMonths:       domainLoan.TermMonths,
		MonthlyPayment:   formatMoney(domainLoan.MonthlyPayment),
		MinimumPayment:   formatMoney(domainLoan.MinimumPayment),
		TotalAmount:      formatMoney(domainLoan.TotalAmount),
		RemainingBalance: formatMoney(domainLoan.RemainingBalance),
		PaidAmount:       formatMoney(domainLoan.PaidAmount),
		LateFeeRate:      decimal.NewFromFloat(domainLoan.LateFeeRate).String(),
		DaysOverdue:      domainLoan.DaysOverdue,
		LateFees:         formatMoney(domainLoan.LateFees),
		Status:           string(domainLoan.Status),
		StartDate:        domainLoan.StartDate.Format(time.RFC3339[:10]),
		EndDate:          domainLoan.EndDate.Format(time.RFC3339[:10]),
		NextPaymentDate:  domainLoan.NextPaymentDate.Format(time.RFC3339[:10]),
		CreatedAt:        domainLoan.CreatedAt,
		UpdatedAt:        domainLoan.UpdatedAt,
	}

	if includeSchedule && domainLoan.Schedule != nil {
		resp.Schedule = make([]AmortizationEntryResponse, len(domainLoan.Schedule))
		for i, entry := range domainLoan.Schedule {
			resp.Schedule[i] = NewAmortizationEntryResponse(&entry)
		}
	}

	if len(domainLoan.Payments) > 0 {
		resp.Payments = make([]LoanPaymentResponse, len(domainLoan.Payments))
		for i, p := range domainLoan.Payments {
			resp.Payments[i] = NewLoanPaymentResponse(&p)
		}
	}

	return resp
}

func NewAmortizationEntryResponse(entry *loan.AmortizationEntry) AmortizationEntryResponse {
	var paidAmountStr *string
	if entry.PaidAmount != 0 {
		s := formatMoney(entry.PaidAmount)
		paidAmountStr = &s
	}

	return AmortizationEntryResponse{
		PaymentNumber:    entry.PaymentNumber,
		DueDate:          entry.DueDate.Format(time.RFC3339[:10]),
		BeginningBalance: formatMoney(entry.BeginningBalance),
		MonthlyPayment:   formatMoney(entry.MonthlyPayment),
		PrincipalPayment: formatMoney(entry.PrincipalPayment),
		InterestPayment:  formatMoney(entry.InterestPayment),
		EndingBalance:    formatMoney(entry.EndingBalance),
		Status:           string(entry.Status),
		PaidAmount:       paidAmountStr,
		PaidDate:         entry.PaidDate,
	}
}

func NewLoanPaymentResponse(p *loan.LoanPayment) LoanPaymentResponse {
	return LoanPaymentResponse{
		ID:                    p.ID,
		PaymentNumber:         p.PaymentNumber,
		Amount:                formatMoney(p.Amount),
		Principal:             formatMoney(p.Principal),
		Interest:              formatMoney(p.Interest),
		LateFee:               formatMoney(p.LateFee),
		Date:                  p.Date,
		Method:                string(p.Method),
		Notes:                 p.Notes,
		RemainingBalanceAfter: formatMoney(p.RemainingBalanceAfter),
	}
}
