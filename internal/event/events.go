package event

import "time"

type CustomerCreditPayload struct {
	CustomerID    int64   `json:"customerId"`
	CreditLimit   float64 `json:"creditLimit"`
	CurrentCredit float64 `json:"currentCredit"`
	CreditScore   int     `json:"creditScore"`
}

type CustomerCreditChangedEvent struct {
	Timestamp time.Time             `json:"timestamp"`
	Payload   CustomerCreditPayload `json:"payload"`
}

type LoanEventPayload struct {
	LoanID           int64   `json:"loanId"`
	LoanNumber       string  `json:"loanNumber"`
	CustomerID       int64   `json:"customerId"`
	Principal        float64 `json:"principal"`
	RemainingBalance float64 `json:"remainingBalance"`
	Status           string  `json:"status"`
}

type LoanApprovedEvent struct {
	Timestamp  time.Time        `json:"timestamp"`
	ApprovedBy string           `json:"approvedBy"`
	Payload    LoanEventPayload `json:"payload"`
}

type LoanCompletedEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}
