package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CreditHandler struct {
	service credit.AccountService
	logger  *slog.Logger
}

func NewCreditHandler(s credit.AccountService, l *slog.Logger) *CreditHandler {
	return &CreditHandler{
		service: s,
		logger:  l.With("component", "CreditHandler"),
	}
}

func getAccountIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "accountID")
	if idStr == "" {
		return 0, fmt.Errorf("accountID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// OpenAccount opens a store-credit account against a customer's credit line.
//
// @Summary Open a store-credit account
// @Description Opens a fiado account. The amount is consumed from the customer's credit line immediately.
// @Tags Credit
// @Accept json
// @Produce json
// @Param request body dto.OpenCreditAccountRequest true "Account creation payload"
// @Success 201 {object} dto.CreditAccountResponse "Account successfully opened"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 422 {object} dto.ErrorResponse "Insufficient available credit"
// @Router /credit-accounts [post]
// @Security BearerAuth
func (h *CreditHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenCreditAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	account, err := h.service.OpenAccount(r.Context(), req.CustomerID, req.Amount)
	if err != nil {
		respondError(w, translateCreditError(err))
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewCreditAccountResponse(account))
}

// GetAccount retrieves a store-credit account by ID.
//
// @Summary Retrieve store-credit account details
// @Tags Credit
// @Produce json
// @Param accountID path int true "Account ID"
// @Success 200 {object} dto.CreditAccountResponse "Account details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Router /credit-accounts/{accountID} [get]
// @Security BearerAuth
func (h *CreditHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := getAccountIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, translateCreditError(err))
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCreditAccountResponse(account))
}

// ListByCustomer lists the store-credit accounts of a customer.
//
// @Summary List store-credit accounts for a customer
// @Tags Credit
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {array} dto.CreditAccountResponse "Accounts successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Router /customers/{customerID}/credit-accounts [get]
// @Security BearerAuth
func (h *CreditHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	accounts, err := h.service.ListByCustomer(r.Context(), customerID)
	if err != nil {
		respondError(w, translateCreditError(err))
		return
	}

	resp := make([]dto.CreditAccountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = dto.NewCreditAccountResponse(a)
	}
	respondJSON(w, http.StatusOK, resp)
}

// RecordPayment applies a payment against a store-credit account.
//
// @Summary Pay down a store-credit account
// @Description Applies a payment to the account balance and releases the paid amount back to the customer's credit line.
// @Tags Credit
// @Accept json
// @Produce json
// @Param accountID path int true "Account ID"
// @Param request body dto.CreditPaymentRequest true "Payment request payload"
// @Success 200 {object} dto.CreditPaymentResponse "Payment successfully processed"
// @Failure 400 {object} dto.ErrorResponse "Invalid account ID or request payload"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Account is already settled"
// @Router /credit-accounts/{accountID}/payments [post]
// @Security BearerAuth
func (h *CreditHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	accountID, err := getAccountIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	var req dto.CreditPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	amountDecimal, _ := decimal.NewFromString(req.Amount)
	amountFloat, _ := amountDecimal.Float64()

	payment, err := h.service.RecordPayment(r.Context(), accountID, amountFloat, req.Method, req.Notes)
	if err != nil {
		respondError(w, translateCreditError(err))
		return
	}

	respondJSON(w, http.StatusOK, dto.CreditPaymentResponse{
		ID:     payment.ID,
		Amount: fmt.Sprintf("%.2f", payment.Amount),
		Date:   payment.Date,
		Method: payment.Method,
		Notes:  payment.Notes,
	})
}

func translateCreditError(err error) error {
	if errors.Is(err, credit.ErrNotFound) {
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	}
	return err
}
