package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "customerID")
	if idStr == "" {
		return 0, fmt.Errorf("customerID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// CreateCustomer registers a new customer with a credit line.
//
// @Summary Create a new customer
// @Description Registers a customer with a credit limit and an initial credit score.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation payload"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "Customer already exists"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	created, err := h.service.CreateNewCustomer(r.Context(), req.Name, req.CreditLimit, req.CreditScore)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(created))
}

// GetCustomer retrieves a customer by ID.
//
// @Summary Retrieve customer details
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} dto.CustomerResponse "Customer details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	c, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		respondError(w, translateCustomerError(err))
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(c))
}

// ListCustomers lists all active customers.
//
// @Summary List active customers
// @Tags Customers
// @Produce json
// @Success 200 {array} dto.CustomerResponse "Customers successfully retrieved"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
// @Security BearerAuth
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListActiveCustomers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]dto.CustomerResponse, len(customers))
	for i, c := range customers {
		resp[i] = dto.NewCustomerResponse(c)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetAvailableCredit returns the customer's remaining credit headroom.
//
// @Summary Retrieve available credit
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} map[string]string "Available credit successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID}/credit [get]
// @Security BearerAuth
func (h *CustomerHandler) GetAvailableCredit(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	available, err := h.service.AvailableCredit(r.Context(), customerID)
	if err != nil {
		respondError(w, translateCustomerError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"customerId":      strconv.FormatInt(customerID, 10),
		"availableCredit": fmt.Sprintf("%.2f", available),
	})
}

// UpdateCreditLimit changes a customer's credit line ceiling.
//
// @Summary Update customer credit limit
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID"
// @Param request body dto.UpdateCreditLimitRequest true "New credit limit"
// @Success 200 {object} map[string]string "Credit limit successfully updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID}/credit-limit [put]
// @Security BearerAuth
func (h *CustomerHandler) UpdateCreditLimit(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	var req dto.UpdateCreditLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	if err := h.service.UpdateCreditLimit(r.Context(), customerID, req.CreditLimit); err != nil {
		respondError(w, translateCustomerError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Credit limit updated"})
}

// DeactivateCustomer disables a customer account.
//
// @Summary Deactivate a customer
// @Description Deactivates a customer. Customers with outstanding credit cannot be deactivated.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} map[string]string "Customer successfully deactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID or outstanding debt"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID} [delete]
// @Security BearerAuth
func (h *CustomerHandler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	if err := h.service.DeactivateCustomer(r.Context(), customerID); err != nil {
		respondError(w, translateCustomerError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Customer deactivated"})
}

// ReactivateCustomer re-enables a deactivated customer account.
//
// @Summary Reactivate a customer
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} map[string]string "Customer successfully reactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /customers/{customerID}/reactivate [put]
// @Security BearerAuth
func (h *CustomerHandler) ReactivateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	if err := h.service.ReactivateCustomer(r.Context(), customerID); err != nil {
		respondError(w, translateCustomerError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Customer reactivated"})
}

func translateCustomerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, customer.ErrNotFound):
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	case errors.Is(err, customer.ErrCannotDeactivateWithDebt):
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return err
}
