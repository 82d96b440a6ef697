package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/credit"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

type CreditAccountRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewCreditAccountRepository(db DBPool, logger *slog.Logger) *CreditAccountRepository {
	return &CreditAccountRepository{db: db, logger: logger.With("component", "CreditAccountRepository")}
}

var _ credit.Repository = (*CreditAccountRepository)(nil)

func (r *CreditAccountRepository) Save(ctx context.Context, a *credit.Account) error {
	if a.ID == 0 {
		return r.createAccount(ctx, a)
	}
	return r.updateAccount(ctx, a)
}

func (r *CreditAccountRepository) createAccount(ctx context.Context, a *credit.Account) error {
	query := `
        INSERT INTO credit_accounts (customer_id, amount, remaining_balance, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.CustomerID, a.Amount, a.RemainingBalance, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert credit account", "customer_id", a.CustomerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Credit account created in DB", "account_id", a.ID, "customer_id", a.CustomerID)
	return nil
}

func (r *CreditAccountRepository) updateAccount(ctx context.Context, a *credit.Account) error {
	query := `
        UPDATE credit_accounts
        SET remaining_balance = $1, status = $2, updated_at = NOW()
        WHERE id = $3
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, a.RemainingBalance, a.Status, a.ID).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Credit account not found for update", "account_id", a.ID)
			return credit.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to update credit account", "account_id", a.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *CreditAccountRepository) FindByID(ctx context.Context, accountID int64) (*credit.Account, error) {
	query := `
        SELECT id, customer_id, amount, remaining_balance, status, created_at, updated_at
        FROM credit_accounts
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var a credit.Account
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&a.ID, &a.CustomerID, &a.Amount, &a.RemainingBalance,
		&a.Status, &a.CreatedAt, &a.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindCreditAccountByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Credit account not found", "account_id", accountID)
			return nil, credit.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get credit account by ID", "account_id", accountID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	a.Payments, err = r.getPayments(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CreditAccountRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*credit.Account, error) {
	query := `
        SELECT id, customer_id, amount, remaining_balance, status, created_at, updated_at
        FROM credit_accounts
        WHERE customer_id = $1
        ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query credit accounts", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	accounts := make([]*credit.Account, 0)
	for rows.Next() {
		var a credit.Account
		err := rows.Scan(
			&a.ID, &a.CustomerID, &a.Amount, &a.RemainingBalance,
			&a.Status, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan credit account row", "customer_id", customerID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		accounts = append(accounts, &a)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating credit account rows", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return accounts, nil
}

func (r *CreditAccountRepository) InsertPayment(ctx context.Context, p *credit.Payment) error {
	query := `
        INSERT INTO credit_account_payments (id, account_id, amount, payment_date, method, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.Exec(ctx, query, p.ID, p.AccountID, p.Amount, p.Date, p.Method, p.Notes)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert credit account payment", "account_id", p.AccountID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *CreditAccountRepository) getPayments(ctx context.Context, accountID int64) ([]credit.Payment, error) {
	query := `
        SELECT id, account_id, amount, payment_date, method, notes
        FROM credit_account_payments
        WHERE account_id = $1
        ORDER BY payment_date ASC`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query credit account payments", "account_id", accountID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]credit.Payment, 0)
	for rows.Next() {
		var p credit.Payment
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Amount, &p.Date, &p.Method, &p.Notes); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan credit payment row", "account_id", accountID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating credit payment rows", "account_id", accountID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return payments, nil
}
