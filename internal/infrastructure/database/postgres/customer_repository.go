package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger.With("component", "CustomerRepository")}
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	if c.CustomerID == 0 {
		return r.createCustomer(ctx, c)
	}
	return r.updateCustomer(ctx, c)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, c *customer.Customer) error {
	query := `
        INSERT INTO customers (name, credit_limit, current_credit, credit_score, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Name, c.CreditLimit, c.CurrentCredit, c.CreditScore, c.Active,
	).Scan(&c.CustomerID, &c.CreateDate, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.WarnContext(ctx, "Customer already exists", "name", c.Name, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: customer %q", apperrors.ErrAlreadyExists, c.Name)
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", "name", c.Name, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer created in DB", "customer_id", c.CustomerID)
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, c *customer.Customer) error {
	query := `
        UPDATE customers
        SET name = $1, credit_limit = $2, current_credit = $3, credit_score = $4,
            is_active = $5, updated_at = NOW()
        WHERE id = $6
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Name, c.CreditLimit, c.CurrentCredit, c.CreditScore, c.Active, c.CustomerID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found for update", "customer_id", c.CustomerID)
			return customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to update customer", "customer_id", c.CustomerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `
        SELECT id, name, credit_limit, current_credit, credit_score, is_active, created_at, updated_at
        FROM customers
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var c customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&c.CustomerID, &c.Name, &c.CreditLimit, &c.CurrentCredit,
		&c.CreditScore, &c.Active, &c.CreateDate, &c.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindCustomerByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &c, nil
}

func (r *CustomerRepository) FindAll(ctx context.Context, activeOnly bool) ([]*customer.Customer, error) {
	query := `
        SELECT id, name, credit_limit, current_credit, credit_score, is_active, created_at, updated_at
        FROM customers`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		var c customer.Customer
		err := rows.Scan(
			&c.CustomerID, &c.Name, &c.CreditLimit, &c.CurrentCredit,
			&c.CreditScore, &c.Active, &c.CreateDate, &c.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		customers = append(customers, &c)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return customers, nil
}

func (r *CustomerRepository) UpdateCredit(ctx context.Context, customerID int64, currentCredit customer.Money, creditScore int) error {
	query := `
        UPDATE customers
        SET current_credit = $1, credit_score = $2, updated_at = NOW()
        WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, query, currentCredit, creditScore, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer credit", "customer_id", customerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Credit update affected no rows", "customer_id", customerID)
		return customer.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Customer credit updated in DB", "customer_id", customerID, "current_credit", currentCredit, "credit_score", creditScore)
	return nil
}

func (r *CustomerRepository) SetActiveStatus(ctx context.Context, customerID int64, isActive bool) error {
	query := `
        UPDATE customers
        SET is_active = $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, isActive, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to set customer active status", "customer_id", customerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Active status update affected no rows", "customer_id", customerID)
		return customer.ErrNotFound
	}
	return nil
}
