package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `id, loan_number, customer_id, principal, interest_rate, term_months,
        monthly_payment, minimum_payment, total_amount, remaining_balance, paid_amount,
        late_fee_rate, days_overdue, late_fees, status, start_date, end_date,
        next_payment_date, approved_by, approved_at, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

var _ loan.Repository = (*LoanRepository)(nil)

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	loanSQL := `
        INSERT INTO loans (loan_number, customer_id, principal, interest_rate, term_months,
            monthly_payment, minimum_payment, total_amount, remaining_balance, paid_amount,
            late_fee_rate, days_overdue, late_fees, status, start_date, end_date,
            next_payment_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *newLoan
	err = tx.QueryRow(ctx, loanSQL,
		newLoan.LoanNumber, newLoan.CustomerID, newLoan.Principal, newLoan.InterestRate,
		newLoan.TermMonths, newLoan.MonthlyPayment, newLoan.MinimumPayment, newLoan.TotalAmount,
		newLoan.RemainingBalance, newLoan.PaidAmount, newLoan.LateFeeRate, newLoan.DaysOverdue,
		newLoan.LateFees, newLoan.Status, newLoan.StartDate, newLoan.EndDate, newLoan.NextPaymentDate,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "loan_number", newLoan.LoanNumber, "error", err)
		return nil, r.translateDBError(ctx, "insert loan", err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID, "loan_number", created.LoanNumber)

	if len(newLoan.Schedule) > 0 {
		scheduleSQL := `
            INSERT INTO loan_schedule (loan_id, payment_number, due_date, beginning_balance,
                monthly_payment, principal_payment, interest_payment, ending_balance,
                status, paid_amount, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

		batch := &pgx.Batch{}
		for _, entry := range newLoan.Schedule {
			batch.Queue(scheduleSQL, created.ID, entry.PaymentNumber, entry.DueDate,
				entry.BeginningBalance, entry.MonthlyPayment, entry.PrincipalPayment,
				entry.InterestPayment, entry.EndingBalance, entry.Status, entry.PaidAmount)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(newLoan.Schedule); i++ {
			_, err = results.Exec()
			if err != nil {
				results.Close()
				r.logger.ErrorContext(ctx, "Failed executing schedule batch insert", "error", err, "entry_index", i, "loan_id", created.ID)
				return nil, fmt.Errorf("%w: failed inserting schedule entry %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		err = results.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "loan_id", created.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}
	r.logger.InfoContext(ctx, "Loan schedule created in DB", "loan_id", created.ID, "num_entries", len(newLoan.Schedule))

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	status := "success"
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

// GetLoanForUpdate locks the loan row for the duration of the transaction so
// concurrent payments against the same loan apply one at a time.
func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan row", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	l.Schedule, err = r.getScheduleInTx(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LoanRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) ([]loan.AmortizationEntry, error) {
	rows, err := r.db.Query(ctx, scheduleQuery, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan schedule", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return r.collectSchedule(ctx, rows, loanID)
}

const scheduleQuery = `
        SELECT id, loan_id, payment_number, due_date, beginning_balance, monthly_payment,
               principal_payment, interest_payment, ending_balance, status, paid_amount,
               paid_date, created_at, updated_at
        FROM loan_schedule
        WHERE loan_id = $1
        ORDER BY payment_number ASC`

func (r *LoanRepository) getScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.AmortizationEntry, error) {
	rows, err := tx.Query(ctx, scheduleQuery, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan schedule in tx", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return r.collectSchedule(ctx, rows, loanID)
}

func (r *LoanRepository) collectSchedule(ctx context.Context, rows pgx.Rows, loanID int64) ([]loan.AmortizationEntry, error) {
	defer rows.Close()

	schedule := make([]loan.AmortizationEntry, 0)
	for rows.Next() {
		var entry loan.AmortizationEntry
		err := rows.Scan(
			&entry.ID, &entry.LoanID, &entry.PaymentNumber, &entry.DueDate,
			&entry.BeginningBalance, &entry.MonthlyPayment, &entry.PrincipalPayment,
			&entry.InterestPayment, &entry.EndingBalance, &entry.Status,
			&entry.PaidAmount, &entry.PaidDate, &entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan schedule row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		schedule = append(schedule, entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating schedule rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return schedule, nil
}

func (r *LoanRepository) GetPaymentsByLoanID(ctx context.Context, loanID int64) ([]loan.LoanPayment, error) {
	query := `
        SELECT id, loan_id, payment_number, amount, principal, interest, late_fee,
               payment_date, method, notes, remaining_balance_after
        FROM loan_payments
        WHERE loan_id = $1
        ORDER BY payment_date ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loan payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments := make([]loan.LoanPayment, 0)
	for rows.Next() {
		var p loan.LoanPayment
		err := rows.Scan(
			&p.ID, &p.LoanID, &p.PaymentNumber, &p.Amount, &p.Principal,
			&p.Interest, &p.LateFee, &p.Date, &p.Method, &p.Notes, &p.RemainingBalanceAfter,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return payments, nil
}

func (r *LoanRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM loans WHERE status = $1 ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, loan.StatusActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query active loan IDs", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan ID", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan ID rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return ids, nil
}

// NextLoanSequence allocates the next per-year sequence number used to build
// loan numbers. The upsert keeps allocation atomic under concurrent creates.
func (r *LoanRepository) NextLoanSequence(ctx context.Context, year int) (int64, error) {
	query := `
        INSERT INTO loan_sequences (year, last_value)
        VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = loan_sequences.last_value + 1
        RETURNING last_value`

	var seq int64
	err := r.db.QueryRow(ctx, query, year).Scan(&seq)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to allocate loan sequence", "year", year, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return seq, nil
}

func (r *LoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	query := `
        UPDATE loans
        SET remaining_balance = $1, paid_amount = $2, days_overdue = $3, late_fees = $4,
            status = $5, next_payment_date = $6, updated_at = NOW()
        WHERE id = $7`

	cmdTag, err := tx.Exec(ctx, query,
		l.RemainingBalance, l.PaidAmount, l.DaysOverdue, l.LateFees,
		l.Status, l.NextPaymentDate, l.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan in tx", "loan_id", l.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Loan update affected no rows", "loan_id", l.ID)
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LoanRepository) UpdateScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64, schedule []loan.AmortizationEntry) error {
	query := `
        UPDATE loan_schedule
        SET status = $1, paid_amount = $2, paid_date = $3, updated_at = NOW()
        WHERE loan_id = $4 AND payment_number = $5`

	batch := &pgx.Batch{}
	for _, entry := range schedule {
		batch.Queue(query, entry.Status, entry.PaidAmount, entry.PaidDate, loanID, entry.PaymentNumber)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(schedule); i++ {
		_, err := results.Exec()
		if err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing schedule batch update", "error", err, "entry_index", i, "loan_id", loanID)
			return fmt.Errorf("%w: failed updating schedule entry %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "loan_id", loanID)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *loan.LoanPayment) error {
	query := `
        INSERT INTO loan_payments (id, loan_id, payment_number, amount, principal, interest,
            late_fee, payment_date, method, notes, remaining_balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`

	_, err := tx.Exec(ctx, query,
		p.ID, p.LoanID, p.PaymentNumber, p.Amount, p.Principal, p.Interest,
		p.LateFee, p.Date, p.Method, p.Notes, p.RemainingBalanceAfter,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan payment", "loan_id", p.LoanID, "error", err)
		return r.translateDBError(ctx, "insert loan payment", err)
	}
	return nil
}

func (r *LoanRepository) UpdateLoanStatus(ctx context.Context, l *loan.Loan) error {
	query := `
        UPDATE loans
        SET status = $1, approved_by = $2, approved_at = $3, updated_at = NOW()
        WHERE id = $4`

	cmdTag, err := r.db.Exec(ctx, query, l.Status, l.ApprovedBy, l.ApprovedAt, l.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", l.ID, "status", l.Status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Loan status update affected no rows", "loan_id", l.ID)
		return apperrors.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Loan status updated in DB", "loan_id", l.ID, "status", l.Status)
	return nil
}

func (r *LoanRepository) UpdateOverdueState(ctx context.Context, loanID int64, daysOverdue int, lateFees loan.Money) error {
	query := `
        UPDATE loans
        SET days_overdue = $1, late_fees = $2, updated_at = NOW()
        WHERE id = $3 AND status = $4`

	cmdTag, err := r.db.Exec(ctx, query, daysOverdue, lateFees, loanID, loan.StatusActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update overdue state", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Overdue update affected no rows, loan missing or not active", "loan_id", loanID)
		return apperrors.ErrNotFound
	}
	return nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.LoanNumber, &l.CustomerID, &l.Principal, &l.InterestRate,
		&l.TermMonths, &l.MonthlyPayment, &l.MinimumPayment, &l.TotalAmount,
		&l.RemainingBalance, &l.PaidAmount, &l.LateFeeRate, &l.DaysOverdue,
		&l.LateFees, &l.Status, &l.StartDate, &l.EndDate, &l.NextPaymentDate,
		&l.ApprovedBy, &l.ApprovedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.MonthlyInterestRate = l.InterestRate / 100 / 12
	return &l, nil
}

func (r *LoanRepository) translateDBError(ctx context.Context, op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		r.logger.WarnContext(ctx, "Unique constraint violation", "op", op, "constraint", pgErr.ConstraintName)
		return fmt.Errorf("%w: %s (constraint %s)", apperrors.ErrAlreadyExists, op, pgErr.ConstraintName)
	}

	return fmt.Errorf("%w: %s: %w", apperrors.ErrDatabase, op, err)
}
