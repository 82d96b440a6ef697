package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

// OverdueAccrualJob walks all active loans once a day, stamps how many days
// each one is past its next due date, and accrues moratory fees in
// whole-month steps.
type OverdueAccrualJob struct {
	loanRepo loan.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewOverdueAccrualJob(loanRepo loan.Repository, logger *slog.Logger) *OverdueAccrualJob {
	if loanRepo == nil || logger == nil {
		panic("OverdueAccrualJob dependencies cannot be nil")
	}
	return &OverdueAccrualJob{
		loanRepo: loanRepo,
		logger:   logger.With("job", "OverdueAccrual"),
		now:      time.Now,
	}
}

// NewOverdueAccrualJobWithClock pins the job to a fixed clock for tests.
func NewOverdueAccrualJobWithClock(loanRepo loan.Repository, logger *slog.Logger, now func() time.Time) *OverdueAccrualJob {
	j := NewOverdueAccrualJob(loanRepo, logger)
	j.now = now
	return j
}

func (j *OverdueAccrualJob) Run(ctx context.Context) error {
	startTime := j.now()
	j.logger.InfoContext(ctx, "Starting daily overdue accrual job.")

	activeLoanIDs, err := j.loanRepo.GetAllActiveLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loan IDs.", slog.Int("count", len(activeLoanIDs)))

	if len(activeLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to process.")
		j.logger.InfoContext(ctx, "Overdue accrual job finished.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	var wg sync.WaitGroup
	var processedCount, overdueCount, errorCount int32

	for _, loanID := range activeLoanIDs {
		wg.Add(1)
		go func(currentLoanID int64) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("loanID", currentLoanID))

			l, loadErr := j.loanRepo.GetLoanByID(ctx, currentLoanID)
			if loadErr != nil {
				if errors.Is(loadErr, apperrors.ErrNotFound) {
					logCtx.WarnContext(ctx, "Loan not found during overdue check", slog.Any("error", loadErr))
				} else {
					logCtx.ErrorContext(ctx, "Failed to load loan for overdue check", slog.Any("error", loadErr))
					atomic.AddInt32(&errorCount, 1)
				}
				return
			}

			daysOverdue := j.daysOverdue(l)
			if daysOverdue == l.DaysOverdue {
				logCtx.DebugContext(ctx, "Overdue state unchanged.", slog.Int("days_overdue", daysOverdue))
				atomic.AddInt32(&processedCount, 1)
				return
			}

			lateFees := loan.ComputeLateFee(l.MonthlyPayment, l.LateFeeRate, daysOverdue)
			logCtx.InfoContext(ctx, "Updating overdue state.",
				slog.Int("days_overdue", daysOverdue),
				slog.Float64("late_fees", lateFees),
			)

			if updateErr := j.loanRepo.UpdateOverdueState(ctx, currentLoanID, daysOverdue, lateFees); updateErr != nil {
				logCtx.ErrorContext(ctx, "Failed to persist overdue state", slog.Any("error", updateErr))
				atomic.AddInt32(&errorCount, 1)
				return
			}

			if daysOverdue > 0 {
				atomic.AddInt32(&overdueCount, 1)
				monitoring.RecordLateFeeAccrual()
			}
			atomic.AddInt32(&processedCount, 1)
		}(loanID)
	}

	wg.Wait()
	duration := time.Since(startTime)
	summaryLog := j.logger.With(
		slog.Duration("duration", duration),
		slog.Int("total_active_loans", len(activeLoanIDs)),
		slog.Int("loans_processed", int(processedCount)),
		slog.Int("loans_overdue", int(overdueCount)),
		slog.Int("errors_encountered", int(errorCount)),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Overdue accrual job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Overdue accrual job finished successfully.")
	return nil
}

// daysOverdue counts full days elapsed past the next unpaid due date.
func (j *OverdueAccrualJob) daysOverdue(l *loan.Loan) int {
	if l.Status != loan.StatusActive || l.NextPaymentDate.IsZero() {
		return 0
	}
	elapsed := j.now().Sub(l.NextPaymentDate)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}
