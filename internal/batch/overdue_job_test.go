package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/loan"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	ret := m.Called(ctx, l)
	if v := ret.Get(0); v != nil {
		return v.(*loan.Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.(*loan.Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	ret := m.Called(ctx, tx, loanID)
	if v := ret.Get(0); v != nil {
		return v.(*loan.Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) ([]loan.AmortizationEntry, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.([]loan.AmortizationEntry), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) GetPaymentsByLoanID(ctx context.Context, loanID int64) ([]loan.LoanPayment, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.([]loan.LoanPayment), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	ret := m.Called(ctx)
	if v := ret.Get(0); v != nil {
		return v.([]int64), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) NextLoanSequence(ctx context.Context, year int) (int64, error) {
	ret := m.Called(ctx, year)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *MockLoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	return m.Called(ctx, tx, l).Error(0)
}

func (m *MockLoanRepository) UpdateScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64, schedule []loan.AmortizationEntry) error {
	return m.Called(ctx, tx, loanID, schedule).Error(0)
}

func (m *MockLoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *loan.LoanPayment) error {
	return m.Called(ctx, tx, payment).Error(0)
}

func (m *MockLoanRepository) UpdateLoanStatus(ctx context.Context, l *loan.Loan) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockLoanRepository) UpdateOverdueState(ctx context.Context, loanID int64, daysOverdue int, lateFees loan.Money) error {
	return m.Called(ctx, loanID, daysOverdue, lateFees).Error(0)
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	ret := m.Called(ctx)
	if v := ret.Get(0); v != nil {
		return v.(pgx.Tx), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

var jobStart = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// First due date falls on 2026-02-15, so a clock at 2026-04-01 puts the
// loan 45 days past due.
var jobNow = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func activeTestLoan(t *testing.T, id int64) *loan.Loan {
	t.Helper()
	l, err := loan.NewLoan(7, "LN-2026-000001", 12000, 24, 12, 5, jobStart)
	require.NoError(t, err)
	require.NoError(t, loan.Approve(l, "manager", jobStart))
	l.ID = id
	return l
}

func TestRunAccruesLateFees(t *testing.T) {
	repo := new(MockLoanRepository)
	job := NewOverdueAccrualJobWithClock(repo, logger, func() time.Time { return jobNow })

	l := activeTestLoan(t, 1)
	expectedFee := loan.ComputeLateFee(l.MonthlyPayment, l.LateFeeRate, 45)

	repo.On("GetAllActiveLoanIDs", mock.Anything).Return([]int64{1}, nil)
	repo.On("GetLoanByID", mock.Anything, int64(1)).Return(l, nil)
	repo.On("UpdateOverdueState", mock.Anything, int64(1), 45, expectedFee).Return(nil)

	err := job.Run(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, l.MonthlyPayment*0.05*2, expectedFee, 1e-9, "45 days is two whole-month fee steps")
	repo.AssertExpectations(t)
}

func TestRunSkipsUnchangedLoans(t *testing.T) {
	repo := new(MockLoanRepository)
	job := NewOverdueAccrualJobWithClock(repo, logger, func() time.Time { return jobNow })

	l := activeTestLoan(t, 1)
	l.DaysOverdue = 45

	repo.On("GetAllActiveLoanIDs", mock.Anything).Return([]int64{1}, nil)
	repo.On("GetLoanByID", mock.Anything, int64(1)).Return(l, nil)

	require.NoError(t, job.Run(context.Background()))
	repo.AssertNotCalled(t, "UpdateOverdueState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunResetsStaleOverdueState(t *testing.T) {
	repo := new(MockLoanRepository)
	beforeDue := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	job := NewOverdueAccrualJobWithClock(repo, logger, func() time.Time { return beforeDue })

	l := activeTestLoan(t, 1)
	l.DaysOverdue = 3
	l.LateFees = 170.21

	repo.On("GetAllActiveLoanIDs", mock.Anything).Return([]int64{1}, nil)
	repo.On("GetLoanByID", mock.Anything, int64(1)).Return(l, nil)
	repo.On("UpdateOverdueState", mock.Anything, int64(1), 0, 0.0).Return(nil)

	require.NoError(t, job.Run(context.Background()))
	repo.AssertExpectations(t)
}

func TestRunNoActiveLoans(t *testing.T) {
	repo := new(MockLoanRepository)
	job := NewOverdueAccrualJobWithClock(repo, logger, func() time.Time { return jobNow })

	repo.On("GetAllActiveLoanIDs", mock.Anything).Return([]int64{}, nil)

	require.NoError(t, job.Run(context.Background()))
	repo.AssertNotCalled(t, "GetLoanByID", mock.Anything, mock.Anything)
}

func TestRunReportsErrors(t *testing.T) {
	repo := new(MockLoanRepository)
	job := NewOverdueAccrualJobWithClock(repo, logger, func() time.Time { return jobNow })

	repo.On("GetAllActiveLoanIDs", mock.Anything).Return([]int64{1, 2}, nil)
	repo.On("GetLoanByID", mock.Anything, int64(1)).Return(activeTestLoan(t, 1), nil)
	repo.On("GetLoanByID", mock.Anything, int64(2)).Return(nil, errors.New("connection reset"))
	repo.On("UpdateOverdueState", mock.Anything, int64(1), 45, mock.Anything).Return(nil)

	err := job.Run(context.Background())

	assert.ErrorContains(t, err, "1 errors")
}
