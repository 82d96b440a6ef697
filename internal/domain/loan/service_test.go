package loan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLoan(ctx context.Context, l *Loan) (*Loan, error) {
	ret := m.Called(ctx, l)
	if rf, ok := ret.Get(0).(func(context.Context, *Loan) *Loan); ok {
		return rf(ctx, l), ret.Error(1)
	}
	if v := ret.Get(0); v != nil {
		return v.(*Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.(*Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	ret := m.Called(ctx, tx, loanID)
	if v := ret.Get(0); v != nil {
		return v.(*Loan), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) GetScheduleByLoanID(ctx context.Context, loanID int64) ([]AmortizationEntry, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.([]AmortizationEntry), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) GetPaymentsByLoanID(ctx context.Context, loanID int64) ([]LoanPayment, error) {
	ret := m.Called(ctx, loanID)
	if v := ret.Get(0); v != nil {
		return v.([]LoanPayment), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	ret := m.Called(ctx)
	if v := ret.Get(0); v != nil {
		return v.([]int64), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) NextLoanSequence(ctx context.Context, year int) (int64, error) {
	ret := m.Called(ctx, year)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *MockRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *Loan) error {
	return m.Called(ctx, tx, l).Error(0)
}

func (m *MockRepository) UpdateScheduleInTx(ctx context.Context, tx pgx.Tx, loanID int64, schedule []AmortizationEntry) error {
	return m.Called(ctx, tx, loanID, schedule).Error(0)
}

func (m *MockRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *LoanPayment) error {
	return m.Called(ctx, tx, payment).Error(0)
}

func (m *MockRepository) UpdateLoanStatus(ctx context.Context, l *Loan) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockRepository) UpdateOverdueState(ctx context.Context, loanID int64, daysOverdue int, lateFees Money) error {
	return m.Called(ctx, loanID, daysOverdue, lateFees).Error(0)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	ret := m.Called(ctx)
	if v := ret.Get(0); v != nil {
		return v.(pgx.Tx), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateNewCustomer(ctx context.Context, name string, creditLimit customer.Money, creditScore int) (*customer.Customer, error) {
	ret := m.Called(ctx, name, creditLimit, creditScore)
	if v := ret.Get(0); v != nil {
		return v.(*customer.Customer), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := m.Called(ctx, customerID)
	if v := ret.Get(0); v != nil {
		return v.(*customer.Customer), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockCustomerService) ListActiveCustomers(ctx context.Context) ([]*customer.Customer, error) {
	ret := m.Called(ctx)
	if v := ret.Get(0); v != nil {
		return v.([]*customer.Customer), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockCustomerService) UpdateCreditLimit(ctx context.Context, customerID int64, newLimit customer.Money) error {
	return m.Called(ctx, customerID, newLimit).Error(0)
}

func (m *MockCustomerService) AvailableCredit(ctx context.Context, customerID int64) (customer.Money, error) {
	ret := m.Called(ctx, customerID)
	return ret.Get(0).(customer.Money), ret.Error(1)
}

func (m *MockCustomerService) ReserveCredit(ctx context.Context, customerID int64, amount customer.Money) error {
	return m.Called(ctx, customerID, amount).Error(0)
}

func (m *MockCustomerService) ConsumeCredit(ctx context.Context, customerID int64, amount customer.Money) error {
	return m.Called(ctx, customerID, amount).Error(0)
}

func (m *MockCustomerService) ReleaseCredit(ctx context.Context, customerID int64, amount customer.Money) (*customer.Customer, error) {
	ret := m.Called(ctx, customerID, amount)
	if v := ret.Get(0); v != nil {
		return v.(*customer.Customer), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockCustomerService) ApplyLoanCompletion(ctx context.Context, customerID int64, principal customer.Money, scoreDelta int) (*customer.Customer, error) {
	ret := m.Called(ctx, customerID, principal, scoreDelta)
	if v := ret.Get(0); v != nil {
		return v.(*customer.Customer), ret.Error(1)
	}
	return nil, ret.Error(1)
}

func (m *MockCustomerService) DeactivateCustomer(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *MockCustomerService) ReactivateCustomer(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newServiceUnderTest(repo *MockRepository, cs *MockCustomerService) LoanService {
	return NewLoanServiceWithClock(repo, cs, nil, logger, func() time.Time { return fixedNow })
}

func TestCreateLoanAllocatesNumberAndSaves(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	cs.On("ReserveCredit", ctx, int64(7), 12000.0).Return(nil)
	repo.On("NextLoanSequence", ctx, 2026).Return(int64(42), nil)
	repo.On("CreateLoan", ctx, mock.AnythingOfType("*loan.Loan")).
		Return(func(ctx context.Context, l *Loan) *Loan {
			l.ID = 1
			return l
		}, nil)

	created, err := svc.CreateLoan(ctx, 7, 12000, 12, 24, 10, testStartDate)

	require.NoError(t, err)
	assert.Equal(t, "LN-2026-000042", created.LoanNumber)
	assert.Equal(t, StatusPending, created.Status)
	assert.Len(t, created.Schedule, 12)
	repo.AssertExpectations(t)
	cs.AssertExpectations(t)
}

func TestCreateLoanInsufficientCredit(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	cs.On("ReserveCredit", ctx, int64(7), 50000.0).Return(apperrors.ErrInsufficientCredit)

	_, err := svc.CreateLoan(ctx, 7, 50000, 12, 24, 10, testStartDate)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientCredit)
	repo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestCreateLoanUnknownCustomer(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	cs.On("ReserveCredit", ctx, int64(99), 1000.0).Return(customer.ErrNotFound)

	_, err := svc.CreateLoan(ctx, 99, 1000, 12, 24, 10, testStartDate)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApproveLoanPersistsTransition(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	pending := newPendingLoan(t)
	pending.ID = 5

	repo.On("GetLoanByID", ctx, int64(5)).Return(pending, nil)
	repo.On("GetScheduleByLoanID", ctx, int64(5)).Return(pending.Schedule, nil)
	repo.On("GetPaymentsByLoanID", ctx, int64(5)).Return([]LoanPayment{}, nil)
	repo.On("UpdateLoanStatus", ctx, mock.AnythingOfType("*loan.Loan")).Return(nil)

	approved, err := svc.ApproveLoan(ctx, 5, "manager")

	require.NoError(t, err)
	assert.Equal(t, StatusActive, approved.Status)
	assert.Equal(t, "manager", approved.ApprovedBy)
	repo.AssertExpectations(t)
}

func TestRejectLoanTwiceFails(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	cancelled := newPendingLoan(t)
	cancelled.ID = 5
	cancelled.Status = StatusCancelled

	repo.On("GetLoanByID", ctx, int64(5)).Return(cancelled, nil)
	repo.On("GetScheduleByLoanID", ctx, int64(5)).Return(cancelled.Schedule, nil)
	repo.On("GetPaymentsByLoanID", ctx, int64(5)).Return([]LoanPayment{}, nil)

	_, err := svc.RejectLoan(ctx, 5)

	assert.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)
	repo.AssertNotCalled(t, "UpdateLoanStatus", mock.Anything, mock.Anything)
}

func TestMakePaymentHappyPath(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	active := newActiveLoan(t)

	repo.On("BeginTx", ctx).Return(nil, nil)
	repo.On("GetLoanForUpdate", ctx, mock.Anything, int64(1)).Return(active, nil)
	repo.On("UpdateScheduleInTx", ctx, mock.Anything, int64(1), mock.Anything).Return(nil)
	repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.AnythingOfType("*loan.LoanPayment")).Return(nil)
	repo.On("UpdateLoanInTx", ctx, mock.Anything, active).Return(nil)
	repo.On("CommitTx", ctx, mock.Anything).Return(nil)

	payment, err := svc.MakePayment(ctx, 1, active.MonthlyPayment, MethodCash, "", false)

	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.InDelta(t, active.MonthlyPayment, payment.Amount, 1e-9)
	assert.Equal(t, EntryStatusPaid, active.Schedule[0].Status)
	repo.AssertExpectations(t)
}

func TestMakePaymentBelowMinimumRejected(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	active := newActiveLoan(t)

	repo.On("BeginTx", ctx).Return(nil, nil)
	repo.On("GetLoanForUpdate", ctx, mock.Anything, int64(1)).Return(active, nil)
	repo.On("RollbackTx", ctx, mock.Anything).Return(nil)

	_, err := svc.MakePayment(ctx, 1, active.MinimumPayment-1, MethodCash, "", true)

	assert.ErrorIs(t, err, apperrors.ErrBelowMinimumPayment)
	repo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
}

func TestMakePaymentWithoutMinimumFlagAcceptsSmallAmounts(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	active := newActiveLoan(t)

	repo.On("BeginTx", ctx).Return(nil, nil)
	repo.On("GetLoanForUpdate", ctx, mock.Anything, int64(1)).Return(active, nil)
	repo.On("UpdateScheduleInTx", ctx, mock.Anything, int64(1), mock.Anything).Return(nil)
	repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateLoanInTx", ctx, mock.Anything, active).Return(nil)
	repo.On("CommitTx", ctx, mock.Anything).Return(nil)

	payment, err := svc.MakePayment(ctx, 1, 10, MethodCash, "", false)

	require.NoError(t, err)
	assert.InDelta(t, 10.0, payment.Amount, 1e-9)
}

func TestMakePaymentPayoffReleasesCredit(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	active := newActiveLoan(t)
	active.CustomerID = 7

	repo.On("BeginTx", ctx).Return(nil, nil)
	repo.On("GetLoanForUpdate", ctx, mock.Anything, int64(1)).Return(active, nil)
	repo.On("UpdateScheduleInTx", ctx, mock.Anything, int64(1), mock.Anything).Return(nil)
	repo.On("InsertPaymentInTx", ctx, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateLoanInTx", ctx, mock.Anything, active).Return(nil)
	repo.On("CommitTx", ctx, mock.Anything).Return(nil)
	cs.On("ApplyLoanCompletion", ctx, int64(7), active.Principal, ScoreRewardOnCompletion).
		Return(&customer.Customer{CustomerID: 7}, nil)

	_, err := svc.MakePayment(ctx, 1, active.RemainingBalance, MethodTransfer, "payoff", false)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, active.Status)
	cs.AssertExpectations(t)
}

func TestMakePaymentLoanNotFound(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	repo.On("BeginTx", ctx).Return(nil, nil)
	repo.On("GetLoanForUpdate", ctx, mock.Anything, int64(404)).Return(nil, apperrors.ErrNotFound)
	repo.On("RollbackTx", ctx, mock.Anything).Return(nil)

	_, err := svc.MakePayment(ctx, 404, 100, MethodCash, "", false)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOutstandingIncludesLateFees(t *testing.T) {
	repo := new(MockRepository)
	cs := new(MockCustomerService)
	svc := newServiceUnderTest(repo, cs)
	ctx := context.Background()

	l := newActiveLoan(t)
	l.RemainingBalance = 5000
	l.LateFees = 226.94

	repo.On("GetLoanByID", ctx, int64(1)).Return(l, nil)

	outstanding, err := svc.GetOutstanding(ctx, 1)

	require.NoError(t, err)
	assert.InDelta(t, 5226.94, outstanding, 1e-9)
}
