package customer

import (
	"testing"

	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCreditValidatesWithoutConsuming(t *testing.T) {
	c := NewCustomer("Marta Reyes", 1000, 700)
	c.CurrentCredit = 300

	require.NoError(t, c.ReserveCredit(700))
	assert.InDelta(t, 300.0, c.CurrentCredit, 1e-9, "reservation must not consume the line")

	err := c.ReserveCredit(700.01)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCredit)

	err = c.ReserveCredit(0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = c.ReserveCredit(-10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestConsumeAndReleaseCredit(t *testing.T) {
	c := NewCustomer("Marta Reyes", 1000, 700)

	c.ConsumeCredit(400)
	assert.InDelta(t, 400.0, c.CurrentCredit, 1e-9)
	assert.InDelta(t, 600.0, c.AvailableCredit(), 1e-9)

	c.ConsumeCredit(-50)
	assert.InDelta(t, 400.0, c.CurrentCredit, 1e-9, "negative amounts are ignored")

	c.ReleaseCredit(150)
	assert.InDelta(t, 250.0, c.CurrentCredit, 1e-9)

	c.ReleaseCredit(1000)
	assert.InDelta(t, 0.0, c.CurrentCredit, 1e-9, "release clamps at zero")
}

func TestApplyLoanCompletionCapsScore(t *testing.T) {
	c := NewCustomer("Marta Reyes", 20000, 845)
	c.CurrentCredit = 500

	c.ApplyLoanCompletion(12000, 10)

	assert.InDelta(t, 0.0, c.CurrentCredit, 1e-9)
	assert.Equal(t, MaxCreditScore, c.CreditScore)
}

func TestDeactivateReactivate(t *testing.T) {
	c := NewCustomer("Marta Reyes", 1000, 700)
	require.True(t, c.Active)

	c.Deactivate()
	assert.False(t, c.Active)

	c.Reactivate()
	assert.True(t, c.Active)
}
