package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/model"
)

func qty(t *testing.T, v float64) model.Quantity {
	t.Helper()
	q, err := model.NewQuantity(decimal.NewFromFloat(v), 2)
	require.NoError(t, err)
	return q
}

func ts(t *testing.T, offset time.Duration) model.Timestamp {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out, err := model.NewTimestamp(base.Add(offset))
	require.NoError(t, err)
	return out
}

func TestNewAccountIsEmpty(t *testing.T) {
	id, err := model.NewAccountID("ACC-1")
	require.NoError(t, err)

	acc := New(id)

	assert.Equal(t, id, acc.AccountID)
	_, ok := acc.Balance("USD")
	assert.False(t, ok)
}

func TestApplyStateReplacesBalancesWholesale(t *testing.T) {
	id, err := model.NewAccountID("ACC-1")
	require.NoError(t, err)
	acc := New(id)

	acc = acc.ApplyState(map[string]model.Quantity{
		"USD": qty(t, 1000),
		"ETH": qty(t, 2.5),
	}, ts(t, 0))

	usd, ok := acc.Balance("USD")
	require.True(t, ok)
	assert.Equal(t, "1000.00", usd.String())

	eth, ok := acc.Balance("ETH")
	require.True(t, ok)
	assert.Equal(t, "2.50", eth.String())

	acc = acc.ApplyState(map[string]model.Quantity{
		"USD": qty(t, 500),
	}, ts(t, time.Minute))

	usd, ok = acc.Balance("USD")
	require.True(t, ok)
	assert.Equal(t, "500.00", usd.String())

	_, ok = acc.Balance("ETH")
	assert.False(t, ok, "ETH balance dropped by venue snapshot must not survive")
}

func TestApplyStateDoesNotMutateOriginal(t *testing.T) {
	id, err := model.NewAccountID("ACC-1")
	require.NoError(t, err)
	original := New(id).ApplyState(map[string]model.Quantity{"USD": qty(t, 100)}, ts(t, 0))

	updated := original.ApplyState(map[string]model.Quantity{"USD": qty(t, 200)}, ts(t, time.Minute))

	usd, ok := original.Balance("USD")
	require.True(t, ok)
	assert.Equal(t, "100.00", usd.String(), "original snapshot must remain untouched")

	usd, ok = updated.Balance("USD")
	require.True(t, ok)
	assert.Equal(t, "200.00", usd.String())
}
