package window

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/model"
)

func price(t *testing.T, v float64) model.Price {
	t.Helper()
	p, err := model.NewPrice(decimal.NewFromFloat(v), 2)
	require.NoError(t, err)
	return p
}

func TestWindowTracksMinMaxOverSlidingWindow(t *testing.T) {
	// spec.md §8.6: L=60s, adds at t=0,20,40,70 with prices 100,98,102,99
	// -> after the last add, min=98 max=102 (t=0's 100 has aged out, but
	// t=20's 98 and t=40's 102 are both still within [10,70]).
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := New(60 * time.Second)

	require.NoError(t, w.Add(base, price(t, 100)))
	require.NoError(t, w.Add(base.Add(20*time.Second), price(t, 98)))
	require.NoError(t, w.Add(base.Add(40*time.Second), price(t, 102)))
	require.NoError(t, w.Add(base.Add(70*time.Second), price(t, 99)))

	min, ok := w.MinPrice()
	require.True(t, ok)
	assert.Equal(t, "98.00", min.String())

	max, ok := w.MaxPrice()
	require.True(t, ok)
	assert.Equal(t, "102.00", max.String())
}

func TestWindowRejectsNonUTC(t *testing.T) {
	w := New(time.Minute)
	local := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	err := w.Add(local, price(t, 100))
	assert.ErrorIs(t, err, model.ErrTimestampNotUTC)
}

func TestWindowResetClears(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := New(time.Minute)
	require.NoError(t, w.Add(base, price(t, 100)))
	w.Reset()

	_, ok := w.MinPrice()
	assert.False(t, ok)
	_, ok = w.MaxPrice()
	assert.False(t, ok)
}

func TestWindowMonotonicEviction(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := New(10 * time.Second)

	require.NoError(t, w.Add(base, price(t, 50)))
	require.NoError(t, w.Add(base.Add(5*time.Second), price(t, 40)))
	min, ok := w.MinPrice()
	require.True(t, ok)
	assert.Equal(t, "40.00", min.String()) // 50 evicted from the tail on insert of a smaller value

	require.NoError(t, w.Add(base.Add(16*time.Second), price(t, 45)))
	min, ok = w.MinPrice()
	require.True(t, ok)
	assert.Equal(t, "45.00", min.String()) // both earlier entries aged out of the 10s window
}
