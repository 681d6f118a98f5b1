package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/model"
)

func ts(t *testing.T, offset time.Duration) model.Timestamp {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tm, err := model.NewTimestamp(base.Add(offset))
	require.NoError(t, err)
	return tm
}

func qty(t *testing.T, v int64, scale int32) model.Quantity {
	t.Helper()
	q, err := model.NewQuantity(decimal.NewFromInt(v), scale)
	require.NoError(t, err)
	return q
}

func price(t *testing.T, v float64, scale int32) model.Price {
	t.Helper()
	p, err := model.NewPrice(decimal.NewFromFloat(v), scale)
	require.NoError(t, err)
	return p
}

func newPosition(t *testing.T) Position {
	t.Helper()
	pid, err := model.NewPositionID("POS-1")
	require.NoError(t, err)
	strat, err := model.NewStrategyID("STRAT-1")
	require.NoError(t, err)
	sym, err := model.NewSymbol("BTC-USD")
	require.NoError(t, err)
	return New(pid, strat, sym, model.OrderSideBuy, qty(t, 100, 2), price(t, 10.00, 2), ts(t, 0))
}

func TestPositionOpensFromFlat(t *testing.T) {
	p := newPosition(t)
	assert.Equal(t, model.PositionSideLong, p.Side)
	assert.Equal(t, "100.00", p.Quantity.String())
	assert.Equal(t, "10.00", p.AvgOpenPrice.String())
	assert.True(t, p.RealizedPnL.IsZero())
}

func TestPositionAddsToSameSide(t *testing.T) {
	p := newPosition(t)
	next, err := p.ApplyFill(model.OrderSideBuy, qty(t, 100, 2), price(t, 11.00, 2), ts(t, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.PositionSideLong, next.Side)
	assert.Equal(t, "200.00", next.Quantity.String())
	assert.Equal(t, "10.50", next.AvgOpenPrice.String())
}

func TestPositionPartialCloseRealizesPnL(t *testing.T) {
	p := newPosition(t)
	next, err := p.ApplyFill(model.OrderSideSell, qty(t, 40, 2), price(t, 11.00, 2), ts(t, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.PositionSideLong, next.Side)
	assert.Equal(t, "60.00", next.Quantity.String())
	// (11.00 - 10.00) * 40 = 40.00
	assert.Equal(t, "40.00", next.RealizedPnL.String())
}

func TestPositionExactCloseReturnsToFlat(t *testing.T) {
	p := newPosition(t)
	next, err := p.ApplyFill(model.OrderSideSell, qty(t, 100, 2), price(t, 12.00, 2), ts(t, time.Minute))
	require.NoError(t, err)
	assert.True(t, next.IsFlat())
	assert.Equal(t, "200.00", next.RealizedPnL.String())
	assert.False(t, next.TsClosed.IsZero())
}

func TestPositionFlipOpensOppositeSide(t *testing.T) {
	p := newPosition(t)
	// Long 100@10.00, sell 150@11.00 -> Short 50@11.00, realized PnL 100.00
	next, err := p.ApplyFill(model.OrderSideSell, qty(t, 150, 2), price(t, 11.00, 2), ts(t, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.PositionSideShort, next.Side)
	assert.Equal(t, "50.00", next.Quantity.String())
	assert.Equal(t, "11.00", next.AvgOpenPrice.String())
	assert.Equal(t, "100.00", next.RealizedPnL.String())
	assert.Equal(t, ts(t, time.Minute).String(), next.TsOpened.String())
}

func TestPositionShortRealizesPnLOnPriceDrop(t *testing.T) {
	pid, _ := model.NewPositionID("POS-2")
	strat, _ := model.NewStrategyID("STRAT-1")
	sym, _ := model.NewSymbol("BTC-USD")
	p := New(pid, strat, sym, model.OrderSideSell, qty(t, 100, 2), price(t, 10.00, 2), ts(t, 0))

	next, err := p.ApplyFill(model.OrderSideBuy, qty(t, 100, 2), price(t, 9.00, 2), ts(t, time.Minute))
	require.NoError(t, err)
	assert.True(t, next.IsFlat())
	// short covers at a lower price: (10.00 - 9.00) * 100 = 100.00 gain
	assert.Equal(t, "100.00", next.RealizedPnL.String())
}
