// Package sqlstore is the persistent Execution Database implementation
// (spec.md §4.4), backed by gorm with a choice of Postgres or SQLite
// drivers - the same dual-driver setup the teacher's internal/database
// package uses, generalized from bot-specific tables to the execution
// core's Account/Order/Position/Strategy records. Each table is keyed by
// the entity's own id; records carry no trader id and are not
// partitioned by trader.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nova-trading/execengine/account"
	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
	"github.com/nova-trading/execengine/order"
	"github.com/nova-trading/execengine/position"
	"github.com/nova-trading/execengine/store"
)

// DefaultRetryAttempts and DefaultRetryBaseDelay implement spec.md
// §4.4's persistence failure model: bounded exponential backoff, 3
// attempts starting at 50ms, exhaustion surfaces
// ErrPersistenceUnavailable. New falls back to these when the caller
// passes a non-positive value for either.
const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 50 * time.Millisecond
)

// accountModel persists one Account snapshot. Balances are flattened to
// JSON since gorm has no native map column. The row is keyed by account
// id alone; no trader id is stored.
type accountModel struct {
	AccountID    string `gorm:"primaryKey"`
	BalancesJSON string
	UpdatedAt    time.Time
}

type orderModel struct {
	ClientOrderID  string `gorm:"primaryKey"`
	OrderID        string `gorm:"index"`
	StrategyID     string `gorm:"index"`
	Symbol         string
	Side           string
	Type           string
	QuantityValue  string
	QuantityScale  int32
	FilledValue    string
	FilledScale    int32
	HasAvgPrice    bool
	AvgPriceValue  string
	AvgPriceScale  int32
	PriceValue     string
	PriceScale     int32
	TimeInForce    string
	State          string
	ExecutionIDs   string // JSON array
	InitID         string
	TsInitUnixNano int64
	TsLastUnixNano int64
	UpdatedAt      time.Time
}

type positionModel struct {
	PositionID        string `gorm:"primaryKey"`
	StrategyID        string `gorm:"index"`
	Symbol            string
	Side              string
	QuantityValue     string
	QuantityScale     int32
	AvgOpenPriceValue string
	AvgOpenPriceScale int32
	RealizedPnLValue  string
	RealizedPnLScale  int32
	TsOpenedUnixNano  int64
	TsClosedUnixNano  int64
	UpdatedAt         time.Time
}

type strategyStateModel struct {
	StrategyID string `gorm:"primaryKey"`
	Key        string `gorm:"primaryKey"`
	Value      []byte
}

// Store is the gorm-backed persistent Database.
type Store struct {
	db             *gorm.DB
	retryAttempts  int
	retryBaseDelay time.Duration
}

var _ store.Database = (*Store)(nil)

// New opens a connection identified by dsn: a postgres://... URL selects
// the Postgres driver, anything else is treated as a SQLite file path.
// retryAttempts/retryBaseDelay configure the write-retry policy; pass 0
// for either to use DefaultRetryAttempts/DefaultRetryBaseDelay.
func New(dsn string, retryAttempts int, retryBaseDelay time.Duration) (*Store, error) {
	if retryAttempts <= 0 {
		retryAttempts = DefaultRetryAttempts
	}
	if retryBaseDelay <= 0 {
		retryBaseDelay = DefaultRetryBaseDelay
	}

	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("execution database connected (postgres)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("execution database initialized (sqlite)")
	}

	if err := db.AutoMigrate(&accountModel{}, &orderModel{}, &positionModel{}, &strategyStateModel{}); err != nil {
		return nil, err
	}

	return &Store{db: db, retryAttempts: retryAttempts, retryBaseDelay: retryBaseDelay}, nil
}

// withRetry runs fn up to s.retryAttempts times with exponential
// backoff, returning ErrPersistenceUnavailable once attempts are
// exhausted.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	delay := s.retryBaseDelay
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("execution database write failed, retrying")
	}
	return errors.Join(store.ErrPersistenceUnavailable, lastErr)
}

func (s *Store) LoadAccounts(ctx context.Context) (map[model.AccountID]account.Account, error) {
	var rows []accountModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.AccountID]account.Account, len(rows))
	for _, row := range rows {
		a, err := row.toAccount()
		if err != nil {
			return nil, err
		}
		out[a.AccountID] = a
	}
	return out, nil
}

func (s *Store) LoadOrders(ctx context.Context) (map[model.ClientOrderID]*order.Order, error) {
	var rows []orderModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.ClientOrderID]*order.Order, len(rows))
	for _, row := range rows {
		o, err := row.toOrder()
		if err != nil {
			return nil, err
		}
		out[o.ClientOrderID] = o
	}
	return out, nil
}

func (s *Store) LoadPositions(ctx context.Context) (map[model.PositionID]*position.Position, error) {
	var rows []positionModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.PositionID]*position.Position, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		out[p.PositionID] = p
	}
	return out, nil
}

func (s *Store) LoadAccount(ctx context.Context, id model.AccountID) (account.Account, bool, error) {
	var row accountModel
	err := s.db.WithContext(ctx).First(&row, "account_id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return account.Account{}, false, nil
	}
	if err != nil {
		return account.Account{}, false, err
	}
	a, err := row.toAccount()
	return a, true, err
}

func (s *Store) LoadOrder(ctx context.Context, id model.ClientOrderID) (*order.Order, bool, error) {
	var row orderModel
	err := s.db.WithContext(ctx).First(&row, "client_order_id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	o, err := row.toOrder()
	return o, true, err
}

func (s *Store) LoadPosition(ctx context.Context, id model.PositionID) (*position.Position, bool, error) {
	var row positionModel
	err := s.db.WithContext(ctx).First(&row, "position_id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p, err := row.toPosition()
	return p, true, err
}

func (s *Store) LoadStrategy(ctx context.Context, strategyID model.StrategyID) (map[string][]byte, error) {
	var rows []strategyStateModel
	if err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID.String()).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (s *Store) AddAccount(ctx context.Context, a account.Account) error {
	row, err := fromAccount(a)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Create(&row).Error
	})
}

func (s *Store) AddOrder(ctx context.Context, o *order.Order) error {
	row, err := fromOrder(o)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Create(&row).Error
	})
}

func (s *Store) AddPosition(ctx context.Context, p *position.Position) error {
	row, err := fromPosition(p)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Create(&row).Error
	})
}

func (s *Store) UpdateAccount(ctx context.Context, a account.Account) error {
	row, err := fromAccount(a)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Save(&row).Error
	})
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	row, err := fromOrder(o)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Save(&row).Error
	})
}

func (s *Store) UpdatePosition(ctx context.Context, p *position.Position) error {
	row, err := fromPosition(p)
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Save(&row).Error
	})
}

func (s *Store) UpdateStrategy(ctx context.Context, strategyID model.StrategyID, state map[string][]byte) error {
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("strategy_id = ?", strategyID.String()).Delete(&strategyStateModel{}).Error; err != nil {
				return err
			}
			for k, v := range state {
				row := strategyStateModel{StrategyID: strategyID.String(), Key: k, Value: v}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *Store) DeleteStrategy(ctx context.Context, strategyID model.StrategyID) error {
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("strategy_id = ?", strategyID.String()).Delete(&strategyStateModel{}).Error
	})
}

func (s *Store) OrdersByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*order.Order, error) {
	var rows []orderModel
	if err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID.String()).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toOrders(rows)
}

func (s *Store) PositionsByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*position.Position, error) {
	var rows []positionModel
	if err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID.String()).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPositions(rows)
}

func (s *Store) WorkingOrders(ctx context.Context) ([]*order.Order, error) {
	var rows []orderModel
	if err := s.db.WithContext(ctx).Where("state NOT IN ?", terminalOrderStates()).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toOrders(rows)
}

func (s *Store) OpenPositions(ctx context.Context) ([]*position.Position, error) {
	var rows []positionModel
	if err := s.db.WithContext(ctx).Where("side <> ?", string(model.PositionSideFlat)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPositions(rows)
}

func (s *Store) Flush(ctx context.Context) error {
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, m := range []any{&accountModel{}, &orderModel{}, &positionModel{}, &strategyStateModel{}} {
				if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func terminalOrderStates() []string {
	return []string{
		string(order.StateFilled),
		string(order.StateCancelled),
		string(order.StateExpired),
		string(order.StateRejected),
		string(order.StateDenied),
	}
}

func toOrders(rows []orderModel) ([]*order.Order, error) {
	out := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func toPositions(rows []positionModel) ([]*position.Position, error) {
	out := make([]*position.Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func fromAccount(a account.Account) (accountModel, error) {
	raw := make(map[string]balanceJSON, len(a.Balances))
	for currency, qty := range a.Balances {
		raw[currency] = balanceJSON{Value: qty.Decimal().String(), Scale: qty.Scale()}
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return accountModel{}, err
	}
	return accountModel{
		AccountID:    a.AccountID.String(),
		BalancesJSON: string(blob),
		UpdatedAt:    a.TsLast.Time(),
	}, nil
}

type balanceJSON struct {
	Value string `json:"value"`
	Scale int32  `json:"scale"`
}

func (row accountModel) toAccount() (account.Account, error) {
	id, err := model.NewAccountID(row.AccountID)
	if err != nil {
		return account.Account{}, err
	}
	a := account.New(id)
	if row.BalancesJSON == "" {
		return a, nil
	}
	var raw map[string]balanceJSON
	if err := json.Unmarshal([]byte(row.BalancesJSON), &raw); err != nil {
		return account.Account{}, err
	}
	balances := make(map[string]model.Quantity, len(raw))
	for currency, b := range raw {
		dec, err := decimal.NewFromString(b.Value)
		if err != nil {
			return account.Account{}, err
		}
		qty, err := model.NewQuantity(dec, b.Scale)
		if err != nil {
			return account.Account{}, err
		}
		balances[currency] = qty
	}
	ts, err := model.NewTimestamp(row.UpdatedAt.UTC())
	if err != nil {
		return account.Account{}, err
	}
	return a.ApplyState(balances, ts), nil
}

func fromOrder(o *order.Order) (orderModel, error) {
	execIDs, err := json.Marshal(o.ExecutionIDs)
	if err != nil {
		return orderModel{}, err
	}
	row := orderModel{
		ClientOrderID:  o.ClientOrderID.String(),
		OrderID:        o.OrderID.String(),
		StrategyID:     o.StrategyID.String(),
		Symbol:         o.Symbol.String(),
		Side:           string(o.Side),
		Type:           string(o.Type),
		QuantityValue:  o.Quantity.Decimal().String(),
		QuantityScale:  o.Quantity.Scale(),
		FilledValue:    o.FilledQty.Decimal().String(),
		FilledScale:    o.FilledQty.Scale(),
		PriceValue:     o.Price.Decimal().String(),
		PriceScale:     o.Price.Scale(),
		TimeInForce:    string(o.TimeInForce),
		State:          string(o.State),
		ExecutionIDs:   string(execIDs),
		InitID:         o.InitID,
		TsInitUnixNano: o.TsInit.Time().UnixNano(),
		TsLastUnixNano: o.TsLast.Time().UnixNano(),
		UpdatedAt:      o.TsLast.Time(),
	}
	if o.AvgPrice != nil {
		row.HasAvgPrice = true
		row.AvgPriceValue = o.AvgPrice.Decimal().String()
		row.AvgPriceScale = o.AvgPrice.Scale()
	}
	return row, nil
}

func (row orderModel) toOrder() (*order.Order, error) {
	cid, err := model.NewClientOrderID(row.ClientOrderID)
	if err != nil {
		return nil, err
	}
	strat, err := model.NewStrategyID(row.StrategyID)
	if err != nil {
		return nil, err
	}
	sym, err := model.NewSymbol(row.Symbol)
	if err != nil {
		return nil, err
	}
	qtyDec, err := decimal.NewFromString(row.QuantityValue)
	if err != nil {
		return nil, err
	}
	qty, err := model.NewQuantity(qtyDec, row.QuantityScale)
	if err != nil {
		return nil, err
	}
	priceDec, err := decimal.NewFromString(row.PriceValue)
	if err != nil {
		return nil, err
	}
	price, err := model.NewPrice(priceDec, row.PriceScale)
	if err != nil {
		return nil, err
	}
	tsInit, err := model.NewTimestamp(time.Unix(0, row.TsInitUnixNano).UTC())
	if err != nil {
		return nil, err
	}

	o, err := order.NewFromInitialized(event.OrderInitialized{
		ClientOrderID: cid,
		StrategyID:    strat,
		Symbol:        sym,
		Side:          model.OrderSide(row.Side),
		Type:          model.OrderType(row.Type),
		Quantity:      qty,
		Price:         price,
		TimeInForce:   model.TimeInForce(row.TimeInForce),
		InitID:        row.InitID,
		TsInit:        tsInit,
	})
	if err != nil {
		return nil, err
	}

	if row.OrderID != "" {
		oid, err := model.NewOrderID(row.OrderID)
		if err != nil {
			return nil, err
		}
		o.OrderID = oid
	}
	o.State = order.State(row.State)

	filledDec, err := decimal.NewFromString(row.FilledValue)
	if err != nil {
		return nil, err
	}
	filled, err := model.NewQuantity(filledDec, row.FilledScale)
	if err != nil {
		return nil, err
	}
	o.FilledQty = filled

	if row.HasAvgPrice {
		avgDec, err := decimal.NewFromString(row.AvgPriceValue)
		if err != nil {
			return nil, err
		}
		avg, err := model.NewPrice(avgDec, row.AvgPriceScale)
		if err != nil {
			return nil, err
		}
		o.AvgPrice = &avg
	}

	var execIDs []string
	if row.ExecutionIDs != "" {
		if err := json.Unmarshal([]byte(row.ExecutionIDs), &execIDs); err != nil {
			return nil, err
		}
	}
	o.ExecutionIDs = execIDs
	o.RestoreExecutionIndex(execIDs)

	tsLast, err := model.NewTimestamp(time.Unix(0, row.TsLastUnixNano).UTC())
	if err != nil {
		return nil, err
	}
	o.TsLast = tsLast

	return o, nil
}

func fromPosition(p *position.Position) (positionModel, error) {
	return positionModel{
		PositionID:        p.PositionID.String(),
		StrategyID:        p.StrategyID.String(),
		Symbol:            p.Symbol.String(),
		Side:              string(p.Side),
		QuantityValue:     p.Quantity.Decimal().String(),
		QuantityScale:     p.Quantity.Scale(),
		AvgOpenPriceValue: p.AvgOpenPrice.Decimal().String(),
		AvgOpenPriceScale: p.AvgOpenPrice.Scale(),
		RealizedPnLValue:  p.RealizedPnL.Decimal().String(),
		RealizedPnLScale:  p.RealizedPnL.Scale(),
		TsOpenedUnixNano:  p.TsOpened.Time().UnixNano(),
		TsClosedUnixNano:  closedUnixNano(p.TsClosed),
		UpdatedAt:         p.TsOpened.Time(),
	}, nil
}

func closedUnixNano(ts model.Timestamp) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.Time().UnixNano()
}

func (row positionModel) toPosition() (*position.Position, error) {
	pid, err := model.NewPositionID(row.PositionID)
	if err != nil {
		return nil, err
	}
	strat, err := model.NewStrategyID(row.StrategyID)
	if err != nil {
		return nil, err
	}
	sym, err := model.NewSymbol(row.Symbol)
	if err != nil {
		return nil, err
	}
	qtyDec, err := decimal.NewFromString(row.QuantityValue)
	if err != nil {
		return nil, err
	}
	qty, err := model.NewQuantity(qtyDec, row.QuantityScale)
	if err != nil {
		return nil, err
	}
	avgDec, err := decimal.NewFromString(row.AvgOpenPriceValue)
	if err != nil {
		return nil, err
	}
	avg, err := model.NewPrice(avgDec, row.AvgOpenPriceScale)
	if err != nil {
		return nil, err
	}
	tsOpened, err := model.NewTimestamp(time.Unix(0, row.TsOpenedUnixNano).UTC())
	if err != nil {
		return nil, err
	}

	side := model.OrderSideBuy
	if model.PositionSide(row.Side) == model.PositionSideShort {
		side = model.OrderSideSell
	}
	p := position.New(pid, strat, sym, side, qty, avg, tsOpened)
	p.Side = model.PositionSide(row.Side)

	realizedDec, err := decimal.NewFromString(row.RealizedPnLValue)
	if err != nil {
		return nil, err
	}
	p.RealizedPnL = model.NewMoney(realizedDec, row.RealizedPnLScale)

	if row.TsClosedUnixNano != 0 {
		tsClosed, err := model.NewTimestamp(time.Unix(0, row.TsClosedUnixNano).UTC())
		if err != nil {
			return nil, err
		}
		p.TsClosed = tsClosed
	}

	return &p, nil
}
