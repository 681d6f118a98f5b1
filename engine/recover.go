package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Recover reloads accounts, orders, positions and the secondary indices
// from the database on startup, the way execution.Reconciler's position
// recovery validated persisted state before a restart resumed it. The
// engine holds no state of its own beyond in-flight commands (which
// cannot survive a restart regardless), so Recover does not rebuild a
// cache; it runs the bulk load paths and the working-orders and
// open-positions indices (not the per-strategy indices or strategy
// state), surfaces any failure before Run starts, and logs what is being resumed so in-flight work from a
// previous session is visible to an operator.
func (e *Engine) Recover(ctx context.Context) error {
	accounts, err := e.db.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover accounts: %w", err)
	}

	orders, err := e.db.LoadOrders(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover orders: %w", err)
	}

	positions, err := e.db.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover positions: %w", err)
	}

	working, err := e.db.WorkingOrders(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover working orders index: %w", err)
	}

	open, err := e.db.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("engine: recover open positions index: %w", err)
	}

	log.Info().
		Int("accounts", len(accounts)).
		Int("orders", len(orders)).
		Int("positions", len(positions)).
		Msg("recovered persisted execution state")

	if len(working) > 0 {
		log.Warn().Int("count", len(working)).Msg("found working orders from previous session")
	}
	if len(open) > 0 {
		log.Warn().Int("count", len(open)).Msg("found open positions from previous session")
	}

	return nil
}
