// Package notify provides a Telegram-backed strategy subscriber
// (spec.md §6 "strategy subscriber contract"), repurposing the teacher's
// bot/telegram.go notification idiom from trade-open/close alerts to
// execution-engine events: rejections, cancellations, expiries and
// fills get pushed to an ops chat as they're applied.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/nova-trading/execengine/engine"
	"github.com/nova-trading/execengine/event"
)

// TelegramSubscriber forwards a subset of engine events to a Telegram
// chat. It implements engine.Subscriber; OnEvent must never block the
// engine thread, so every send happens on its own goroutine.
type TelegramSubscriber struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

var _ engine.Subscriber = (*TelegramSubscriber)(nil)

// New creates a TelegramSubscriber authenticated with token, posting to
// chatID.
func New(token string, chatID int64) (*TelegramSubscriber, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram ops notifier initialized")
	return &TelegramSubscriber{api: api, chatID: chatID}, nil
}

// OnEvent renders the events an operator cares about and posts them
// asynchronously; everything else is ignored.
func (t *TelegramSubscriber) OnEvent(ev event.Envelope) {
	text, ok := render(ev)
	if !ok {
		return
	}
	go t.send(text)
}

func (t *TelegramSubscriber) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send telegram notification")
	}
}

func render(ev event.Envelope) (string, bool) {
	switch p := ev.Payload.(type) {
	case event.OrderRejected:
		return fmt.Sprintf("❌ order %s rejected: %s", p.ClientOrderID, p.Reason), true
	case event.OrderCancelled:
		return fmt.Sprintf("\U0001F6AB order %s cancelled", p.ClientOrderID), true
	case event.OrderExpired:
		return fmt.Sprintf("⌛ order %s expired", p.ClientOrderID), true
	case event.OrderFilled:
		return fmt.Sprintf("✅ %s filled %s @ %s on %s", p.ClientOrderID, p.FillQuantity, p.FillPrice, p.Symbol), true
	case event.OrderCommandTimeout:
		return fmt.Sprintf("⏰ command %s timed out for order %s", p.Command, p.ClientOrderID), true
	default:
		return "", false
	}
}
