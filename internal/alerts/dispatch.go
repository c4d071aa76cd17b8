package alerts

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// Messenger delivers a rendered alert to a chat, either as a plain
// message or as a photo with the alert as caption.
type Messenger interface {
	SendAlert(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	SendAlertPhoto(ctx context.Context, chatID int64, imageURL, caption string, keyboard tgbotapi.InlineKeyboardMarkup) error
}

// Dispatcher fans qualifying buy events out to every chat tracking the
// token. Each chat applies its own threshold and customization; one
// failed delivery never blocks the others.
type Dispatcher struct {
	registry  *registry.Registry
	formatter *Formatter
	messenger Messenger
	history   *History
}

func NewDispatcher(reg *registry.Registry, formatter *Formatter, messenger Messenger, history *History) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		formatter: formatter,
		messenger: messenger,
		history:   history,
	}
}

// HandleEvent filters and delivers one buy event. It returns the number
// of chats that received an alert.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev chains.Event) int {
	trackers := d.registry.FindTrackers(ev.Chain, ev.TokenAddress)
	if len(trackers) == 0 {
		return 0
	}

	delivered := 0
	for _, tok := range trackers {
		if !ShouldAlert(tok, ev.UsdValue) {
			log.LogDebug("Buy below chat threshold, skipping",
				zap.Int64("chatID", tok.ChatID),
				zap.String("token", tok.Symbol),
				zap.String("usd", ev.UsdValue.String()),
				zap.String("threshold", tok.MinUsdThreshold.String()))
			continue
		}

		text, keyboard := d.formatter.Render(tok, ev)

		var err error
		if tok.Customization != nil && tok.Customization.ImageURL != "" {
			err = d.messenger.SendAlertPhoto(ctx, tok.ChatID, tok.Customization.ImageURL, text, keyboard)
		} else {
			err = d.messenger.SendAlert(ctx, tok.ChatID, text, keyboard)
		}
		if err != nil {
			log.LogError("Failed to deliver alert",
				zap.Int64("chatID", tok.ChatID),
				zap.String("token", tok.Symbol),
				zap.Error(err))
			continue
		}

		delivered++
		if d.history != nil {
			d.history.Add(AlertRecord{
				Timestamp:    time.Now().UTC(),
				Chain:        ev.Chain,
				Token:        ev.TokenAddress,
				Symbol:       tok.Symbol,
				UsdValue:     ev.UsdValue,
				ChatID:       tok.ChatID,
				TxHash:       ev.TxHash,
				RenderedText: text,
			})
		}
	}

	if delivered > 0 {
		log.LogSuccess("Alert delivered",
			zap.String("chain", string(ev.Chain)),
			zap.String("token", ev.TokenAddress),
			zap.Int("chats", delivered))
	}
	return delivered
}
