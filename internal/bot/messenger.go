package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/retry"
)

// Messenger sends alert messages through the Telegram Bot API, pacing
// sends under the global ~30 msg/s bot limit and retrying on 429.
type Messenger struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewMessenger(bot *tgbotapi.BotAPI) *Messenger {
	return &Messenger{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
}

var sendRetry = retry.Options{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
	Retryable:  isRateLimitErr,
}

// SendAlert delivers one rendered alert to a chat as HTML with its
// button rows attached.
func (m *Messenger) SendAlert(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	return retry.Do(ctx, sendRetry, func() error {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		msg.ReplyMarkup = keyboard

		_, err := m.bot.Send(msg)
		return m.wrapRateLimit(chatID, err)
	})
}

// SendAlertPhoto delivers an alert as a photo with the rendered text as
// caption, with the same 429 retry discipline as SendAlert. Once the
// retries are spent the alert falls back to a plain message so it
// still lands.
func (m *Messenger) SendAlertPhoto(ctx context.Context, chatID int64, imageURL, caption string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	err := retry.Do(ctx, sendRetry, func() error {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = keyboard

		_, err := m.bot.Send(photo)
		return m.wrapRateLimit(chatID, err)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	log.LogWarn("Failed to send alert photo, falling back to text",
		zap.Int64("chatID", chatID),
		zap.String("imageURL", imageURL),
		zap.Error(err))
	return m.SendAlert(ctx, chatID, caption, keyboard)
}

// wrapRateLimit turns a Telegram 429 into a RateLimitedError carrying
// the server-suggested wait.
func (m *Messenger) wrapRateLimit(chatID int64, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		log.LogWarn("Telegram rate limit hit",
			zap.Int64("chatID", chatID),
			zap.Int("retryAfter", apiErr.RetryAfter))
		return &retry.RateLimitedError{
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	return err
}

func isRateLimitErr(err error) bool {
	var rl *retry.RateLimitedError
	return errors.As(err, &rl)
}
