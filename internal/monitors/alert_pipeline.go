package monitors

import (
	"context"

	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/alerts"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
)

// RunAlertPipeline consumes buy events from a chain source and hands
// them to the dispatcher until ctx is cancelled or the source closes.
func RunAlertPipeline(ctx context.Context, source chains.Source, dispatcher *alerts.Dispatcher) {
	log.LogInfo("Starting alert pipeline")

	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Alert pipeline stopped")
			return
		case ev, ok := <-source.Events():
			if !ok {
				log.LogWarn("Event source closed, alert pipeline stopped")
				return
			}
			log.LogDebug("Buy event received",
				zap.String("chain", string(ev.Chain)),
				zap.String("token", ev.TokenAddress),
				zap.String("usd", ev.UsdValue.String()))
			dispatcher.HandleEvent(ctx, ev)
		}
	}
}
