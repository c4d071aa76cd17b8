package monitors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// RunHealthMonitor periodically probes every configured chain and logs
// connectivity and gas price. A chain going unreachable shows up here
// before users notice missing alerts.
func RunHealthMonitor(ctx context.Context, connectors map[registry.Chain]chains.Connector, checkInterval time.Duration) {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}

	log.LogInfo("Starting health monitor",
		zap.Duration("checkInterval", checkInterval),
		zap.Int("chains", len(connectors)))

	checkAll(ctx, connectors)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Health monitor stopped")
			return
		case <-ticker.C:
			checkAll(ctx, connectors)
		}
	}
}

func checkAll(ctx context.Context, connectors map[registry.Chain]chains.Connector) {
	for chain, conn := range connectors {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)

		if !conn.IsConnected(checkCtx) {
			cancel()
			log.LogWarn("Chain is unreachable", zap.String("chain", string(chain)))
			continue
		}

		gas, err := conn.GetGasPrice(checkCtx)
		cancel()
		if err != nil {
			log.LogWarn("Chain is connected but gas price lookup failed",
				zap.String("chain", string(chain)),
				zap.Error(err))
			continue
		}

		log.LogDebug("Chain healthy",
			zap.String("chain", string(chain)),
			zap.String("gasPrice", gas.StringFixed(2)),
			zap.String("unit", conn.GasUnit()))
	}
}
