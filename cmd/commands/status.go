package commands

// Command to check chain connectivity without starting the bot

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/config"
	logging "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every configured chain and report connectivity",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connectors := buildConnectors(cfg)
	if len(connectors) == 0 {
		return fmt.Errorf("no chain has RPC endpoints configured")
	}
	defer closeConnectors(connectors)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	unreachable := 0
	for _, chain := range []registry.Chain{registry.ChainEthereum, registry.ChainBSC, registry.ChainSolana} {
		conn, ok := connectors[chain]
		if !ok {
			continue
		}

		if !conn.IsConnected(ctx) {
			logging.LogError("Chain is unreachable", zap.String("chain", string(chain)))
			unreachable++
			continue
		}

		gas, err := conn.GetGasPrice(ctx)
		if err != nil {
			logging.LogWarn("Chain is connected but gas price lookup failed",
				zap.String("chain", string(chain)),
				zap.Error(err))
			continue
		}

		logging.LogSuccess("Chain is connected",
			zap.String("chain", string(chain)),
			zap.String("gasPrice", gas.StringFixed(2)),
			zap.String("unit", conn.GasUnit()))
	}

	if unreachable > 0 {
		return fmt.Errorf("%d chain(s) unreachable", unreachable)
	}
	return nil
}
