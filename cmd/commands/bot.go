package commands

// Command to run the full bot
// Loads configuration, restores persisted state and starts the command
// handler, alert pipeline and health monitor
// Implements graceful shutdown for proper termination

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/alerts"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/auth"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/bot"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/clients_api/dexscreener"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/config"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/fs"
	logging "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/monitors"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the full bot (commands + alert pipeline + health monitor)",
	Long:  `Run the complete bot: the Telegram command surface, the buy alert pipeline and the per-chain health monitor.`,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	store := fs.NewStore(cfg.App.DataDir)

	reg := registry.NewRegistry(store)
	if err := reg.Load(); err != nil {
		return fmt.Errorf("failed to load tracked tokens: %w", err)
	}

	roster := auth.NewRoster(store)
	if err := roster.Load(); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	if cfg.Telegram.OwnerID != 0 {
		roster.InitializeOwner(cfg.Telegram.OwnerID)
	}

	connectors := buildConnectors(cfg)
	if len(connectors) == 0 {
		return fmt.Errorf("no chain has RPC endpoints configured")
	}
	defer closeConnectors(connectors)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logging.LogError("Failed to initialize Telegram bot", zap.Error(err))
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	logging.LogInfo("Authorized on Telegram", zap.String("username", botAPI.Self.UserName))

	messenger := bot.NewMessenger(botAPI)
	formatter := alerts.NewFormatter(alerts.FormatterConfig{
		HighImpactPercent:   cfg.Alerts.HighImpactPercent,
		MediumImpactPercent: cfg.Alerts.MediumImpactPercent,
		PoweredByLabel:      cfg.Alerts.PoweredByLabel,
		PoweredByURL:        cfg.Alerts.PoweredByURL,
		BoostURL:            cfg.Alerts.BoostURL,
	})
	history := alerts.NewHistory(cfg.Alerts.HistorySize)
	dispatcher := alerts.NewDispatcher(reg, formatter, messenger, history)
	source := chains.NewChannelSource(256)

	handler := bot.NewHandler(botAPI, messenger, reg, roster, formatter, history, connectors)

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitors.RunAlertPipeline(ctx, source, dispatcher)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitors.RunHealthMonitor(ctx, connectors, 5*time.Minute)
	}()

	// One buy monitor per EVM chain. Solana has no Transfer-log
	// equivalent here; its events arrive through the shared source.
	market := dexscreener.NewClient()
	pollInterval := time.Duration(cfg.Chains.PollInterval) * time.Second
	for _, conn := range connectors {
		evm, ok := conn.(*chains.EVMConnector)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitors.RunBuyMonitor(ctx, evm, reg, market, source, pollInterval)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		handler.RunCommandHandler(ctx)
	}()

	logging.LogSuccess("Bot is running",
		zap.Int("chains", len(connectors)),
		zap.Int("trackedTokens", reg.Count()),
		zap.Int("chats", reg.ChatCount()))

	<-ctx.Done()
	logging.LogInfo("Shutdown signal received, gracefully stopping...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("All workers stopped gracefully")
	case <-time.After(10 * time.Second):
		logging.LogWarn("Timeout waiting for workers to stop, forcing shutdown")
	}

	return nil
}

// buildConnectors creates a connector for every chain that has at least
// one RPC endpoint configured.
func buildConnectors(cfg *config.Config) map[registry.Chain]chains.Connector {
	timeout := time.Duration(cfg.Chains.RequestTimeout) * time.Second
	connectors := make(map[registry.Chain]chains.Connector)

	if len(cfg.Chains.EthereumRPCURLs) > 0 {
		connectors[registry.ChainEthereum] = chains.NewEVMConnector(registry.ChainEthereum, cfg.Chains.EthereumRPCURLs, timeout)
	}
	if len(cfg.Chains.BSCRPCURLs) > 0 {
		connectors[registry.ChainBSC] = chains.NewEVMConnector(registry.ChainBSC, cfg.Chains.BSCRPCURLs, timeout)
	}
	if len(cfg.Chains.SolanaRPCURLs) > 0 {
		connectors[registry.ChainSolana] = chains.NewSolanaConnector(cfg.Chains.SolanaRPCURLs, timeout)
	}

	for chain := range connectors {
		logging.LogInfo("Chain configured", zap.String("chain", string(chain)))
	}
	return connectors
}

func closeConnectors(connectors map[registry.Chain]chains.Connector) {
	for _, conn := range connectors {
		if closer, ok := conn.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
