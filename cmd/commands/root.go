package commands

// Root command for Cobra CLI
// Registers all subcommands (bot, status)

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tickertrendingbot",
	Short: "Ticker Trending - Telegram bot for on-chain buy alerts",
	Long: `Ticker Trending is a Go-based Telegram bot that posts buy alerts for
tracked tokens on Ethereum, BSC and Solana, with per-chat thresholds and
customizable alert styling.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(statusCmd)
}
