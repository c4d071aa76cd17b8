package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration for the bot process.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Chains   ChainsConfig   `mapstructure:"chains"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	App      AppConfig      `mapstructure:"app"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// OwnerID pre-seeds the owner; 0 means the first /start claims it.
	OwnerID int64 `mapstructure:"owner_id"`
}

// ChainsConfig lists RPC endpoints per chain in priority order.
// The first endpoint that answers wins; the rest are fallbacks.
type ChainsConfig struct {
	EthereumRPCURLs []string `mapstructure:"ethereum_rpc_urls"`
	BSCRPCURLs      []string `mapstructure:"bsc_rpc_urls"`
	SolanaRPCURLs   []string `mapstructure:"solana_rpc_urls"`
	RequestTimeout  int      `mapstructure:"request_timeout"` // seconds, per attempt
	PollInterval    int      `mapstructure:"poll_interval"`   // seconds between buy monitor scans
}

// AlertsConfig holds presentation knobs for buy alerts.
// Breakpoints and branding are cosmetic and deliberately configurable.
type AlertsConfig struct {
	HistorySize         int     `mapstructure:"history_size"`
	HighImpactPercent   float64 `mapstructure:"high_impact_percent"`
	MediumImpactPercent float64 `mapstructure:"medium_impact_percent"`
	PoweredByLabel      string  `mapstructure:"powered_by_label"`
	PoweredByURL        string  `mapstructure:"powered_by_url"`
	BoostURL            string  `mapstructure:"boost_url"`
}

type AppConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoadConfig reads configuration from defaults, config.yaml, .env, the
// environment and flags, in that order of increasing priority.
func LoadConfig() (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // no error if the file is absent

	v.SetConfigType("env")
	v.SetConfigFile(".env")
	v.ReadInConfig()

	v.AutomaticEnv()

	setupEnvAliases(v)

	setupFlags(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Endpoint lists come as YAML lists or comma-separated env strings.
	config.Chains.EthereumRPCURLs = normalizeURLList(v.Get("chains.ethereum_rpc_urls"), config.Chains.EthereumRPCURLs)
	config.Chains.BSCRPCURLs = normalizeURLList(v.Get("chains.bsc_rpc_urls"), config.Chains.BSCRPCURLs)
	config.Chains.SolanaRPCURLs = normalizeURLList(v.Get("chains.solana_rpc_urls"), config.Chains.SolanaRPCURLs)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func normalizeURLList(raw interface{}, current []string) []string {
	switch val := raw.(type) {
	case string:
		if val == "" {
			return []string{}
		}
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	case []string:
		return val
	case []interface{}:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				result = append(result, strings.TrimSpace(str))
			}
		}
		return result
	}
	return current
}

func setupEnvAliases(v *viper.Viper) {
	// TELEGRAM_BOT_TOKEN -> telegram.bot_token
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.owner_id", "OWNER_ID")

	v.BindEnv("chains.ethereum_rpc_urls", "ETHEREUM_RPC_URLS")
	v.BindEnv("chains.bsc_rpc_urls", "BSC_RPC_URLS")
	v.BindEnv("chains.solana_rpc_urls", "SOLANA_RPC_URLS")
	v.BindEnv("chains.request_timeout", "CHAIN_REQUEST_TIMEOUT")
	v.BindEnv("chains.poll_interval", "CHAIN_POLL_INTERVAL")

	v.BindEnv("alerts.history_size", "ALERT_HISTORY_SIZE")
	v.BindEnv("alerts.high_impact_percent", "ALERT_HIGH_IMPACT_PERCENT")
	v.BindEnv("alerts.medium_impact_percent", "ALERT_MEDIUM_IMPACT_PERCENT")
	v.BindEnv("alerts.powered_by_label", "ALERT_POWERED_BY_LABEL")
	v.BindEnv("alerts.powered_by_url", "ALERT_POWERED_BY_URL")
	v.BindEnv("alerts.boost_url", "ALERT_BOOST_URL")

	v.BindEnv("app.data_dir", "APP_DATA_DIR")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.owner_id", 0)

	v.SetDefault("chains.ethereum_rpc_urls", []string{
		"https://eth.llamarpc.com",
		"https://rpc.ankr.com/eth",
	})
	v.SetDefault("chains.bsc_rpc_urls", []string{
		"https://bsc-dataseed.binance.org",
		"https://bsc-dataseed1.binance.org",
	})
	v.SetDefault("chains.solana_rpc_urls", []string{
		"https://api.mainnet-beta.solana.com",
	})
	v.SetDefault("chains.request_timeout", 15)
	v.SetDefault("chains.poll_interval", 12)

	v.SetDefault("alerts.history_size", 100)
	v.SetDefault("alerts.high_impact_percent", 10.0)
	v.SetDefault("alerts.medium_impact_percent", 5.0)
	v.SetDefault("alerts.powered_by_label", "tickertrending.com")
	v.SetDefault("alerts.powered_by_url", "https://tickertrending.com")
	v.SetDefault("alerts.boost_url", "https://tickertrending.com/boost")

	v.SetDefault("app.data_dir", "data")
}

func setupFlags(v *viper.Viper) {
	pflag.String("telegram.bot_token", "", "Telegram bot token (env: TELEGRAM_BOT_TOKEN)")
	pflag.Int64("telegram.owner_id", 0, "Pre-seeded owner user ID (env: OWNER_ID)")

	pflag.String("chains.ethereum_rpc_urls", "", "Comma-separated Ethereum RPC endpoints in priority order (env: ETHEREUM_RPC_URLS)")
	pflag.String("chains.bsc_rpc_urls", "", "Comma-separated BSC RPC endpoints in priority order (env: BSC_RPC_URLS)")
	pflag.String("chains.solana_rpc_urls", "", "Comma-separated Solana RPC endpoints in priority order (env: SOLANA_RPC_URLS)")
	pflag.Int("chains.request_timeout", 15, "Per-attempt RPC timeout in seconds (env: CHAIN_REQUEST_TIMEOUT)")
	pflag.Int("chains.poll_interval", 12, "Seconds between buy monitor block scans (env: CHAIN_POLL_INTERVAL)")

	pflag.Int("alerts.history_size", 100, "Number of alert records kept for status display (env: ALERT_HISTORY_SIZE)")
	pflag.Float64("alerts.high_impact_percent", 10.0, "Price impact above this is labelled High (env: ALERT_HIGH_IMPACT_PERCENT)")
	pflag.Float64("alerts.medium_impact_percent", 5.0, "Price impact above this is labelled Medium (env: ALERT_MEDIUM_IMPACT_PERCENT)")
	pflag.String("alerts.powered_by_label", "tickertrending.com", "Footer label on alerts (env: ALERT_POWERED_BY_LABEL)")
	pflag.String("alerts.powered_by_url", "https://tickertrending.com", "Footer link on alerts (env: ALERT_POWERED_BY_URL)")
	pflag.String("alerts.boost_url", "https://tickertrending.com/boost", "Boost button link on alerts (env: ALERT_BOOST_URL)")

	pflag.String("app.data_dir", "data", "Directory for persisted registry and roster files (env: APP_DATA_DIR)")

	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)
}

func validateConfig(cfg *Config) error {
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}

	if len(cfg.Chains.EthereumRPCURLs) == 0 && len(cfg.Chains.BSCRPCURLs) == 0 && len(cfg.Chains.SolanaRPCURLs) == 0 {
		return fmt.Errorf("at least one chain needs an RPC endpoint list")
	}

	if cfg.Alerts.MediumImpactPercent > cfg.Alerts.HighImpactPercent {
		return fmt.Errorf("alerts.medium_impact_percent must not exceed alerts.high_impact_percent")
	}

	return nil
}
