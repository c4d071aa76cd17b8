package alerts

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// FormatterConfig carries the presentation knobs for rendered alerts.
type FormatterConfig struct {
	HighImpactPercent   float64
	MediumImpactPercent float64
	PoweredByLabel      string
	PoweredByURL        string
	BoostURL            string
}

// Formatter renders buy events into Telegram HTML messages with an
// inline button row, one message per tracking chat.
type Formatter struct {
	cfg FormatterConfig
}

func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.HighImpactPercent <= 0 {
		cfg.HighImpactPercent = 10.0
	}
	if cfg.MediumImpactPercent <= 0 {
		cfg.MediumImpactPercent = 5.0
	}
	if cfg.PoweredByLabel == "" {
		cfg.PoweredByLabel = "tickertrending.com"
	}
	if cfg.PoweredByURL == "" {
		cfg.PoweredByURL = "https://tickertrending.com"
	}
	return &Formatter{cfg: cfg}
}

// PoweredByHTML renders the branding footer used on alerts and /help.
func (f *Formatter) PoweredByHTML() string {
	return fmt.Sprintf("⚡ Powered by <a href=\"%s\">%s</a>", f.cfg.PoweredByURL, f.cfg.PoweredByLabel)
}

func nativeCurrency(chain registry.Chain) string {
	switch chain {
	case registry.ChainEthereum:
		return "ETH"
	case registry.ChainBSC:
		return "BNB"
	case registry.ChainSolana:
		return "SOL"
	}
	return ""
}

// ChartURL links the token's dexscreener pair page.
func ChartURL(chain registry.Chain, address string) string {
	slug := string(chain)
	if chain == registry.ChainSolana {
		slug = "solana"
	}
	return fmt.Sprintf("https://dexscreener.com/%s/%s", slug, address)
}

// ExplorerTxURL links the transaction on the chain's block explorer.
func ExplorerTxURL(chain registry.Chain, txHash string) string {
	switch chain {
	case registry.ChainEthereum:
		return "https://etherscan.io/tx/" + txHash
	case registry.ChainBSC:
		return "https://bscscan.com/tx/" + txHash
	case registry.ChainSolana:
		return "https://solscan.io/tx/" + txHash
	}
	return ""
}

// SwapURL links the dominant DEX swap page for the token.
func SwapURL(chain registry.Chain, address string) string {
	switch chain {
	case registry.ChainEthereum:
		return "https://app.uniswap.org/#/swap?outputCurrency=" + address
	case registry.ChainBSC:
		return "https://pancakeswap.finance/swap?outputCurrency=" + address
	case registry.ChainSolana:
		return "https://raydium.io/swap/?outputMint=" + address
	}
	return ""
}

// impactLabel classifies a price impact percentage. Values at or below
// zero mean the source could not estimate the impact.
func (f *Formatter) impactLabel(percent float64) string {
	switch {
	case percent > f.cfg.HighImpactPercent:
		return "🔴 High"
	case percent > f.cfg.MediumImpactPercent:
		return "🟠 Medium"
	default:
		return "🟢 Low"
	}
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// formatUSD renders a USD amount with thousands separators, two decimal
// places.
func formatUSD(v decimal.Decimal) string {
	s := v.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart := s[:len(s)-3]
	fracPart := s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

func linkOrPlaceholder(label, url string) string {
	if url == "" {
		url = "#"
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, url, label)
}

// Render builds the alert text and button row for one tracking chat.
func (f *Formatter) Render(tok registry.TrackedToken, ev chains.Event) (string, tgbotapi.InlineKeyboardMarkup) {
	emojis := tok.Customization.AlertEmojis()
	symbol := escapeHTML(strings.ToUpper(tok.Symbol))
	name := escapeHTML(tok.Name)
	native := nativeCurrency(ev.Chain)

	chartURL := ChartURL(ev.Chain, ev.TokenAddress)
	txURL := ExplorerTxURL(ev.Chain, ev.TxHash)
	swapURL := SwapURL(ev.Chain, ev.TokenAddress)

	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s TRENDING BUY ALERT</b> %s\n\n", emojis, symbol, emojis)
	fmt.Fprintf(&b, "💎 <b><a href=\"%s\">%s</a></b>\n", chartURL, name)
	fmt.Fprintf(&b, "📜 <code>%s</code>\n\n", ev.TokenAddress)

	if !ev.BuyerAmount.IsZero() {
		fmt.Fprintf(&b, "💰 Amount: %s %s (~$%s)\n", ev.BuyerAmount.String(), symbol, formatUSD(ev.UsdValue))
	} else {
		fmt.Fprintf(&b, "💰 Amount: ~$%s\n", formatUSD(ev.UsdValue))
	}
	if !ev.QuoteSpent.IsZero() && native != "" {
		fmt.Fprintf(&b, "💵 Spent: %s %s\n", ev.QuoteSpent.String(), native)
	}
	if ev.PriceImpactPercent > 0 {
		fmt.Fprintf(&b, "📊 Price Impact: %s (%.2f%%)\n", f.impactLabel(ev.PriceImpactPercent), ev.PriceImpactPercent)
	}
	if ev.DexName != "" {
		fmt.Fprintf(&b, "🏦 DEX: %s\n", escapeHTML(ev.DexName))
	}

	var tg, web, tw string
	if tok.Customization != nil {
		tg = tok.Customization.Telegram
		web = tok.Customization.Website
		tw = tok.Customization.Twitter
	}
	fmt.Fprintf(&b, "\n🔗 %s | %s | %s\n",
		linkOrPlaceholder("Telegram", tg),
		linkOrPlaceholder("Website", web),
		linkOrPlaceholder("Twitter", tw))

	if txURL != "" {
		fmt.Fprintf(&b, "🧾 <a href=\"%s\">Transaction</a>\n", txURL)
	}

	b.WriteString("\n" + f.PoweredByHTML())

	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonURL("📈 Chart", chartURL),
	}
	if txURL != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("🧾 Transaction", txURL))
	}
	secondRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonURL("💱 Swap", swapURL),
	}
	if f.cfg.BoostURL != "" {
		secondRow = append(secondRow, tgbotapi.NewInlineKeyboardButtonURL("🚀 Boost", f.cfg.BoostURL))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(row, secondRow)
	return b.String(), keyboard
}

// RenderExample builds a sample alert so chats can preview their
// customization without waiting for a real buy.
func (f *Formatter) RenderExample(tok registry.TrackedToken) (string, tgbotapi.InlineKeyboardMarkup) {
	ev := chains.Event{
		Chain:              tok.Chain,
		TokenAddress:       tok.Address,
		TxHash:             exampleTxHash(tok.Chain),
		UsdValue:           decimal.NewFromInt(12500),
		PriceImpactPercent: 2.4,
		BuyerAmount:        decimal.NewFromInt(50000),
		QuoteSpent:         decimal.NewFromFloat(3.2),
		DexName:            exampleDexName(tok.Chain),
	}
	return f.Render(tok, ev)
}

func exampleTxHash(chain registry.Chain) string {
	if chain == registry.ChainSolana {
		return "1111111111111111111111111111111111111111111111111111111111111111"
	}
	return "0x" + strings.Repeat("ab", 32)
}

func exampleDexName(chain registry.Chain) string {
	switch chain {
	case registry.ChainEthereum:
		return "Uniswap"
	case registry.ChainBSC:
		return "PancakeSwap"
	case registry.ChainSolana:
		return "Raydium"
	}
	return ""
}
