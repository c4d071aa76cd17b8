package bot

// Package bot contains the Telegram command surface.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/alerts"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/auth"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// Handler wires the command surface to the registry, roster and chain
// connectors.
type Handler struct {
	bot        *tgbotapi.BotAPI
	messenger  *Messenger
	registry   *registry.Registry
	roster     *auth.Roster
	formatter  *alerts.Formatter
	history    *alerts.History
	connectors map[registry.Chain]chains.Connector
	startedAt  time.Time
}

func NewHandler(
	botAPI *tgbotapi.BotAPI,
	messenger *Messenger,
	reg *registry.Registry,
	roster *auth.Roster,
	formatter *alerts.Formatter,
	history *alerts.History,
	connectors map[registry.Chain]chains.Connector,
) *Handler {
	return &Handler{
		bot:        botAPI,
		messenger:  messenger,
		registry:   reg,
		roster:     roster,
		formatter:  formatter,
		history:    history,
		connectors: connectors,
		startedAt:  time.Now(),
	}
}

// RunCommandHandler consumes the update stream until ctx is cancelled.
func (h *Handler) RunCommandHandler(ctx context.Context) {
	if h.bot == nil {
		log.LogWarn("Bot is nil, command handler not started")
		return
	}

	log.LogInfo("Starting command handler", zap.String("botUsername", h.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		h.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}

		command := update.Message.Command()
		args := update.Message.CommandArguments()

		log.LogDebug("Received command",
			zap.String("command", command),
			zap.String("args", args),
			zap.Int64("chatID", update.Message.Chat.ID),
			zap.String("username", update.Message.From.UserName))

		switch command {
		case "start":
			h.handleStart(update.Message)
		case "track":
			h.handleTrack(update.Message, registry.ChainEthereum, args)
		case "trackbsc":
			h.handleTrack(update.Message, registry.ChainBSC, args)
		case "tracksol":
			h.handleTrack(update.Message, registry.ChainSolana, args)
		case "untrack":
			h.handleUntrack(update.Message, args)
		case "list":
			h.handleList(update.Message)
		case "customize":
			h.handleCustomize(update.Message, args)
		case "allow":
			h.handleAllow(update.Message, args)
		case "deny":
			h.handleDeny(update.Message, args)
		case "resetadmins":
			h.handleResetAdmins(update.Message)
		case "status":
			h.handleStatus(ctx, update.Message)
		case "balance":
			h.handleBalance(ctx, update.Message, args)
		case "examplealert":
			h.handleExampleAlert(ctx, update.Message, args)
		case "help":
			h.handleHelp(update.Message)
		}
	}

	log.LogInfo("Command handler stopped")
}

// reply sends a plain-text reply to the command message.
func (h *Handler) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		log.LogError("Failed to send reply", zap.Int64("chatID", message.Chat.ID), zap.Error(err))
	}
}

// replyHTML sends an HTML-formatted reply to the command message.
func (h *Handler) replyHTML(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		log.LogError("Failed to send reply", zap.Int64("chatID", message.Chat.ID), zap.Error(err))
	}
}

// authorize checks that the sender may run privileged commands, replying
// with the rejection itself when not.
func (h *Handler) authorize(message *tgbotapi.Message) bool {
	if h.roster.OwnerID() == 0 {
		h.reply(message, "No owner is set yet. Send /start to claim ownership first.")
		return false
	}
	if !h.roster.IsAuthorized(message.From.ID, message.From.UserName) {
		h.reply(message, "You are not authorized to use this command.")
		log.LogWarn("Unauthorized command attempt",
			zap.Int64("userID", message.From.ID),
			zap.String("username", message.From.UserName))
		return false
	}
	return true
}

// handleStart /start
func (h *Handler) handleStart(message *tgbotapi.Message) {
	h.registry.RegisterChat(message.Chat.ID)

	claimed := h.roster.InitializeOwner(message.From.ID)

	text := "👋 Welcome to Ticker Trending!\n\n" +
		"This chat is now registered for buy alerts. " +
		"Use /track, /trackbsc or /tracksol to follow a token, and /help for the full command list."
	if claimed {
		text += "\n\n👑 You are now the bot owner."
	}
	h.reply(message, text)

	log.LogInfo("Chat registered",
		zap.Int64("chatID", message.Chat.ID),
		zap.String("username", message.From.UserName),
		zap.Bool("ownerClaimed", claimed))
}

func trackUsage(chain registry.Chain) string {
	cmd := "/track"
	example := "/track 0x1f9840a85d5af5bf1d1762f925bdaddc4201f984 Uniswap UNI 500"
	switch chain {
	case registry.ChainBSC:
		cmd = "/trackbsc"
		example = "/trackbsc 0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82 PancakeSwap CAKE 500"
	case registry.ChainSolana:
		cmd = "/tracksol"
		example = "/tracksol EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v USDC USDC 500"
	}
	return fmt.Sprintf("Usage: %s {address} {name} {symbol} [minUsd]\n\nExample: %s", cmd, example)
}

// handleTrack /track, /trackbsc, /tracksol
func (h *Handler) handleTrack(message *tgbotapi.Message, chain registry.Chain, args string) {
	if !h.authorize(message) {
		return
	}

	parts := strings.Fields(args)
	if len(parts) < 3 {
		h.reply(message, trackUsage(chain))
		return
	}

	address := parts[0]
	name := parts[1]
	symbol := parts[2]

	threshold := decimal.Zero
	if len(parts) >= 4 {
		var err error
		threshold, err = decimal.NewFromString(parts[3])
		if err != nil {
			h.reply(message, fmt.Sprintf("Minimum USD value {%s} is not a number", parts[3]))
			return
		}
	}

	tok, err := h.registry.Track(message.Chat.ID, chain, address, name, symbol, threshold)
	switch {
	case errors.Is(err, registry.ErrInvalidAddress):
		h.reply(message, fmt.Sprintf("Address {%s} is not a valid %s address", address, chain))
		return
	case errors.Is(err, registry.ErrInvalidThreshold):
		h.reply(message, "Minimum USD value must not be negative")
		return
	case errors.Is(err, registry.ErrAlreadyTracked):
		h.reply(message, fmt.Sprintf("Token {%s} is already tracked in this chat. Use /untrack first to change it.", symbol))
		return
	case err != nil:
		log.LogError("Failed to track token",
			zap.String("chain", string(chain)),
			zap.String("address", address),
			zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	text := fmt.Sprintf("✅ Now tracking <b>%s</b> (%s) on %s\n📜 <code>%s</code>",
		tok.Name, strings.ToUpper(tok.Symbol), chain, tok.Address)
	if tok.MinUsdThreshold.IsPositive() {
		text += fmt.Sprintf("\n💰 Minimum buy: $%s", tok.MinUsdThreshold.String())
	} else {
		text += "\n💰 Minimum buy: none (all buys alert)"
	}
	h.replyHTML(message, text)

	log.LogSuccess("Token tracked via command",
		zap.String("chain", string(chain)),
		zap.String("address", tok.Address),
		zap.String("symbol", tok.Symbol),
		zap.Int64("chatID", message.Chat.ID),
		zap.String("username", message.From.UserName))
}

// handleUntrack /untrack {chain} {address}
func (h *Handler) handleUntrack(message *tgbotapi.Message, args string) {
	if !h.authorize(message) {
		return
	}

	parts := strings.Fields(args)
	if len(parts) < 2 {
		h.reply(message, "Usage: /untrack {chain} {address}\n\nExample: /untrack eth 0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
		return
	}

	chain, err := registry.ParseChain(parts[0])
	if err != nil {
		h.reply(message, fmt.Sprintf("Chain {%s} is not supported. Use eth, bsc or sol.", parts[0]))
		return
	}

	err = h.registry.Untrack(message.Chat.ID, chain, parts[1])
	switch {
	case errors.Is(err, registry.ErrInvalidAddress):
		h.reply(message, fmt.Sprintf("Address {%s} is not a valid %s address", parts[1], chain))
		return
	case errors.Is(err, registry.ErrNotTracked):
		h.reply(message, "That token is not tracked in this chat")
		return
	case err != nil:
		log.LogError("Failed to untrack token", zap.String("address", parts[1]), zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, "✅ Token removed from tracking")

	log.LogInfo("Token untracked via command",
		zap.String("chain", string(chain)),
		zap.String("address", parts[1]),
		zap.Int64("chatID", message.Chat.ID),
		zap.String("username", message.From.UserName))
}

// handleList /list
func (h *Handler) handleList(message *tgbotapi.Message) {
	tokens := h.registry.List(message.Chat.ID)
	if len(tokens) == 0 {
		h.reply(message, "No tokens are tracked in this chat yet. Use /track to add one.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Tracked tokens</b> (%d):\n\n", len(tokens))
	for i, tok := range tokens {
		fmt.Fprintf(&b, "%d. <b>%s</b> (%s) on %s\n", i+1, tok.Name, strings.ToUpper(tok.Symbol), tok.Chain)
		fmt.Fprintf(&b, "📜 <code>%s</code>\n", tok.Address)
		if tok.MinUsdThreshold.IsPositive() {
			fmt.Fprintf(&b, "💰 Min buy: $%s\n", tok.MinUsdThreshold.String())
		} else {
			b.WriteString("💰 Min buy: none\n")
		}
		if i < len(tokens)-1 {
			b.WriteString("\n")
		}
	}

	h.replyHTML(message, b.String())
}

// handleCustomize /customize {chain} {address} key=value ...
func (h *Handler) handleCustomize(message *tgbotapi.Message, args string) {
	if !h.authorize(message) {
		return
	}

	parts := strings.Fields(args)
	if len(parts) < 3 {
		h.reply(message, "Usage: /customize {chain} {address} key=value ...\n\n"+
			"Keys: emojis, image, telegram, website, twitter\n\n"+
			"Example: /customize eth 0x1f9840a85d5af5bf1d1762f925bdaddc4201f984 emojis=🦄🦄 telegram=https://t.me/uniswap")
		return
	}

	chain, err := registry.ParseChain(parts[0])
	if err != nil {
		h.reply(message, fmt.Sprintf("Chain {%s} is not supported. Use eth, bsc or sol.", parts[0]))
		return
	}

	tok, ok := h.registry.Get(message.Chat.ID, chain, parts[1])
	if !ok {
		h.reply(message, "That token is not tracked in this chat")
		return
	}

	custom := registry.Customization{}
	if tok.Customization != nil {
		custom = *tok.Customization
	}

	applied := 0
	for _, kv := range parts[2:] {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			h.reply(message, fmt.Sprintf("Setting {%s} must look like key=value", kv))
			return
		}
		switch strings.ToLower(key) {
		case "emojis":
			custom.Emojis = value
		case "image":
			custom.ImageURL = value
		case "telegram":
			custom.Telegram = value
		case "website":
			custom.Website = value
		case "twitter":
			custom.Twitter = value
		default:
			h.reply(message, fmt.Sprintf("Unknown setting {%s}. Keys: emojis, image, telegram, website, twitter", key))
			return
		}
		applied++
	}

	if err := h.registry.SetCustomization(message.Chat.ID, chain, parts[1], custom); err != nil {
		log.LogError("Failed to save customization", zap.String("address", parts[1]), zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, fmt.Sprintf("✅ Saved %d setting(s). Use /examplealert %s %s to preview.", applied, parts[0], parts[1]))

	log.LogInfo("Customization updated via command",
		zap.String("chain", string(chain)),
		zap.String("address", parts[1]),
		zap.Int("settings", applied),
		zap.Int64("chatID", message.Chat.ID))
}

// handleAllow /allow {id or @username}
func (h *Handler) handleAllow(message *tgbotapi.Message, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		h.reply(message, "Usage: /allow {user id or @username}\n\nExample: /allow @satoshi")
		return
	}

	err := h.roster.GrantAdmin(message.From.ID, target)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		h.reply(message, "Only the bot owner can manage admins")
		return
	case errors.Is(err, auth.ErrUserNotFound):
		h.reply(message, fmt.Sprintf("Target {%s} is not a valid user id or username", target))
		return
	case err != nil:
		log.LogError("Failed to grant admin", zap.String("target", target), zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, fmt.Sprintf("✅ %s can now manage tracked tokens", target))
}

// handleDeny /deny {id or @username}
func (h *Handler) handleDeny(message *tgbotapi.Message, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		h.reply(message, "Usage: /deny {user id or @username}\n\nExample: /deny @satoshi")
		return
	}

	err := h.roster.RevokeAdmin(message.From.ID, target)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		h.reply(message, "Only the bot owner can manage admins")
		return
	case errors.Is(err, auth.ErrNotAnAdmin):
		h.reply(message, fmt.Sprintf("%s is not an admin", target))
		return
	case errors.Is(err, auth.ErrUserNotFound):
		h.reply(message, fmt.Sprintf("Target {%s} is not a valid user id or username", target))
		return
	case err != nil:
		log.LogError("Failed to revoke admin", zap.String("target", target), zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, fmt.Sprintf("✅ %s can no longer manage tracked tokens", target))
}

// handleResetAdmins /resetadmins
func (h *Handler) handleResetAdmins(message *tgbotapi.Message) {
	err := h.roster.EmergencyResetAdmins(message.From.ID)
	if errors.Is(err, auth.ErrUnauthorized) {
		h.reply(message, "Only the bot owner can reset admins")
		return
	}
	if err != nil {
		log.LogError("Failed to reset admins", zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
		return
	}

	h.reply(message, "⚠️ All admins removed. Only the owner can manage tokens now.")
}

// handleStatus /status
func (h *Handler) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	uptime := time.Since(h.startedAt).Round(time.Second)

	var b strings.Builder
	b.WriteString("🤖 <b>Bot status</b>\n\n")
	fmt.Fprintf(&b, "⏱ Uptime: %s\n", uptime)
	fmt.Fprintf(&b, "💬 Chats: %d\n", h.registry.ChatCount())
	fmt.Fprintf(&b, "🪙 Tracked tokens: %d\n", h.registry.Count())
	fmt.Fprintf(&b, "👮 Admins: %d\n", h.roster.AdminCount())
	if h.history != nil {
		fmt.Fprintf(&b, "🔔 Alerts kept: %d\n", h.history.Len())
	}

	b.WriteString("\n<b>Chains</b>\n")
	for _, chain := range []registry.Chain{registry.ChainEthereum, registry.ChainBSC, registry.ChainSolana} {
		conn, ok := h.connectors[chain]
		if !ok {
			fmt.Fprintf(&b, "• %s: not configured\n", chain)
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		connected := conn.IsConnected(checkCtx)
		if !connected {
			cancel()
			fmt.Fprintf(&b, "• %s: 🔴 unreachable\n", chain)
			continue
		}

		gas, err := conn.GetGasPrice(checkCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(&b, "• %s: 🟢 connected\n", chain)
			continue
		}
		fmt.Fprintf(&b, "• %s: 🟢 connected, gas %s %s\n", chain, gas.StringFixed(2), conn.GasUnit())
	}

	h.replyHTML(message, b.String())
}

// handleBalance /balance {chain} {wallet}
// Shows the wallet's native balance plus its balances of the chat's
// tracked tokens on that chain.
func (h *Handler) handleBalance(ctx context.Context, message *tgbotapi.Message, args string) {
	if !h.authorize(message) {
		return
	}

	parts := strings.Fields(args)
	if len(parts) < 2 {
		h.reply(message, "Usage: /balance {chain} {wallet}\n\nExample: /balance eth 0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		return
	}

	chain, err := registry.ParseChain(parts[0])
	if err != nil {
		h.reply(message, fmt.Sprintf("Chain {%s} is not supported. Use eth, bsc or sol.", parts[0]))
		return
	}

	conn, ok := h.connectors[chain]
	if !ok {
		h.reply(message, fmt.Sprintf("No %s connection is configured", chain))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	balance, err := conn.GetBalance(callCtx, parts[1])
	if err != nil {
		h.replyBalanceError(message, err)
		return
	}

	unit := map[registry.Chain]string{
		registry.ChainEthereum: "ETH",
		registry.ChainBSC:      "BNB",
		registry.ChainSolana:   "SOL",
	}[chain]

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Balance: <code>%s %s</code>\n", balance.String(), unit)

	for _, tok := range h.registry.List(message.Chat.ID) {
		if tok.Chain != chain {
			continue
		}
		tokenBalance, err := conn.GetTokenBalance(callCtx, tok.Address, parts[1])
		if err != nil {
			log.LogWarn("Token balance lookup failed",
				zap.String("token", tok.Symbol),
				zap.Error(err))
			fmt.Fprintf(&b, "• %s: lookup failed\n", strings.ToUpper(tok.Symbol))
			continue
		}
		fmt.Fprintf(&b, "• %s: <code>%s</code>\n", strings.ToUpper(tok.Symbol), tokenBalance.String())
	}

	h.replyHTML(message, b.String())
}

func (h *Handler) replyBalanceError(message *tgbotapi.Message, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidAddress):
		h.reply(message, "That address is not valid for the chosen chain")
	case errors.Is(err, chains.ErrConnectionUnavailable):
		h.reply(message, "All RPC endpoints for that chain are unreachable right now")
	default:
		log.LogError("Balance lookup failed", zap.Error(err))
		h.reply(message, "An error occurred, please try again later")
	}
}

// handleExampleAlert /examplealert [chain address]
// Without arguments previews every tracked token in the chat.
func (h *Handler) handleExampleAlert(ctx context.Context, message *tgbotapi.Message, args string) {
	if !h.authorize(message) {
		return
	}

	var tokens []registry.TrackedToken

	parts := strings.Fields(args)
	if len(parts) >= 2 {
		chain, err := registry.ParseChain(parts[0])
		if err != nil {
			h.reply(message, fmt.Sprintf("Chain {%s} is not supported. Use eth, bsc or sol.", parts[0]))
			return
		}
		tok, ok := h.registry.Get(message.Chat.ID, chain, parts[1])
		if !ok {
			h.reply(message, "That token is not tracked in this chat")
			return
		}
		tokens = append(tokens, tok)
	} else {
		tokens = h.registry.List(message.Chat.ID)
		if len(tokens) == 0 {
			h.reply(message, "No tokens are tracked in this chat yet. Use /track to add one.")
			return
		}
	}

	for _, tok := range tokens {
		text, keyboard := h.formatter.RenderExample(tok)
		if err := h.messenger.SendAlert(ctx, message.Chat.ID, text, keyboard); err != nil {
			log.LogError("Failed to send example alert",
				zap.Int64("chatID", message.Chat.ID),
				zap.String("token", tok.Symbol),
				zap.Error(err))
			h.reply(message, "An error occurred, please try again later")
			return
		}
	}
}

// handleHelp /help
func (h *Handler) handleHelp(message *tgbotapi.Message) {
	helpText := "" +
		"Commands:\n" +
		"• <code>/start</code> - register this chat for alerts\n" +
		"• <code>/track {address} {name} {symbol} [minUsd]</code> - track an Ethereum token\n" +
		"• <code>/trackbsc {address} {name} {symbol} [minUsd]</code> - track a BSC token\n" +
		"• <code>/tracksol {address} {name} {symbol} [minUsd]</code> - track a Solana token\n" +
		"• <code>/untrack {chain} {address}</code> - stop tracking a token\n" +
		"• <code>/list</code> - show tracked tokens in this chat\n" +
		"• <code>/customize {chain} {address} key=value</code> - style this token's alerts\n" +
		"• <code>/examplealert</code> - preview alerts for tracked tokens\n" +
		"• <code>/balance {chain} {wallet}</code> - wallet + tracked token balances\n" +
		"• <code>/status</code> - bot and chain health\n" +
		"• <code>/allow {user}</code> - grant admin (owner only)\n" +
		"• <code>/deny {user}</code> - revoke admin (owner only)\n" +
		"• <code>/resetadmins</code> - remove all admins (owner only)\n" +
		"\n" +
		"Chains: eth, bsc, sol\n\n" +
		h.formatter.PoweredByHTML()

	h.replyHTML(message, helpText)

	log.LogInfo("Help message sent",
		zap.Int64("chatID", message.Chat.ID),
		zap.String("username", message.From.UserName))
}
