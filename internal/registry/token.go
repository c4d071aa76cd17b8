package registry

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// Chain names a supported blockchain.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
	ChainBSC      Chain = "bsc"
)

var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidChain     = errors.New("invalid chain")
	ErrInvalidThreshold = errors.New("threshold must be non-negative")
	ErrAlreadyTracked   = errors.New("token already tracked")
	ErrNotTracked       = errors.New("token not tracked")
)

// ParseChain accepts the chain names users type, including the aliases
// the original commands used.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethereum", "eth":
		return ChainEthereum, nil
	case "solana", "sol":
		return ChainSolana, nil
	case "bsc", "bnb", "binance":
		return ChainBSC, nil
	}
	return "", ErrInvalidChain
}

func (c Chain) Valid() bool {
	switch c {
	case ChainEthereum, ChainSolana, ChainBSC:
		return true
	}
	return false
}

// IsEVM reports whether the chain uses 0x-prefixed hex addresses.
func (c Chain) IsEVM() bool {
	return c == ChainEthereum || c == ChainBSC
}

var (
	evmAddressRe    = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// NormalizeAddress canonicalizes an address for its chain: EVM addresses
// are lower-cased, Solana addresses are kept as-is (base58 is case
// sensitive). Malformed input returns ErrInvalidAddress.
func NormalizeAddress(chain Chain, address string) (string, error) {
	address = strings.TrimSpace(address)

	switch {
	case chain.IsEVM():
		address = strings.ToLower(address)
		if !evmAddressRe.MatchString(address) {
			return "", ErrInvalidAddress
		}
		return address, nil
	case chain == ChainSolana:
		if !solanaAddressRe.MatchString(address) {
			return "", ErrInvalidAddress
		}
		decoded, err := base58.Decode(address)
		if err != nil || len(decoded) != 32 {
			return "", ErrInvalidAddress
		}
		return address, nil
	}
	return "", ErrInvalidChain
}

// Customization carries per-token alert presentation overrides.
type Customization struct {
	ImageURL string `json:"image,omitempty"`
	Emojis   string `json:"emojis,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Website  string `json:"website,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

// DefaultEmojis decorates alerts for tokens without custom emojis.
const DefaultEmojis = "🚀"

func (c *Customization) AlertEmojis() string {
	if c == nil || c.Emojis == "" {
		return DefaultEmojis
	}
	return c.Emojis
}

// TrackedToken is one (chain, address) registration inside a chat.
type TrackedToken struct {
	Chain           Chain           `json:"network"`
	Address         string          `json:"address"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	MinUsdThreshold decimal.Decimal `json:"min_volume_usd"`
	ChatID          int64           `json:"chat_id"`
	AddedAt         time.Time       `json:"added_at"`
	Customization   *Customization  `json:"customization,omitempty"`
}

// Key identifies a token within a chat.
func (t *TrackedToken) Key() string {
	return string(t.Chain) + ":" + t.Address
}
